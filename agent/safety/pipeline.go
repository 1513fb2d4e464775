package safety

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	classifierx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/classifier"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

const fillerReasoning = "conversational filler"

var fillerPattern = regexp.MustCompile(`(?i)^(hi|hello|hey|hiya|ok|okay|k|thanks|thank you|thx|yes|yeah|yep|no|nope|sure|alright|good|great|cool|bye|goodbye|good (morning|afternoon|evening))[\s!.,]*$`)

var _ contractx.SafetyPipeline = (*Pipeline)(nil)

// Pipeline runs the guardrail and jailbreak checks against the current
// message only. Both checks always run; verdict order is guardrail, jailbreak.
type Pipeline struct {
	classifier contractx.Classifier
	guardrail  contractx.Taxonomy
	jailbreak  contractx.Taxonomy
}

func New(classifier contractx.Classifier, taxonomies classifierx.Taxonomies) (*Pipeline, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: classifier is required", contractx.ErrValidation)
	}
	return &Pipeline{
		classifier: classifier,
		guardrail:  taxonomies.Guardrail,
		jailbreak:  taxonomies.Jailbreak,
	}, nil
}

func (p *Pipeline) Check(ctx context.Context, text string) ([]contractx.SafetyVerdict, error) {
	text = strings.TrimSpace(text)
	if IsFiller(text) {
		return []contractx.SafetyVerdict{
			{Kind: contractx.SafetyGuardrail, Passed: true, Reasoning: fillerReasoning},
			{Kind: contractx.SafetyJailbreak, Passed: true, Reasoning: fillerReasoning},
		}, nil
	}

	verdicts := make([]contractx.SafetyVerdict, 2)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := p.run(gctx, text, contractx.SafetyGuardrail, p.guardrail, classifierx.TagPass)
		verdicts[0] = v
		return err
	})
	g.Go(func() error {
		v, err := p.run(gctx, text, contractx.SafetyJailbreak, p.jailbreak, classifierx.TagSafe)
		verdicts[1] = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}

func (p *Pipeline) run(
	ctx context.Context,
	text string,
	kind contractx.SafetyKind,
	taxonomy contractx.Taxonomy,
	passTag string,
) (contractx.SafetyVerdict, error) {
	c, err := p.classifier.Classify(ctx, text, taxonomy)
	if err != nil {
		return contractx.SafetyVerdict{Kind: kind}, fmt.Errorf("%s check: %w", kind, err)
	}
	return contractx.SafetyVerdict{
		Kind:      kind,
		Passed:    c.Tag == passTag,
		Reasoning: c.Reasoning,
	}, nil
}

// IsFiller reports whether text is a greeting or acknowledgement, or a bare
// number such as a customer id.
func IsFiller(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if fillerPattern.MatchString(text) {
		return true
	}
	return strings.Trim(text, "0123456789 #.") == ""
}

// Passed reports whether every verdict passed. No verdicts is a failure.
func Passed(verdicts []contractx.SafetyVerdict) bool {
	if len(verdicts) == 0 {
		return false
	}
	for _, v := range verdicts {
		if !v.Passed {
			return false
		}
	}
	return true
}

// FirstFailure returns the first failed verdict, if any.
func FirstFailure(verdicts []contractx.SafetyVerdict) (contractx.SafetyVerdict, bool) {
	for _, v := range verdicts {
		if !v.Passed {
			return v, true
		}
	}
	return contractx.SafetyVerdict{}, false
}
