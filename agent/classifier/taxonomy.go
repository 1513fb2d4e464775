package classifier

import (
	"context"
	"strings"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	promptx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/prompt"
)

const (
	TagPass = "pass"
	TagFail = "fail"

	TagSafe   = "safe"
	TagUnsafe = "unsafe"

	TagGreeting   = "greeting"
	TagDeclineID  = "decline_id"
	TagPreference = "preference"

	TagInterested = "interested"
	TagBrowsing   = "browsing"

	TagAccept  = "accept"
	TagDecline = "decline"

	TagNone = "none"
)

// Taxonomies bundles every vocabulary the assistant classifies against.
type Taxonomies struct {
	Guardrail        contractx.Taxonomy
	Jailbreak        contractx.Taxonomy
	OpeningIntent    contractx.Taxonomy
	Interest         contractx.Taxonomy
	CrossSellOutcome contractx.Taxonomy
}

// NewTaxonomies builds the vocabularies from the prompt set. Safety checks fall
// back to their failing tag.
func NewTaxonomies(p promptx.PromptSet) Taxonomies {
	return Taxonomies{
		Guardrail: contractx.Taxonomy{
			Name:         "guardrail",
			Instructions: p.Guardrail,
			Tags:         []string{TagPass, TagFail},
			Fallback:     TagFail,
		},
		Jailbreak: contractx.Taxonomy{
			Name:         "jailbreak",
			Instructions: p.Jailbreak,
			Tags:         []string{TagSafe, TagUnsafe},
			Fallback:     TagUnsafe,
		},
		OpeningIntent: contractx.Taxonomy{
			Name:         "opening_intent",
			Instructions: p.OpeningIntent,
			Tags:         []string{TagGreeting, TagDeclineID, TagPreference},
			Fallback:     TagGreeting,
		},
		Interest: contractx.Taxonomy{
			Name:         "interest",
			Instructions: p.Interest,
			Tags:         []string{TagInterested, TagBrowsing},
			Fallback:     TagBrowsing,
		},
		CrossSellOutcome: contractx.Taxonomy{
			Name:         "cross_sell_outcome",
			Instructions: p.CrossSellOutcome,
			Tags:         []string{TagAccept, TagDecline},
			Fallback:     TagDecline,
		},
	}
}

// NewModelChoice builds the vocabulary that maps a message onto one catalog
// model. Tags are the lower-cased model names plus "none".
func NewModelChoice(instructions string, models []string) contractx.Taxonomy {
	tags := make([]string, 0, len(models)+1)
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		tag := strings.ToLower(strings.TrimSpace(m))
		if tag == "" || tag == TagNone || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	tags = append(tags, TagNone)
	return contractx.Taxonomy{
		Name:         "model_choice",
		Instructions: instructions,
		Tags:         tags,
		Fallback:     TagNone,
	}
}

// ClassifyWithHistory hands earlier turns to classifiers that accept them and
// falls back to the plain text otherwise.
func ClassifyWithHistory(ctx context.Context, c contractx.Classifier, text string, history []contractx.Turn, taxonomy contractx.Taxonomy) (contractx.Classification, error) {
	if hc, ok := c.(contractx.HistoryClassifier); ok {
		return hc.ClassifyWithHistory(ctx, text, history, taxonomy)
	}
	return c.Classify(ctx, text, taxonomy)
}
