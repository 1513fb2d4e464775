package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	catalogx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/catalog"
	classifierx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/classifier"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	safetyx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/safety"
	statex "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/state"
	toolx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/tool"
)

const (
	askForIDReply      = "Before we start, could you please share the numeric portion of your customer id?"
	askPreferenceReply = "No problem! What kind of phone are you looking for? Tell me about any preferences such as colour or screen size, or ask to see all phones."
	reminderReply      = "Just a reminder: if you share the numeric portion of your customer id at any point, I can tailor my suggestions to you."
	lookupFailedReply  = "Sorry, I couldn't check your customer record right now. Could you share your id again in a moment?"
	afterCheckoutReply = "You're welcome! Let me know whenever you'd like to look at other phones."
	askWhichModelReply = "Great choice! Which model would you like? Please tell me its name, or its position in the list I shared."
)

var (
	idMention      = regexp.MustCompile(`(?i)\b(id|customer (number|no))\b`)
	ordinalPattern = regexp.MustCompile(`(?i)\b(first|1st|second|2nd|third|3rd|last)\b`)
)

// ToolRunner runs a capability tool by name.
type ToolRunner interface {
	Run(ctx context.Context, name string, req contractx.ToolRequest) (contractx.ToolResult, error)
}

// Dispatcher is the conversation state machine. It picks tools from the
// thread's phase and applies their results; models only classify and write text.
type Dispatcher struct {
	Tools       ToolRunner
	Classifier  contractx.Classifier
	Taxonomies  classifierx.Taxonomies
	ModelChoice contractx.Taxonomy
	Handsets    *catalogx.Handsets
}

func Dispatch(ctx context.Context, in *GraphState, d *Dispatcher) (*GraphState, error) {
	if in == nil || in.Thread == nil {
		return nil, fmt.Errorf("%w: graph thread is nil", contractx.ErrValidation)
	}
	if in.Refused {
		return nil, fmt.Errorf("%w: refused turn reached dispatch", contractx.ErrValidation)
	}

	var err error
	switch in.Thread.Phase {
	case statex.PhaseAwaitingID:
		err = d.awaitingID(ctx, in)
	case statex.PhaseAwaitingPreference, statex.PhaseRecommending, statex.PhaseCheckout:
		err = d.browsing(ctx, in)
	case statex.PhaseOfferingCrossSell:
		// Only seen if an earlier turn stopped between the two cross-sell phases.
		if err = d.transition(in, statex.PhaseAwaitingCrossSellOutcome); err == nil {
			err = d.crossSellOutcome(ctx, in)
		}
	case statex.PhaseAwaitingCrossSellOutcome:
		err = d.crossSellOutcome(ctx, in)
	default:
		err = fmt.Errorf("%w: %q", statex.ErrInvalidPhase, in.Thread.Phase)
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (d *Dispatcher) awaitingID(ctx context.Context, in *GraphState) error {
	if looksLikeID(in.Text) {
		return d.identify(ctx, in, true)
	}

	c, err := d.classify(ctx, in, d.Taxonomies.OpeningIntent)
	if err != nil {
		return degrade(ctx, in, fmt.Errorf("%w: opening intent: %w", contractx.ErrToolInvocationFailed, err), degradedReply)
	}
	log.Debug().
		Str("thread_id", in.ThreadID).
		Str("intent", c.Tag).
		Str("reasoning", c.Reasoning).
		Msg("opening intent")

	switch c.Tag {
	case classifierx.TagDeclineID:
		if err := d.transition(in, statex.PhaseAwaitingPreference); err != nil {
			return err
		}
		say(in, askPreferenceReply)
		return nil
	case classifierx.TagPreference:
		// Digits here are prices or model numbers, not an id.
		if err := d.remind(in); err != nil {
			return err
		}
		return d.recommend(ctx, in)
	default:
		if toolx.HasCustomerID(in.Text) {
			return d.identify(ctx, in, true)
		}
		say(in, "Hi there! "+askForIDReply)
		return nil
	}
}

func (d *Dispatcher) remind(in *GraphState) error {
	if in.Thread.RemindedForID {
		return d.transition(in, statex.PhaseAwaitingPreference)
	}
	from := in.Thread.Phase
	if err := in.Thread.RemindForID(in.Now); err != nil {
		return err
	}
	in.Transitions = append(in.Transitions, [2]statex.Phase{from, in.Thread.Phase})
	say(in, reminderReply)
	return nil
}

func (d *Dispatcher) identify(ctx context.Context, in *GraphState, advance bool) error {
	res, err := d.run(ctx, in, contractx.ToolGetCustomer, d.request(in))
	if err != nil {
		return degrade(ctx, in, err, lookupFailedReply)
	}

	data, _ := res.Data.(contractx.CustomerData)
	if data.Found && data.Customer != nil {
		in.Thread.Identify(data.Customer.CustomerID, in.Now)
	} else {
		in.Degraded = data.Reason
		log.Info().Err(data.Reason).Str("thread_id", in.ThreadID).Msg("customer not identified")
	}

	if advance {
		if err := d.transition(in, statex.PhaseAwaitingPreference); err != nil {
			return err
		}
	}
	say(in, res.Text)
	return nil
}

func (d *Dispatcher) browsing(ctx context.Context, in *GraphState) error {
	phase := in.Thread.Phase
	if phase != statex.PhaseCheckout && !in.Thread.Identified() && looksLikeID(in.Text) {
		return d.identify(ctx, in, false)
	}
	if phase == statex.PhaseCheckout && safetyx.IsFiller(in.Text) {
		say(in, afterCheckoutReply)
		return nil
	}

	c, err := d.classify(ctx, in, d.Taxonomies.Interest)
	if err != nil {
		return degrade(ctx, in, fmt.Errorf("%w: interest: %w", contractx.ErrToolInvocationFailed, err), degradedReply)
	}
	in.Interest = &c
	if c.Tag != classifierx.TagInterested {
		logInterest(in, "", c)
		return d.recommend(ctx, in)
	}

	model, err := d.resolveModel(ctx, in)
	if err != nil {
		return degrade(ctx, in, fmt.Errorf("%w: model choice: %w", contractx.ErrToolInvocationFailed, err), degradedReply)
	}
	logInterest(in, model, c)
	if model == "" {
		say(in, askWhichModelReply)
		return nil
	}
	return d.crossSell(ctx, in, model)
}

// resolveModel finds the model an interested customer means: a full catalog
// name, an ordinal over the last recommendation, a partial name, and last the
// model-choice classifier. An empty result means the customer must be asked.
func (d *Dispatcher) resolveModel(ctx context.Context, in *GraphState) (string, error) {
	if d.Handsets != nil {
		if doc, ok := d.Handsets.MatchIn(in.Text); ok {
			return doc.Model(), nil
		}
	}
	if model, ok := ordinal(in.Text, in.Thread.Recommended); ok {
		return model, nil
	}
	if d.Handsets == nil {
		return "", nil
	}

	if len(in.Thread.Recommended) > 0 {
		if doc, ok := d.Handsets.Resolve(in.Text, in.Thread.Recommended); ok {
			return doc.Model(), nil
		}
	}
	if doc, ok := d.Handsets.Resolve(in.Text, nil); ok {
		return doc.Model(), nil
	}

	if len(d.ModelChoice.Tags) < 2 {
		return "", nil
	}
	c, err := d.classify(ctx, in, d.ModelChoice)
	if err != nil {
		return "", err
	}
	if c.Tag == classifierx.TagNone {
		return "", nil
	}
	doc, ok := d.Handsets.Find(c.Tag)
	if !ok {
		return "", nil
	}
	return doc.Model(), nil
}

func ordinal(text string, recommended []string) (string, bool) {
	if len(recommended) == 0 {
		return "", false
	}
	m := ordinalPattern.FindString(text)
	if m == "" {
		return "", false
	}
	idx := map[string]int{"first": 0, "1st": 0, "second": 1, "2nd": 1, "third": 2, "3rd": 2}[strings.ToLower(m)]
	if strings.EqualFold(m, "last") {
		idx = len(recommended) - 1
	}
	if idx >= len(recommended) {
		return "", false
	}
	return recommended[idx], true
}

// logInterest records every interest judgement for audit.
func logInterest(in *GraphState, model string, c contractx.Classification) {
	log.Info().
		Str("thread_id", in.ThreadID).
		Str("model", model).
		Str("judgement", c.Tag).
		Str("reasoning", c.Reasoning).
		Bool("fallback", c.Fallback).
		Msg("interest judgement")
}

func (d *Dispatcher) crossSell(ctx context.Context, in *GraphState, model string) error {
	req := d.request(in)
	req.Thread.SelectedModel = model
	res, err := d.run(ctx, in, contractx.ToolCrossSell, req)
	if err != nil {
		return degrade(ctx, in, err, degradedReply)
	}

	if err := d.transition(in, statex.PhaseOfferingCrossSell); err != nil {
		return err
	}
	in.Thread.SelectedModel = model
	if err := d.transition(in, statex.PhaseAwaitingCrossSellOutcome); err != nil {
		return err
	}
	say(in, res.Text)
	return nil
}

func (d *Dispatcher) recommend(ctx context.Context, in *GraphState) error {
	res, err := d.run(ctx, in, contractx.ToolRecommendation, d.request(in))
	if err != nil {
		if errors.Is(err, contractx.ErrRetrievalUnavailable) {
			return degrade(ctx, in, err, toolx.NoResultsText())
		}
		return degrade(ctx, in, err, degradedReply)
	}

	data, _ := res.Data.(contractx.RecommendationData)
	recommended := make([]string, 0, len(data.Documents))
	for _, doc := range data.Documents {
		recommended = append(recommended, doc.Model())
	}
	if err := d.transition(in, statex.PhaseRecommending); err != nil {
		return err
	}
	in.Thread.Recommended = recommended
	say(in, res.Text)
	return nil
}

func (d *Dispatcher) crossSellOutcome(ctx context.Context, in *GraphState) error {
	res, err := d.run(ctx, in, contractx.ToolCrossSellOutcome, d.request(in))
	if err != nil {
		return degrade(ctx, in, err, degradedReply)
	}
	outcome := res.Text

	req := d.request(in)
	req.Outcome = outcome
	checkout, err := d.run(ctx, in, contractx.ToolCheckout, req)
	if err != nil {
		return degrade(ctx, in, err, degradedReply)
	}
	data, _ := checkout.Data.(contractx.CheckoutData)

	in.Thread.CrossSellOutcome = outcome
	if err := d.transition(in, statex.PhaseCheckout); err != nil {
		return err
	}

	event := contractx.CheckoutEvent{
		ThreadID:          in.ThreadID,
		PhoneModel:        in.Thread.SelectedModel,
		AccessoryAccepted: outcome == classifierx.TagAccept,
		URLs:              data.URLs(),
	}
	if in.Thread.CustomerID != nil {
		id := *in.Thread.CustomerID
		event.CustomerID = &id
	}
	in.Checkout = &event
	say(in, checkout.Text)
	return nil
}

// request hands tools the history captured before this turn's message.
func (d *Dispatcher) request(in *GraphState) contractx.ToolRequest {
	return contractx.ToolRequest{
		Input:  in.Text,
		Thread: in.Thread.View(in.History),
	}
}

// classify judges the current message with the replayed turns as context.
func (d *Dispatcher) classify(ctx context.Context, in *GraphState, taxonomy contractx.Taxonomy) (contractx.Classification, error) {
	return classifierx.ClassifyWithHistory(ctx, d.Classifier, in.Text, in.History, taxonomy)
}

func (d *Dispatcher) run(ctx context.Context, in *GraphState, name string, req contractx.ToolRequest) (contractx.ToolResult, error) {
	in.Dispatched = append(in.Dispatched, name)
	res, err := d.Tools.Run(ctx, name, req)
	if err != nil {
		return contractx.ToolResult{}, err
	}
	in.ToolTurns = append(in.ToolTurns, contractx.Turn{
		Speaker:   contractx.SpeakerTool,
		ToolName:  name,
		Content:   res.Text,
		Timestamp: in.Now,
	})
	return res, nil
}

func (d *Dispatcher) transition(in *GraphState, to statex.Phase) error {
	from := in.Thread.Phase
	if err := in.Thread.Transition(to, in.Now); err != nil {
		return err
	}
	if from != to {
		in.Transitions = append(in.Transitions, [2]statex.Phase{from, to})
	}
	return nil
}

// degrade turns a capability failure into a plain reply. A cancelled caller
// aborts the turn instead so nothing is committed.
func degrade(ctx context.Context, in *GraphState, err error, reply string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	in.Degraded = err
	in.Outcome = OutcomeDegraded
	log.Warn().
		Err(err).
		Str("thread_id", in.ThreadID).
		Str("phase", string(in.Thread.Phase)).
		Strs("tools", in.Dispatched).
		Msg("turn degraded")
	say(in, reply)
	return nil
}

func say(in *GraphState, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if in.Reply == "" {
		in.Reply = text
		return
	}
	in.Reply += "\n\n" + text
}

func looksLikeID(text string) bool {
	if !toolx.HasCustomerID(text) {
		return false
	}
	return idMention.MatchString(text) || strings.Trim(text, "0123456789 #.") == ""
}
