package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	catalogx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/catalog"
	classifierx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/classifier"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	promptx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/prompt"
	statex "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/state"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type toolCall struct {
	name string
	req  contractx.ToolRequest
}

type fakeTools struct {
	results map[string]contractx.ToolResult
	errs    map[string]error
	calls   []toolCall
}

func (f *fakeTools) Run(ctx context.Context, name string, req contractx.ToolRequest) (contractx.ToolResult, error) {
	f.calls = append(f.calls, toolCall{name: name, req: req})
	if err := f.errs[name]; err != nil {
		return contractx.ToolResult{}, fmt.Errorf("%w: %s: %w", contractx.ErrToolInvocationFailed, name, err)
	}
	res, ok := f.results[name]
	if !ok {
		return contractx.ToolResult{}, fmt.Errorf("%w: unknown tool %s", contractx.ErrToolInvocationFailed, name)
	}
	res.Tool = name
	return res, nil
}

func (f *fakeTools) names() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.name)
	}
	return out
}

type fakeClassifier struct {
	tags      map[string]string
	err       error
	calls     []string
	histories map[string][]contractx.Turn
}

func (f *fakeClassifier) ClassifyWithHistory(ctx context.Context, text string, history []contractx.Turn, taxonomy contractx.Taxonomy) (contractx.Classification, error) {
	if f.histories == nil {
		f.histories = map[string][]contractx.Turn{}
	}
	f.histories[taxonomy.Name] = history
	return f.Classify(ctx, text, taxonomy)
}

func (f *fakeClassifier) Classify(ctx context.Context, text string, taxonomy contractx.Taxonomy) (contractx.Classification, error) {
	f.calls = append(f.calls, taxonomy.Name)
	if f.err != nil {
		return contractx.Classification{}, f.err
	}
	tag, ok := f.tags[taxonomy.Name]
	if !ok {
		return contractx.Classification{Tag: taxonomy.Fallback, Fallback: true}, nil
	}
	return contractx.Classification{Tag: tag, Reasoning: "because"}, nil
}

func testHandsets() *catalogx.Handsets {
	docs := []catalogx.HandsetDocument{
		{Position: 0, Attributes: map[string]any{"brand": "Apple", "model": "iPhone 16"}, LaunchDate: testNow},
		{Position: 1, Attributes: map[string]any{"brand": "Samsung", "model": "Galaxy Z Flip6"}, LaunchDate: testNow},
		{Position: 2, Attributes: map[string]any{"brand": "OPPO", "model": "Reno12 5G"}, LaunchDate: testNow},
	}
	return catalogx.NewHandsets(docs)
}

func recommendationResult(models ...string) contractx.ToolResult {
	docs := make([]catalogx.HandsetDocument, 0, len(models))
	for i, m := range models {
		docs = append(docs, catalogx.HandsetDocument{Position: i, Attributes: map[string]any{"model": m}, LaunchDate: testNow})
	}
	return contractx.ToolResult{
		Text: "1. " + strings.Join(models, "\n2. "),
		Data: contractx.RecommendationData{Documents: docs},
	}
}

func defaultTools() *fakeTools {
	alice := catalogx.CustomerRecord{CustomerID: 101, Name: "Alice", CurrentPhoneModel: "iPhone 13"}
	return &fakeTools{results: map[string]contractx.ToolResult{
		contractx.ToolGetCustomer:      {Text: "Hi Alice!", Data: contractx.CustomerData{Found: true, Customer: &alice}},
		contractx.ToolRecommendation:   recommendationResult("Reno12 5G", "Galaxy Z Flip6", "iPhone 16"),
		contractx.ToolCrossSell:        {Text: "The power bank pairs well."},
		contractx.ToolCrossSellOutcome: {Text: classifierx.TagAccept},
		contractx.ToolCheckout: {
			Text: "Checkout here",
			Data: contractx.CheckoutData{Outcome: classifierx.TagAccept, PhoneURL: "https://shop/phone", AccessoryURL: "https://shop/acc"},
		},
	}}
}

func newDispatcher(tools *fakeTools, cls *fakeClassifier) *Dispatcher {
	prompts := promptx.LoadPromptSet()
	handsets := testHandsets()
	return &Dispatcher{
		Tools:       tools,
		Classifier:  cls,
		Taxonomies:  classifierx.NewTaxonomies(prompts),
		ModelChoice: classifierx.NewModelChoice(prompts.ModelChoice, handsets.Models()),
		Handsets:    handsets,
	}
}

func stateAt(phase statex.Phase, text string) *GraphState {
	t := statex.NewThread("thread-1", testNow)
	t.Phase = phase
	in := &GraphState{
		ThreadID:    "thread-1",
		Text:        text,
		Now:         testNow,
		Thread:      t,
		PhaseBefore: phase,
		Outcome:     OutcomeOK,
	}
	return in
}

func TestDispatchAwaitingIDWithCustomerID(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	in := stateAt(statex.PhaseAwaitingID, "my id is 101")
	out, err := Dispatch(context.Background(), in, newDispatcher(tools, &fakeClassifier{}))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Thread.Phase != statex.PhaseAwaitingPreference {
		t.Fatalf("phase = %s, want AWAITING_PREFERENCE", out.Thread.Phase)
	}
	if out.Thread.CustomerID == nil || *out.Thread.CustomerID != 101 {
		t.Fatalf("customer id = %v, want 101", out.Thread.CustomerID)
	}
	if out.Reply != "Hi Alice!" {
		t.Fatalf("reply = %q", out.Reply)
	}
	if len(out.ToolTurns) != 1 || out.ToolTurns[0].ToolName != contractx.ToolGetCustomer {
		t.Fatalf("tool turns = %+v", out.ToolTurns)
	}
}

func TestDispatchAwaitingIDUnknownCustomerStillAdvances(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	tools.results[contractx.ToolGetCustomer] = contractx.ToolResult{
		Text: "no record",
		Data: contractx.CustomerData{Reason: contractx.ErrIdentificationNotFound},
	}
	out, err := Dispatch(context.Background(), stateAt(statex.PhaseAwaitingID, "999"), newDispatcher(tools, &fakeClassifier{}))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Thread.Identified() {
		t.Fatal("thread should not be identified")
	}
	if out.Thread.Phase != statex.PhaseAwaitingPreference {
		t.Fatalf("phase = %s", out.Thread.Phase)
	}
	if !errors.Is(out.Degraded, contractx.ErrIdentificationNotFound) {
		t.Fatalf("degraded = %v", out.Degraded)
	}
}

func TestDispatchAwaitingIDOpeningIntents(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tag       string
		wantPhase statex.Phase
		wantTools []string
		reminded  bool
	}{
		{tag: classifierx.TagGreeting, wantPhase: statex.PhaseAwaitingID},
		{tag: classifierx.TagDeclineID, wantPhase: statex.PhaseAwaitingPreference},
		{tag: classifierx.TagPreference, wantPhase: statex.PhaseRecommending, wantTools: []string{contractx.ToolRecommendation}, reminded: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.tag, func(t *testing.T) {
			t.Parallel()

			tools := defaultTools()
			cls := &fakeClassifier{tags: map[string]string{"opening_intent": tc.tag}}
			out, err := Dispatch(context.Background(), stateAt(statex.PhaseAwaitingID, "hello there"), newDispatcher(tools, cls))
			if err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if out.Thread.Phase != tc.wantPhase {
				t.Fatalf("phase = %s, want %s", out.Thread.Phase, tc.wantPhase)
			}
			if out.Thread.RemindedForID != tc.reminded {
				t.Fatalf("reminded = %v, want %v", out.Thread.RemindedForID, tc.reminded)
			}
			if fmt.Sprint(tools.names()) != fmt.Sprint(tc.wantTools) && !(len(tools.names()) == 0 && len(tc.wantTools) == 0) {
				t.Fatalf("tools = %v, want %v", tools.names(), tc.wantTools)
			}
			if tc.reminded && !strings.HasPrefix(out.Reply, reminderReply) {
				t.Fatalf("reply = %q, want reminder first", out.Reply)
			}
		})
	}
}

func TestDispatchAwaitingIDPreferenceWithNumbers(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"a blue phone under 1500", "do you have the Galaxy S24?"} {
		tools := defaultTools()
		cls := &fakeClassifier{tags: map[string]string{"opening_intent": classifierx.TagPreference}}
		out, err := Dispatch(context.Background(), stateAt(statex.PhaseAwaitingID, text), newDispatcher(tools, cls))
		if err != nil {
			t.Fatalf("Dispatch(%q) error = %v", text, err)
		}
		if got := tools.names(); len(got) != 1 || got[0] != contractx.ToolRecommendation {
			t.Fatalf("%q: tools = %v, want only recommendation", text, got)
		}
		if out.Thread.Identified() || !out.Thread.RemindedForID {
			t.Fatalf("%q: identified = %v reminded = %v", text, out.Thread.Identified(), out.Thread.RemindedForID)
		}
		if out.Thread.Phase != statex.PhaseRecommending {
			t.Fatalf("%q: phase = %s", text, out.Thread.Phase)
		}
	}
}

func TestDispatchAwaitingIDGreetingWithID(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	cls := &fakeClassifier{tags: map[string]string{"opening_intent": classifierx.TagGreeting}}
	out, err := Dispatch(context.Background(), stateAt(statex.PhaseAwaitingID, "hi, it's 101"), newDispatcher(tools, cls))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got := tools.names(); len(got) != 1 || got[0] != contractx.ToolGetCustomer {
		t.Fatalf("tools = %v", got)
	}
	if out.Thread.Phase != statex.PhaseAwaitingPreference || !out.Thread.Identified() {
		t.Fatalf("thread = %s identified %v", out.Thread.Phase, out.Thread.Identified())
	}
}

func TestDispatchLateIdentificationKeepsPhase(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	out, err := Dispatch(context.Background(), stateAt(statex.PhaseRecommending, "oh my customer id is 101"), newDispatcher(tools, &fakeClassifier{}))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Thread.Phase != statex.PhaseRecommending {
		t.Fatalf("phase = %s", out.Thread.Phase)
	}
	if !out.Thread.Identified() {
		t.Fatal("thread should be identified")
	}
}

func TestDispatchPriceLikeNumbersAreNotIDs(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	out, err := Dispatch(context.Background(), stateAt(statex.PhaseAwaitingPreference, "something under 1000 dollars"), newDispatcher(tools, &fakeClassifier{}))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got := tools.names(); len(got) != 1 || got[0] != contractx.ToolRecommendation {
		t.Fatalf("tools = %v", got)
	}
	if out.Thread.Phase != statex.PhaseRecommending {
		t.Fatalf("phase = %s", out.Thread.Phase)
	}
	if strings.Join(out.Thread.Recommended, ",") != "Reno12 5G,Galaxy Z Flip6,iPhone 16" {
		t.Fatalf("recommended = %v", out.Thread.Recommended)
	}
}

func TestDispatchInterestStartsCrossSell(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	cls := &fakeClassifier{tags: map[string]string{"interest": classifierx.TagInterested}}
	in := stateAt(statex.PhaseRecommending, "I want the Galaxy Z Flip6")
	out, err := Dispatch(context.Background(), in, newDispatcher(tools, cls))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Thread.Phase != statex.PhaseAwaitingCrossSellOutcome {
		t.Fatalf("phase = %s", out.Thread.Phase)
	}
	if out.Thread.SelectedModel != "Galaxy Z Flip6" {
		t.Fatalf("selected = %q", out.Thread.SelectedModel)
	}
	if tools.calls[0].req.Thread.SelectedModel != "Galaxy Z Flip6" {
		t.Fatalf("cross-sell saw model %q", tools.calls[0].req.Thread.SelectedModel)
	}
	if out.Interest == nil || out.Interest.Tag != classifierx.TagInterested {
		t.Fatalf("interest = %+v", out.Interest)
	}
	want := [][2]statex.Phase{
		{statex.PhaseRecommending, statex.PhaseOfferingCrossSell},
		{statex.PhaseOfferingCrossSell, statex.PhaseAwaitingCrossSellOutcome},
	}
	if fmt.Sprint(out.Transitions) != fmt.Sprint(want) {
		t.Fatalf("transitions = %v", out.Transitions)
	}
}

func TestDispatchOrdinalResolvesRecommendedModel(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	cls := &fakeClassifier{tags: map[string]string{"interest": classifierx.TagInterested}}
	in := stateAt(statex.PhaseRecommending, "I'll take the second one")
	in.Thread.Recommended = []string{"Reno12 5G", "Galaxy Z Flip6", "iPhone 16"}
	out, err := Dispatch(context.Background(), in, newDispatcher(tools, cls))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Thread.SelectedModel != "Galaxy Z Flip6" {
		t.Fatalf("selected = %q", out.Thread.SelectedModel)
	}
}

func TestDispatchInterestResolvesPartialName(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	cls := &fakeClassifier{tags: map[string]string{"interest": classifierx.TagInterested}}
	in := stateAt(statex.PhaseRecommending, "I'll take the Flip6")
	in.Thread.Recommended = []string{"Reno12 5G", "Galaxy Z Flip6", "iPhone 16"}
	out, err := Dispatch(context.Background(), in, newDispatcher(tools, cls))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Thread.SelectedModel != "Galaxy Z Flip6" {
		t.Fatalf("selected = %q", out.Thread.SelectedModel)
	}
	if out.Thread.Phase != statex.PhaseAwaitingCrossSellOutcome {
		t.Fatalf("phase = %s", out.Thread.Phase)
	}
	if fmt.Sprint(cls.calls) != "[interest]" {
		t.Fatalf("classifications = %v", cls.calls)
	}
}

func TestDispatchInterestUsesModelChoice(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	cls := &fakeClassifier{tags: map[string]string{
		"interest":     classifierx.TagInterested,
		"model_choice": "galaxy z flip6",
	}}
	in := stateAt(statex.PhaseRecommending, "yes, that one please")
	in.Thread.Recommended = []string{"Reno12 5G", "Galaxy Z Flip6", "iPhone 16"}
	out, err := Dispatch(context.Background(), in, newDispatcher(tools, cls))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Thread.SelectedModel != "Galaxy Z Flip6" {
		t.Fatalf("selected = %q", out.Thread.SelectedModel)
	}
	if fmt.Sprint(cls.calls) != "[interest model_choice]" {
		t.Fatalf("classifications = %v", cls.calls)
	}
}

func TestDispatchInterestInUnknownModelAsksWhich(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	cls := &fakeClassifier{tags: map[string]string{"interest": classifierx.TagInterested}}
	in := stateAt(statex.PhaseRecommending, "I want the Z Phone")
	in.Thread.Recommended = []string{"Reno12 5G", "Galaxy Z Flip6", "iPhone 16"}
	out, err := Dispatch(context.Background(), in, newDispatcher(tools, cls))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(tools.calls) != 0 {
		t.Fatalf("tools = %v, want none", tools.names())
	}
	if out.Reply != askWhichModelReply {
		t.Fatalf("reply = %q", out.Reply)
	}
	if out.Thread.Phase != statex.PhaseRecommending || out.Thread.SelectedModel != "" {
		t.Fatalf("thread = %s/%q", out.Thread.Phase, out.Thread.SelectedModel)
	}
	if out.Interest == nil || out.Interest.Tag != classifierx.TagInterested {
		t.Fatalf("interest = %+v", out.Interest)
	}
}

func TestDispatchClassifiersAndToolsSeeHistory(t *testing.T) {
	t.Parallel()

	history := []contractx.Turn{
		{Speaker: contractx.SpeakerUser, Content: "something foldable"},
		{Speaker: contractx.SpeakerAssistant, Content: "1. Galaxy Z Flip6"},
	}
	tools := defaultTools()
	cls := &fakeClassifier{tags: map[string]string{"interest": classifierx.TagBrowsing}}
	in := stateAt(statex.PhaseRecommending, "any cheaper ones?")
	in.History = history
	if _, err := Dispatch(context.Background(), in, newDispatcher(tools, cls)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if fmt.Sprint(cls.histories["interest"]) != fmt.Sprint(history) {
		t.Fatalf("interest history = %+v", cls.histories["interest"])
	}
	if len(tools.calls) != 1 || fmt.Sprint(tools.calls[0].req.Thread.History) != fmt.Sprint(history) {
		t.Fatalf("recommendation request = %+v", tools.calls)
	}
}

func TestDispatchBrowsingJudgementRecommends(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	cls := &fakeClassifier{tags: map[string]string{"interest": classifierx.TagBrowsing}}
	out, err := Dispatch(context.Background(), stateAt(statex.PhaseRecommending, "how does the iPhone 16 compare?"), newDispatcher(tools, cls))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Thread.Phase != statex.PhaseRecommending {
		t.Fatalf("phase = %s", out.Thread.Phase)
	}
	if got := tools.names(); len(got) != 1 || got[0] != contractx.ToolRecommendation {
		t.Fatalf("tools = %v", got)
	}
}

func TestDispatchCrossSellOutcomeReachesCheckout(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	in := stateAt(statex.PhaseAwaitingCrossSellOutcome, "sure")
	id := 101
	in.Thread.CustomerID = &id
	in.Thread.SelectedModel = "Galaxy Z Flip6"
	out, err := Dispatch(context.Background(), in, newDispatcher(tools, &fakeClassifier{}))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got := strings.Join(tools.names(), ","); got != contractx.ToolCrossSellOutcome+","+contractx.ToolCheckout {
		t.Fatalf("tools = %s", got)
	}
	if tools.calls[1].req.Outcome != classifierx.TagAccept {
		t.Fatalf("checkout outcome = %q", tools.calls[1].req.Outcome)
	}
	if out.Thread.Phase != statex.PhaseCheckout || out.Thread.CrossSellOutcome != classifierx.TagAccept {
		t.Fatalf("thread = %s/%s", out.Thread.Phase, out.Thread.CrossSellOutcome)
	}
	if out.Checkout == nil || !out.Checkout.AccessoryAccepted || len(out.Checkout.URLs) != 2 || *out.Checkout.CustomerID != 101 {
		t.Fatalf("checkout event = %+v", out.Checkout)
	}
}

func TestDispatchCheckoutReentryStartsNewCycle(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	in := stateAt(statex.PhaseCheckout, "now show me something in black")
	in.Thread.SelectedModel = "Galaxy Z Flip6"
	out, err := Dispatch(context.Background(), in, newDispatcher(tools, &fakeClassifier{}))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Thread.Phase != statex.PhaseRecommending || out.Thread.Cycle != 1 {
		t.Fatalf("thread = %s cycle %d", out.Thread.Phase, out.Thread.Cycle)
	}
	if out.Thread.SelectedModel != "" {
		t.Fatalf("selection should be cleared, got %q", out.Thread.SelectedModel)
	}

	thanks, err := Dispatch(context.Background(), stateAt(statex.PhaseCheckout, "thanks"), newDispatcher(defaultTools(), &fakeClassifier{}))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if thanks.Thread.Phase != statex.PhaseCheckout || thanks.Reply != afterCheckoutReply {
		t.Fatalf("thanks turn = %s %q", thanks.Thread.Phase, thanks.Reply)
	}
}

func TestDispatchToolFailureDegradesWithoutAdvancing(t *testing.T) {
	t.Parallel()

	tools := defaultTools()
	tools.errs = map[string]error{contractx.ToolRecommendation: contractx.ErrRetrievalUnavailable}
	out, err := Dispatch(context.Background(), stateAt(statex.PhaseAwaitingPreference, "blue phone"), newDispatcher(tools, &fakeClassifier{}))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Thread.Phase != statex.PhaseAwaitingPreference {
		t.Fatalf("phase = %s", out.Thread.Phase)
	}
	if out.Outcome != OutcomeDegraded || !errors.Is(out.Degraded, contractx.ErrRetrievalUnavailable) {
		t.Fatalf("outcome = %s degraded = %v", out.Outcome, out.Degraded)
	}
	if !strings.Contains(out.Reply, "don't know") {
		t.Fatalf("reply = %q", out.Reply)
	}
	if len(out.ToolTurns) != 0 {
		t.Fatalf("failed tool should not be logged as a turn: %+v", out.ToolTurns)
	}

	tools = defaultTools()
	tools.errs = map[string]error{contractx.ToolCheckout: errors.New("boom")}
	in := stateAt(statex.PhaseAwaitingCrossSellOutcome, "no thanks")
	in.Thread.SelectedModel = "iPhone 16"
	out, err = Dispatch(context.Background(), in, newDispatcher(tools, &fakeClassifier{}))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Thread.Phase != statex.PhaseAwaitingCrossSellOutcome || out.Thread.CrossSellOutcome != "" {
		t.Fatalf("thread = %s/%q", out.Thread.Phase, out.Thread.CrossSellOutcome)
	}
	if out.Reply != degradedReply {
		t.Fatalf("reply = %q", out.Reply)
	}
}

func TestDispatchCancelledContextAborts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tools := defaultTools()
	tools.errs = map[string]error{contractx.ToolRecommendation: context.Canceled}
	_, err := Dispatch(ctx, stateAt(statex.PhaseAwaitingPreference, "blue phone"), newDispatcher(tools, &fakeClassifier{}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Dispatch() error = %v, want context.Canceled", err)
	}
}
