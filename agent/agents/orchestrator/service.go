package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	catalogx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/catalog"
	classifierx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/classifier"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	nodex "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/nodes/orchestrator"
	promptx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/prompt"
	safetyx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/safety"
	statex "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/state"
	toolx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/tool"
	metricsx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/metrics"
)

const Greeting = "Hi! I am your friendly handset recommender assistant! Before we start, can you please provide the numeric portion of your customer id?"

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidThread  = nodex.ErrInvalidThread
)

// Dependencies are the collaborators the orchestrator wires into its tools.
// Generator, Handsets and Notifier are optional.
type Dependencies struct {
	Store      statex.Store
	Classifier contractx.Classifier
	Generator  contractx.Generator
	Retriever  contractx.Retriever
	Customers  contractx.CustomerDirectory
	Handsets   *catalogx.Handsets
	Prompts    promptx.PromptSet
	Notifier   contractx.CheckoutNotifier
}

type TurnResult struct {
	Reply     string       `json:"reply"`
	Phase     statex.Phase `json:"phase"`
	Outcome   string       `json:"outcome"`
	Tools     []string     `json:"tools,omitempty"`
	Duplicate bool         `json:"duplicate,omitempty"`
}

type Orchestrator struct {
	store      statex.Store
	safety     contractx.SafetyPipeline
	dispatcher *nodex.Dispatcher
	notifier   contractx.CheckoutNotifier
	cfg        Config

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	locksMu sync.Mutex
	locks   map[string]*threadLock

	now func() time.Time
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func New(deps Dependencies, cfg Config) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("thread store is required")
	}
	if deps.Classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if deps.Retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if deps.Customers == nil {
		return nil, errors.New("customer directory is required")
	}
	cfg = cfg.withDefaults()

	taxonomies := classifierx.NewTaxonomies(deps.Prompts)
	pipeline, err := safetyx.New(deps.Classifier, taxonomies)
	if err != nil {
		return nil, err
	}

	tools, err := toolx.NewRegistry(cfg.ToolTimeout,
		toolx.NewRecommendationTool(deps.Retriever, deps.Generator, deps.Prompts.Recommendation, cfg.RetrievalK),
		toolx.NewGetCustomerTool(deps.Customers),
		toolx.NewCrossSellTool(deps.Generator, deps.Prompts.CrossSell, cfg.AccessoryName),
		toolx.NewCrossSellOutcomeTool(deps.Classifier, taxonomies.CrossSellOutcome),
		toolx.NewCheckoutTool(deps.Handsets, cfg.ShopBaseURL, cfg.AccessoryURL),
	)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		store:  deps.Store,
		safety: pipeline,
		dispatcher: &nodex.Dispatcher{
			Tools:       tools,
			Classifier:  deps.Classifier,
			Taxonomies:  taxonomies,
			ModelChoice: classifierx.NewModelChoice(deps.Prompts.ModelChoice, deps.Handsets.Models()),
			Handsets:    deps.Handsets,
		},
		notifier: deps.Notifier,
		cfg:      cfg,
		locks:    make(map[string]*threadLock),
		now:      time.Now,
	}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// StartThread opens a conversation with the greeting turn.
func (o *Orchestrator) StartThread(ctx context.Context) (*statex.ConversationThread, error) {
	now := o.now().UTC()
	t := statex.NewThread(uuid.NewString(), now)
	t.Append(contractx.Turn{
		Speaker:   contractx.SpeakerAssistant,
		Content:   Greeting,
		Timestamp: now,
	})
	t.LastReply = Greeting
	if err := o.store.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// HandleTurn processes one user message. Turns on the same thread run one at
// a time; a repeated non-empty requestID returns the stored reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, threadID, text, requestID string) (TurnResult, error) {
	start := time.Now()
	unlock := o.lockThread(strings.TrimSpace(threadID))
	defer unlock()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		ThreadID:  threadID,
		Text:      text,
		RequestID: requestID,
	})
	if err != nil {
		metricsx.ObserveTurn(metricsx.OutcomeError, time.Since(start))
		return TurnResult{}, err
	}
	metricsx.ObserveTurn(out.Outcome, time.Since(start))

	return TurnResult{
		Reply:     out.Reply,
		Phase:     out.Phase,
		Outcome:   out.Outcome,
		Tools:     out.Tools,
		Duplicate: out.Duplicate,
	}, nil
}

func (o *Orchestrator) HandleMessage(ctx context.Context, threadID string, text string) (string, error) {
	res, err := o.HandleTurn(ctx, threadID, text, "")
	if err != nil {
		return "", err
	}
	return res.Reply, nil
}

func (o *Orchestrator) Thread(ctx context.Context, threadID string) (*statex.ConversationThread, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, ErrInvalidThread
	}
	return o.store.Load(ctx, threadID)
}

func (o *Orchestrator) lockThread(threadID string) func() {
	o.locksMu.Lock()
	l, ok := o.locks[threadID]
	if !ok {
		l = &threadLock{}
		o.locks[threadID] = l
	}
	l.refs++
	o.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, threadID)
		}
		o.locksMu.Unlock()
	}
}
