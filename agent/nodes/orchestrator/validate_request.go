package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/state"
	metricsx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/metrics"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidThread  = errors.New("thread id is empty")
)

// Turn outcomes reported to callers and metrics.
const (
	OutcomeOK        = metricsx.OutcomeOK
	OutcomeRefused   = metricsx.OutcomeRefused
	OutcomeDegraded  = metricsx.OutcomeDegraded
	OutcomeDuplicate = metricsx.OutcomeDuplicate
)

type GraphInput struct {
	ThreadID  string
	Text      string
	RequestID string
}

type GraphOutput struct {
	Reply     string
	Phase     statex.Phase
	Outcome   string
	Tools     []string
	Duplicate bool
}

// GraphState is threaded through every node of one turn. Thread is a private
// copy; nothing reaches the store until save_thread.
type GraphState struct {
	ThreadID  string
	Text      string
	RequestID string
	Now       time.Time

	Thread      *statex.ConversationThread
	Created     bool
	Duplicate   bool
	PhaseBefore statex.Phase
	CycleBefore int

	// History is the replayed context read before this turn's message was
	// appended. Classifiers and tools see it; safety checks do not.
	History  []contractx.Turn
	Verdicts []contractx.SafetyVerdict
	Refused  bool

	Dispatched []string
	ToolTurns  []contractx.Turn
	Reply      string
	Outcome    string
	Degraded   error

	Transitions [][2]statex.Phase
	Interest    *contractx.Classification
	Checkout    *contractx.CheckoutEvent
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	threadID := strings.TrimSpace(in.ThreadID)
	if threadID == "" {
		return nil, ErrInvalidThread
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		ThreadID:  threadID,
		Text:      text,
		RequestID: strings.TrimSpace(in.RequestID),
		Now:       nowFn().UTC(),
		Outcome:   OutcomeOK,
	}, nil
}
