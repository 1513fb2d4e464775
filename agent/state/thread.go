package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

// ConversationThread is the persistent source-of-truth for one customer conversation.
// Phase only moves along the edges in transition.go; Turns is append-only.
type ConversationThread struct {
	ThreadID string `json:"thread_id"`

	Phase         Phase `json:"phase"`
	Cycle         int   `json:"cycle"`
	CustomerID    *int  `json:"customer_id,omitempty"`
	RemindedForID bool  `json:"reminded_for_id"`

	Recommended      []string `json:"recommended,omitempty"`
	SelectedModel    string   `json:"selected_model,omitempty"`
	CrossSellOutcome string   `json:"cross_sell_outcome,omitempty"`

	LastRequestID string `json:"last_request_id,omitempty"`
	LastReply     string `json:"last_reply,omitempty"`

	Turns []contractx.Turn `json:"turns,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrNilThread        = errors.New("conversation thread is nil")
	ErrInvalidPhase     = errors.New("invalid phase")
	ErrAlreadyReminded  = errors.New("customer already reminded for id")
	ErrTurnsOutOfOrder  = errors.New("turns out of chronological order")
	ErrTurnHistoryShort = errors.New("stored turn history is longer than the thread")
)

func NewThread(threadID string, now time.Time) *ConversationThread {
	return &ConversationThread{
		ThreadID:  threadID,
		Phase:     PhaseAwaitingID,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (t *ConversationThread) Touch(now time.Time) {
	t.UpdatedAt = now.UTC()
}

func (t *ConversationThread) Identified() bool {
	return t != nil && t.CustomerID != nil
}

func (t *ConversationThread) Identify(customerID int, now time.Time) {
	id := customerID
	t.CustomerID = &id
	t.Touch(now)
}

// Transition moves the thread to phase `to`. Re-entering RECOMMENDING or
// OFFERING_CROSS_SELL from CHECKOUT starts a new cycle and clears the previous
// cycle's selection.
func (t *ConversationThread) Transition(to Phase, now time.Time) error {
	if t == nil {
		return ErrNilThread
	}
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPhase, to)
	}
	if t.Phase == to {
		return nil
	}
	if !CanTransition(t.Phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Phase, to)
	}
	if t.Phase == PhaseCheckout {
		t.Cycle++
		t.SelectedModel = ""
		t.CrossSellOutcome = ""
	}
	t.Phase = to
	t.Touch(now)
	return nil
}

// RemindForID takes the one permitted reminder branch out of AWAITING_ID.
func (t *ConversationThread) RemindForID(now time.Time) error {
	if t == nil {
		return ErrNilThread
	}
	if t.RemindedForID {
		return ErrAlreadyReminded
	}
	if t.Phase != PhaseAwaitingID {
		return fmt.Errorf("%w: reminder only allowed from %s, thread is %s", ErrInvalidTransition, PhaseAwaitingID, t.Phase)
	}
	t.RemindedForID = true
	return t.Transition(PhaseAwaitingPreference, now)
}

func (t *ConversationThread) Append(turns ...contractx.Turn) {
	for _, turn := range turns {
		if turn.ID == "" {
			turn.ID = uuid.NewString()
		}
		if turn.Timestamp.IsZero() {
			turn.Timestamp = time.Now().UTC()
		}
		t.Turns = append(t.Turns, turn)
	}
}

// History returns the chronological turn log; limit <= 0 means everything.
func (t *ConversationThread) History(limit int) []contractx.Turn {
	if t == nil || len(t.Turns) == 0 {
		return nil
	}
	start := 0
	if limit > 0 && len(t.Turns) > limit {
		start = len(t.Turns) - limit
	}
	out := make([]contractx.Turn, len(t.Turns)-start)
	copy(out, t.Turns[start:])
	return out
}

// View is the read-only projection handed to capability tools. history is the
// replayed context captured for the turn.
func (t *ConversationThread) View(history []contractx.Turn) contractx.ThreadView {
	view := contractx.ThreadView{
		ThreadID:      t.ThreadID,
		Recommended:   append([]string(nil), t.Recommended...),
		SelectedModel: t.SelectedModel,
		History:       history,
	}
	if t.CustomerID != nil {
		id := *t.CustomerID
		view.CustomerID = &id
	}
	return view
}

func (t *ConversationThread) Clone() *ConversationThread {
	if t == nil {
		return nil
	}
	out := *t
	if t.CustomerID != nil {
		id := *t.CustomerID
		out.CustomerID = &id
	}
	out.Recommended = append([]string(nil), t.Recommended...)
	out.Turns = append([]contractx.Turn(nil), t.Turns...)
	return &out
}

func (t *ConversationThread) Validate() error {
	if t == nil {
		return ErrNilThread
	}
	if strings.TrimSpace(t.ThreadID) == "" {
		return ErrInvalidThread
	}
	if !t.Phase.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPhase, t.Phase)
	}
	if t.Cycle < 0 {
		return fmt.Errorf("%w: negative cycle", ErrInvalidTransition)
	}
	for i := 1; i < len(t.Turns); i++ {
		if t.Turns[i].Timestamp.Before(t.Turns[i-1].Timestamp) {
			return fmt.Errorf("%w: turn %d", ErrTurnsOutOfOrder, i)
		}
	}
	return nil
}
