package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/state"
)

// LoadOrCreateThread loads the stored thread, or starts a fresh one for an
// unknown id, and flags a repeated request id.
func LoadOrCreateThread(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	t, err := store.Load(ctx, in.ThreadID)
	switch {
	case err == nil:
	case errors.Is(err, statex.ErrThreadNotFound):
		t = statex.NewThread(in.ThreadID, in.Now)
		in.Created = true
	default:
		return nil, err
	}

	in.Thread = t.Clone()
	in.PhaseBefore = t.Phase
	in.CycleBefore = t.Cycle

	if in.RequestID != "" && in.RequestID == t.LastRequestID {
		in.Duplicate = true
		in.Reply = t.LastReply
		in.Outcome = OutcomeDuplicate
	}
	return in, nil
}
