package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/state"
	metricsx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/metrics"
)

// SaveThread commits the working copy. A caller that already gave up leaves
// the stored thread untouched.
func SaveThread(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil || in.Thread == nil {
		return nil, fmt.Errorf("%w: graph thread is nil", contractx.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := in.Thread
	before := statex.Progress(in.CycleBefore, in.PhaseBefore)
	if after := statex.Progress(t.Cycle, t.Phase); after < before {
		return nil, fmt.Errorf("%w: %s/%d -> %s/%d", statex.ErrInvalidTransition, in.PhaseBefore, in.CycleBefore, t.Phase, t.Cycle)
	}

	if in.RequestID != "" {
		t.LastRequestID = in.RequestID
	}
	t.LastReply = in.Reply
	t.Touch(in.Now)
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("thread validation failed: %w", err)
	}
	if err := store.Save(ctx, t); err != nil {
		return nil, err
	}

	for _, tr := range in.Transitions {
		metricsx.ObserveTransition(string(tr[0]), string(tr[1]))
	}
	return in, nil
}
