package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	safetyx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/safety"
	metricsx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/metrics"
)

const (
	refusalOffTopic  = "Sorry, I can only help with handset recommendations and identifying your customer account."
	refusalJailbreak = "Sorry, I can't help with that request. I'm happy to help you find a new phone though."
	degradedReply    = "Sorry, I'm having trouble with that right now. Could you please try again in a moment?"
)

// CheckSafety evaluates the current message. A failed verdict or a broken
// check both stop the turn before any capability runs.
func CheckSafety(ctx context.Context, in *GraphState, pipeline contractx.SafetyPipeline) (*GraphState, error) {
	if in == nil || in.Thread == nil {
		return nil, fmt.Errorf("%w: graph thread is nil", contractx.ErrValidation)
	}

	verdicts, err := pipeline.Check(ctx, in.Text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		in.Refused = true
		in.Degraded = fmt.Errorf("%w: %w", contractx.ErrToolInvocationFailed, err)
		in.Outcome = OutcomeDegraded
		in.Reply = degradedReply
		return in, nil
	}
	in.Verdicts = verdicts

	for _, v := range verdicts {
		log.Info().
			Str("thread_id", in.ThreadID).
			Str("kind", string(v.Kind)).
			Bool("passed", v.Passed).
			Str("reasoning", v.Reasoning).
			Msg("safety verdict")
	}

	failed, ok := safetyx.FirstFailure(verdicts)
	if !ok && safetyx.Passed(verdicts) {
		return in, nil
	}

	in.Refused = true
	in.Outcome = OutcomeRefused
	in.Degraded = contractx.ErrSafetyRejected
	in.Reply = refusalOffTopic
	if failed.Kind == contractx.SafetyJailbreak {
		in.Reply = refusalJailbreak
	}
	metricsx.ObserveSafetyRejection(string(failed.Kind))
	return in, nil
}

// Refuse is the terminal step for a rejected turn: the thread keeps its phase.
func Refuse(in *GraphState) (*GraphState, error) {
	if in == nil || in.Thread == nil {
		return nil, fmt.Errorf("%w: graph thread is nil", contractx.ErrValidation)
	}
	if in.Thread.Phase != in.PhaseBefore {
		return nil, fmt.Errorf("%w: refused turn moved phase %s -> %s", contractx.ErrValidation, in.PhaseBefore, in.Thread.Phase)
	}
	return in, nil
}
