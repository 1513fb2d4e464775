package orchestratornode

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Thread == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: turn produced an empty reply", contractx.ErrValidation)
	}

	event := log.Info().
		Str("thread_id", in.ThreadID).
		Str("request_id", in.RequestID).
		Str("phase_before", string(in.PhaseBefore)).
		Str("phase_after", string(in.Thread.Phase)).
		Int("cycle", in.Thread.Cycle).
		Strs("tools", in.Dispatched).
		Str("outcome", in.Outcome)
	if in.Degraded != nil {
		event = event.AnErr("degraded", in.Degraded)
	}
	event.Msg("turn handled")

	return GraphOutput{
		Reply:     reply,
		Phase:     in.Thread.Phase,
		Outcome:   in.Outcome,
		Tools:     append([]string(nil), in.Dispatched...),
		Duplicate: in.Duplicate,
	}, nil
}
