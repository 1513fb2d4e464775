package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

// WriteMemory appends the turn's tool results and the assistant reply.
func WriteMemory(in *GraphState) (*GraphState, error) {
	if in == nil || in.Thread == nil {
		return nil, fmt.Errorf("%w: graph thread is nil", contractx.ErrValidation)
	}
	if in.Reply == "" {
		return nil, fmt.Errorf("%w: turn produced no reply", contractx.ErrValidation)
	}

	in.Thread.Append(in.ToolTurns...)
	in.Thread.Append(contractx.Turn{
		Speaker:   contractx.SpeakerAssistant,
		Content:   in.Reply,
		Timestamp: in.Now,
	})
	return in, nil
}
