package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

// ReadMemory captures the replayed context and records the user's turn.
func ReadMemory(in *GraphState, historyLimit int) (*GraphState, error) {
	if in == nil || in.Thread == nil {
		return nil, fmt.Errorf("%w: graph thread is nil", contractx.ErrValidation)
	}

	in.History = in.Thread.History(historyLimit)
	in.Thread.Append(contractx.Turn{
		Speaker:   contractx.SpeakerUser,
		Content:   in.Text,
		Timestamp: in.Now,
	})
	return in, nil
}
