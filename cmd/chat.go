package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	orchestratorx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/agents/orchestrator"
	statex "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/state"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant in the terminal",
	Long:  "Starts a new thread and reads one message per line from stdin. Type exit or quit to leave.",
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return chatLoop(ctx, a.orchestrator, cmd.InOrStdin(), cmd.OutOrStdout())
}

type chatService interface {
	StartThread(ctx context.Context) (*statex.ConversationThread, error)
	HandleTurn(ctx context.Context, threadID, text, requestID string) (orchestratorx.TurnResult, error)
}

func chatLoop(ctx context.Context, svc chatService, in io.Reader, out io.Writer) error {
	t, err := svc.StartThread(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "assistant> %s\n", t.LastReply)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		res, err := svc.HandleTurn(ctx, t.ThreadID, line, "")
		if err != nil {
			log.Error().Err(err).Str("thread_id", t.ThreadID).Msg("turn failed")
			fmt.Fprintln(out, "assistant> Sorry, something went wrong. Please try again.")
			continue
		}
		fmt.Fprintf(out, "assistant> %s\n", res.Reply)
		log.Debug().Str("phase", string(res.Phase)).Strs("tools", res.Tools).Msg("turn done")
	}
}
