package generator

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

var _ contractx.Generator = (*Generator)(nil)

// Generator produces free text with the prior conversation replayed as chat history.
type Generator struct {
	runner compose.Runnable[map[string]any, *schema.Message]
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel) (*Generator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: generator chat model is nil", contractx.ErrValidation)
	}
	runner, err := compileGeneratorGraph(ctx, chatModel)
	if err != nil {
		return nil, fmt.Errorf("%w: compile generator graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Generator{runner: runner}, nil
}

func (g *Generator) Generate(ctx context.Context, req contractx.GenerateRequest) (string, error) {
	if strings.TrimSpace(req.Instructions) == "" {
		return "", fmt.Errorf("%w: generator instructions", contractx.ErrPromptMissing)
	}

	msg, err := g.runner.Invoke(ctx, map[string]any{
		"instructions": strings.TrimSpace(req.Instructions),
		"history":      toMessages(req.History),
		"input":        req.Input,
	})
	if err != nil {
		return "", fmt.Errorf("%w: generate: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("%w: generator returned empty content", contractx.ErrSchemaViolation)
	}
	return strings.TrimSpace(msg.Content), nil
}

func compileGeneratorGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{instructions}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add generator prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add generator model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add generator edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add generator edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add generator edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("generator.graph"))
	if err != nil {
		return nil, fmt.Errorf("compile generator graph: %w", err)
	}
	return runner, nil
}

// toMessages replays user and assistant turns. Tool turns are skipped since the
// assistant turn that follows already carries their content.
func toMessages(turns []contractx.Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		switch turn.Speaker {
		case contractx.SpeakerUser:
			out = append(out, schema.UserMessage(content))
		case contractx.SpeakerAssistant:
			out = append(out, schema.AssistantMessage(content, nil))
		}
	}
	return out
}
