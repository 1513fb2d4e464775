package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

var (
	_ contractx.Classifier        = (*Classifier)(nil)
	_ contractx.HistoryClassifier = (*Classifier)(nil)
)

type llmOutput struct {
	Tag       string `json:"tag"`
	Reasoning string `json:"reasoning"`
}

// Classifier is the single model-backed classify(text, taxonomy) capability.
// One eino graph is compiled per taxonomy (name and tag set) and reused.
type Classifier struct {
	chatModel  einomodel.BaseChatModel
	basePrompt string

	mu      sync.Mutex
	runners map[string]compose.Runnable[map[string]any, llmOutput]
}

func New(chatModel einomodel.BaseChatModel, basePrompt string) (*Classifier, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: classifier chat model is nil", contractx.ErrValidation)
	}
	if strings.TrimSpace(basePrompt) == "" {
		return nil, fmt.Errorf("%w: classifier base prompt", contractx.ErrPromptMissing)
	}
	return &Classifier{
		chatModel:  chatModel,
		basePrompt: strings.TrimSpace(basePrompt),
		runners:    make(map[string]compose.Runnable[map[string]any, llmOutput]),
	}, nil
}

func (c *Classifier) Classify(ctx context.Context, text string, taxonomy contractx.Taxonomy) (contractx.Classification, error) {
	return c.ClassifyWithHistory(ctx, text, nil, taxonomy)
}

// ClassifyWithHistory replays earlier turns ahead of text. The tag always
// describes text; history only disambiguates it.
func (c *Classifier) ClassifyWithHistory(ctx context.Context, text string, history []contractx.Turn, taxonomy contractx.Taxonomy) (contractx.Classification, error) {
	if err := validateTaxonomy(taxonomy); err != nil {
		return contractx.Classification{}, err
	}

	runner, err := c.runnerFor(ctx, taxonomy)
	if err != nil {
		return contractx.Classification{}, err
	}

	out, err := runner.Invoke(ctx, map[string]any{
		"input":   text,
		"history": historyMessages(history),
	})
	if err != nil {
		return contractx.Classification{}, fmt.Errorf("%w: classify %s: %v", contractx.ErrModelInvoke, taxonomy.Name, err)
	}

	tag := normalizeTag(out.Tag)
	if !taxonomy.Allows(tag) {
		log.Debug().
			Str("taxonomy", taxonomy.Name).
			Str("raw_tag", out.Tag).
			Str("fallback", taxonomy.Fallback).
			Msg("classifier returned a tag outside the taxonomy")
		return contractx.Classification{
			Tag:       taxonomy.Fallback,
			Reasoning: strings.TrimSpace(out.Reasoning),
			Fallback:  true,
		}, nil
	}

	return contractx.Classification{
		Tag:       tag,
		Reasoning: strings.TrimSpace(out.Reasoning),
	}, nil
}

func (c *Classifier) runnerFor(ctx context.Context, taxonomy contractx.Taxonomy) (compose.Runnable[map[string]any, llmOutput], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := taxonomy.Name + "|" + strings.Join(taxonomy.Tags, ",")
	if runner, ok := c.runners[key]; ok {
		return runner, nil
	}

	runner, err := compileClassifierGraph(ctx, c.chatModel, c.systemPrompt(taxonomy), "classifier."+taxonomy.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s classifier graph: %v", contractx.ErrModelInvoke, taxonomy.Name, err)
	}
	c.runners[key] = runner
	return runner, nil
}

func (c *Classifier) systemPrompt(taxonomy contractx.Taxonomy) string {
	var b strings.Builder
	b.WriteString(c.basePrompt)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(taxonomy.Instructions))
	b.WriteString("\n\nAllowed tags: ")
	b.WriteString(strings.Join(taxonomy.Tags, ", "))
	return b.String()
}

func compileClassifierGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, llmOutput], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[llmOutput](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, llmOutput]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add classifier prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add classifier model node: %w", err)
	}
	if err := graph.AddLambdaNode("normalize", compose.InvokableLambda(normalizeMessage)); err != nil {
		return nil, fmt.Errorf("add classifier normalize node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add classifier parser node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add classifier edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add classifier edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "normalize"); err != nil {
		return nil, fmt.Errorf("add classifier edge model->normalize: %w", err)
	}
	if err := graph.AddEdge("normalize", "parse_json"); err != nil {
		return nil, fmt.Errorf("add classifier edge normalize->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add classifier edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile classifier graph: %w", err)
	}
	return runner, nil
}

// historyMessages keeps user and assistant turns. Tool output never reaches
// the classifier.
func historyMessages(turns []contractx.Turn) []*schema.Message {
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

// normalizeMessage turns whatever the model produced into a JSON object the
// parser accepts: fences are stripped, an embedded object is cut out, and a
// bare word answer becomes the tag.
func normalizeMessage(ctx context.Context, msg *schema.Message) (*schema.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: empty classifier response", contractx.ErrSchemaViolation)
	}

	content := stripFences(msg.Content)
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			return &schema.Message{Role: msg.Role, Content: content[start : end+1]}, nil
		}
	}

	fields := strings.Fields(content)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty classifier response", contractx.ErrSchemaViolation)
	}
	raw, err := json.Marshal(llmOutput{Tag: fields[0]})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	return &schema.Message{Role: msg.Role, Content: string(raw)}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return strings.Trim(tag, "\"'`.,!:;")
}

func validateTaxonomy(t contractx.Taxonomy) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: taxonomy name is required", contractx.ErrValidation)
	}
	if len(t.Tags) == 0 {
		return fmt.Errorf("%w: taxonomy %s has no tags", contractx.ErrValidation, t.Name)
	}
	if !t.Allows(t.Fallback) {
		return fmt.Errorf("%w: taxonomy %s fallback %q is not one of its tags", contractx.ErrValidation, t.Name, t.Fallback)
	}
	if strings.TrimSpace(t.Instructions) == "" {
		return fmt.Errorf("%w: taxonomy %s instructions", contractx.ErrPromptMissing, t.Name)
	}
	return nil
}
