package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

var _ model.BaseChatModel = (*ChatModel)(nil)

var ErrEmptyResponse = errors.New("gemini: empty response")

type Config struct {
	APIKey          string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model           string        `envconfig:"MODEL" split_words:"true" default:"gemini-2.0-flash"`
	Temperature     float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	MaxOutputTokens int32         `envconfig:"MAX_OUTPUT_TOKENS" split_words:"true" default:"2000"`
	Timeout         time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client, nil
}

// ChatModel adapts the Gemini GenerateContent API to eino's BaseChatModel.
type ChatModel struct {
	client *genai.Client
	conf   Config
}

func (c *Config) New(ctx context.Context) (*ChatModel, error) {
	client, err := NewClient(ctx, c.APIKey)
	if err != nil {
		return nil, err
	}
	return NewChatModel(client, *c), nil
}

func NewChatModel(client *genai.Client, conf Config) *ChatModel {
	return &ChatModel{client: client, conf: conf}
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	common := model.GetCommonOptions(&model.Options{
		Model:       &m.conf.Model,
		Temperature: &m.conf.Temperature,
	}, opts...)

	system, contents := toContents(input)
	if len(contents) == 0 {
		return nil, errors.New("gemini: no user or assistant content to send")
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       common.Temperature,
		MaxOutputTokens:   m.conf.MaxOutputTokens,
	}
	if common.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*common.MaxTokens)
	}

	if m.conf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.conf.Timeout)
		defer cancel()
	}

	resp, err := m.client.Models.GenerateContent(ctx, *common.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return schema.AssistantMessage(text, nil), nil
}

// Stream emits the whole completion as a single chunk.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// toContents splits eino messages into a system instruction and a Gemini turn list.
// Tool messages are replayed as user text since no function declarations are sent.
func toContents(input []*schema.Message) (*genai.Content, []*genai.Content) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(input))

	for _, msg := range input {
		if msg == nil {
			continue
		}
		text := strings.TrimSpace(msg.Content)
		if text == "" {
			continue
		}
		switch msg.Role {
		case schema.System:
			systemParts = append(systemParts, text)
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(text, genai.RoleModel))
		case schema.Tool:
			contents = append(contents, genai.NewContentFromText("[tool result] "+text, genai.RoleUser))
		default:
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}
	}

	if len(systemParts) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser), contents
}
