package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Embedder turns text into vectors. Embed is used for queries and EmbedBatch
// for corpus documents, so providers may apply different task types.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

type Config struct {
	Provider  string        `envconfig:"PROVIDER" split_words:"true" default:"gemini"`
	APIKey    string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model     string        `envconfig:"MODEL" split_words:"true"`
	BaseURL   string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
	CacheSize int           `envconfig:"CACHE_SIZE" split_words:"true" default:"256"`
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Provider)) {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", contractx.ErrValidation, c.Provider)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: embedding api key is required", contractx.ErrValidation)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("%w: embedding cache size must not be negative", contractx.ErrValidation)
	}
	return nil
}

func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg)
	default:
		return NewGeminiEmbedder(ctx, cfg)
	}
}
