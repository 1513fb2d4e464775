package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	geminix "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/gemini"
	openrouterx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/openrouter"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

type Config struct {
	Provider           string        `envconfig:"PROVIDER" split_words:"true" default:"openrouter"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	ClassifierModel       string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	GeneratorModel        string  `envconfig:"GENERATOR_MODEL" split_words:"true"`
	ClassifierTemperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"0"`
	GeneratorTemperature  float32 `envconfig:"GENERATOR_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	switch c.provider() {
	case ProviderOpenRouter, ProviderGemini:
	default:
		return fmt.Errorf("%w: unknown llm provider %q", contractx.ErrValidation, c.Provider)
	}
	return nil
}

func (c Config) provider() string {
	return strings.ToLower(strings.TrimSpace(c.Provider))
}

// ModelFor resolves the model name and temperature for a role. A negative role
// temperature falls back to the default.
func (c Config) ModelFor(role contractx.ModelRole) (string, float32) {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch role {
	case contractx.ModelRoleClassifier:
		if v := strings.TrimSpace(c.ClassifierModel); v != "" {
			modelName = v
		}
		if c.ClassifierTemperature >= 0 {
			temp = c.ClassifierTemperature
		}
	case contractx.ModelRoleGenerator:
		if v := strings.TrimSpace(c.GeneratorModel); v != "" {
			modelName = v
		}
		if c.GeneratorTemperature >= 0 {
			temp = c.GeneratorTemperature
		}
	}
	return modelName, temp
}

func (c Config) OpenRouterFor(role contractx.ModelRole) openrouterx.Config {
	modelName, temp := c.ModelFor(role)
	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

func (c Config) GeminiFor(role contractx.ModelRole) geminix.Config {
	modelName, temp := c.ModelFor(role)
	return geminix.Config{
		APIKey:          strings.TrimSpace(c.APIKey),
		Model:           modelName,
		Temperature:     temp,
		MaxOutputTokens: int32(c.MaxCompletionToken),
		Timeout:         c.Timeout,
	}
}

// NewChatModel builds the chat model serving a role on the configured provider.
func (c Config) NewChatModel(ctx context.Context, role contractx.ModelRole) (einomodel.BaseChatModel, error) {
	switch c.provider() {
	case ProviderGemini:
		conf := c.GeminiFor(role)
		m, err := conf.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: build %s model: %v", contractx.ErrModelInvoke, role, err)
		}
		return m, nil
	default:
		conf := c.OpenRouterFor(role)
		m, err := conf.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: build %s model: %v", contractx.ErrModelInvoke, role, err)
		}
		return m, nil
	}
}
