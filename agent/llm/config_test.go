package llm

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

func TestModelForRoleOverrides(t *testing.T) {
	t.Parallel()

	conf := Config{
		Model:                 "google/gemini-2.0-flash-001",
		Temperature:           0.5,
		ClassifierModel:       "openai/gpt-4o-mini",
		ClassifierTemperature: 0,
		GeneratorTemperature:  -1,
	}

	name, temp := conf.ModelFor(contractx.ModelRoleClassifier)
	if name != "openai/gpt-4o-mini" || temp != 0 {
		t.Fatalf("classifier = %s/%v", name, temp)
	}

	name, temp = conf.ModelFor(contractx.ModelRoleGenerator)
	if name != "google/gemini-2.0-flash-001" || temp != 0.5 {
		t.Fatalf("generator = %s/%v", name, temp)
	}
}

func TestOpenRouterForCopiesTransportSettings(t *testing.T) {
	t.Parallel()

	conf := Config{
		BaseURL:              " https://openrouter.ai/api/v1 ",
		APIKey:               " key ",
		Model:                "m",
		MaxCompletionToken:   512,
		SiteName:             "handset-agent",
		GeneratorModel:       "g",
		GeneratorTemperature: 0.7,
	}
	out := conf.OpenRouterFor(contractx.ModelRoleGenerator)
	if out.APIKey != "key" || out.BaseURL != "https://openrouter.ai/api/v1" {
		t.Fatalf("unexpected transport: %+v", out)
	}
	if out.Model != "g" || out.Temperature != 0.7 {
		t.Fatalf("unexpected model: %s/%v", out.Model, out.Temperature)
	}
	if out.MaxCompletionToken == nil || *out.MaxCompletionToken != 512 {
		t.Fatalf("unexpected max tokens: %v", out.MaxCompletionToken)
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	err := Config{Provider: "bedrock", APIKey: "k", Model: "m"}.Validate()
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
	if err := (Config{Provider: "Gemini", APIKey: "k", Model: "m"}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
