package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

const DefaultAccessory = "XPower B10H power bank"

var _ contractx.Tool = (*CrossSellTool)(nil)

// CrossSellTool offers the accessory as a statement. Generated text that asks
// a question is replaced by the canonical offer.
type CrossSellTool struct {
	generator    contractx.Generator
	instructions string
	accessory    string
}

func NewCrossSellTool(generator contractx.Generator, instructions, accessory string) *CrossSellTool {
	if strings.TrimSpace(accessory) == "" {
		accessory = DefaultAccessory
	}
	return &CrossSellTool{generator: generator, instructions: instructions, accessory: accessory}
}

func (t *CrossSellTool) Name() string {
	return contractx.ToolCrossSell
}

func (t *CrossSellTool) Run(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	model := strings.TrimSpace(req.Thread.SelectedModel)
	if model == "" {
		return contractx.ToolResult{}, fmt.Errorf("%w: no phone model selected", contractx.ErrValidation)
	}

	data := contractx.CrossSellData{PhoneModel: model, Accessory: t.accessory}
	return contractx.ToolResult{
		Tool: t.Name(),
		Text: t.offer(ctx, req, data),
		Data: data,
	}, nil
}

func (t *CrossSellTool) offer(ctx context.Context, req contractx.ToolRequest, data contractx.CrossSellData) string {
	canonical := CanonicalCrossSell(data.PhoneModel, data.Accessory)
	if t.generator == nil || strings.TrimSpace(t.instructions) == "" {
		return canonical
	}

	text, err := t.generator.Generate(ctx, contractx.GenerateRequest{
		Instructions: t.instructions,
		Input: fmt.Sprintf("Customer message: %s\nChosen phone: %s\nAccessory: %s",
			strings.TrimSpace(req.Input), data.PhoneModel, data.Accessory),
		History: req.Thread.History,
	})
	if err != nil {
		log.Warn().Err(err).Msg("cross-sell generation failed, using canonical offer")
		return canonical
	}
	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(text, "?") {
		return canonical
	}
	return text
}

func CanonicalCrossSell(model, accessory string) string {
	return fmt.Sprintf(
		"Great choice, the %s is an excellent phone! Many customers pair it with the %s, which keeps it charged on the go with two built-in USB-C cables.",
		model, accessory,
	)
}
