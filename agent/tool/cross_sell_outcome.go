package tool

import (
	"context"

	"github.com/rs/zerolog/log"

	classifierx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/classifier"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

var _ contractx.Tool = (*CrossSellOutcomeTool)(nil)

// CrossSellOutcomeTool reduces a reply to exactly "accept" or "decline".
type CrossSellOutcomeTool struct {
	classifier contractx.Classifier
	taxonomy   contractx.Taxonomy
}

func NewCrossSellOutcomeTool(classifier contractx.Classifier, taxonomy contractx.Taxonomy) *CrossSellOutcomeTool {
	return &CrossSellOutcomeTool{classifier: classifier, taxonomy: taxonomy}
}

func (t *CrossSellOutcomeTool) Name() string {
	return contractx.ToolCrossSellOutcome
}

func (t *CrossSellOutcomeTool) Run(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	c, err := classifierx.ClassifyWithHistory(ctx, t.classifier, req.Input, req.Thread.History, t.taxonomy)
	if err != nil {
		return contractx.ToolResult{}, err
	}

	tag := classifierx.TagDecline
	if c.Tag == classifierx.TagAccept {
		tag = classifierx.TagAccept
	}
	log.Debug().
		Str("tag", tag).
		Str("reasoning", c.Reasoning).
		Bool("fallback", c.Fallback).
		Msg("cross-sell outcome classified")

	return contractx.ToolResult{Tool: t.Name(), Text: tag}, nil
}
