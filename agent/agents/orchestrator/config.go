package orchestrator

import (
	"fmt"
	"time"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	toolx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/tool"
)

// Config is read with the AGENT prefix.
type Config struct {
	ToolTimeout     time.Duration `split_words:"true" default:"30s"`
	RetrievalK      int           `split_words:"true" default:"6"`
	MaxHistoryTurns int           `split_words:"true" default:"20"`

	ShopBaseURL   string `split_words:"true" default:"https://shop.singtel.com"`
	AccessoryName string `split_words:"true" default:"XPower B10H power bank"`
	AccessoryURL  string `split_words:"true" default:"https://shop.singtel.com/accessories/rrp-products/xpower-b10h-built-in-2-usb-c-cables-power-bank"`

	// CheckoutDestination is the QStash destination for checkout events; empty disables them.
	CheckoutDestination string `split_words:"true"`
}

func (c *Config) Validate() error {
	if c.ToolTimeout < 0 {
		return fmt.Errorf("%w: AGENT_TOOL_TIMEOUT must be >= 0", contractx.ErrValidation)
	}
	if c.RetrievalK < toolx.RecommendationLimit {
		return fmt.Errorf("%w: AGENT_RETRIEVAL_K must be >= %d", contractx.ErrValidation, toolx.RecommendationLimit)
	}
	if c.MaxHistoryTurns < 0 {
		return fmt.Errorf("%w: AGENT_MAX_HISTORY_TURNS must be >= 0", contractx.ErrValidation)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.RetrievalK < toolx.RecommendationLimit {
		c.RetrievalK = 6
	}
	if c.ShopBaseURL == "" {
		c.ShopBaseURL = toolx.DefaultShopBaseURL
	}
	if c.AccessoryName == "" {
		c.AccessoryName = toolx.DefaultAccessory
	}
	if c.AccessoryURL == "" {
		c.AccessoryURL = toolx.DefaultAccessoryURL
	}
	return c
}
