package tool

import (
	"context"
	"fmt"
	"strings"

	catalogx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/catalog"
	classifierx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/classifier"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

const (
	DefaultShopBaseURL  = "https://shop.singtel.com"
	DefaultAccessoryURL = "https://shop.singtel.com/accessories/rrp-products/xpower-b10h-built-in-2-usb-c-cables-power-bank"
)

var _ contractx.Tool = (*CheckoutTool)(nil)

type CheckoutTool struct {
	handsets     *catalogx.Handsets
	shopBaseURL  string
	accessoryURL string
}

func NewCheckoutTool(handsets *catalogx.Handsets, shopBaseURL, accessoryURL string) *CheckoutTool {
	if strings.TrimSpace(shopBaseURL) == "" {
		shopBaseURL = DefaultShopBaseURL
	}
	if strings.TrimSpace(accessoryURL) == "" {
		accessoryURL = DefaultAccessoryURL
	}
	return &CheckoutTool{
		handsets:     handsets,
		shopBaseURL:  strings.TrimRight(shopBaseURL, "/"),
		accessoryURL: accessoryURL,
	}
}

func (t *CheckoutTool) Name() string {
	return contractx.ToolCheckout
}

// Run expects req.Outcome to be a cross-sell tag; anything but accept is a decline.
func (t *CheckoutTool) Run(_ context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	model := strings.TrimSpace(req.Thread.SelectedModel)
	if model == "" {
		return contractx.ToolResult{}, fmt.Errorf("%w: no phone model selected", contractx.ErrValidation)
	}

	data := contractx.CheckoutData{
		Outcome:  classifierx.TagDecline,
		PhoneURL: t.phoneURL(model),
	}
	if req.Outcome == classifierx.TagAccept {
		data.Outcome = classifierx.TagAccept
		data.AccessoryURL = t.accessoryURL
	}

	var b strings.Builder
	if data.AccessoryURL != "" {
		fmt.Fprintf(&b, "Wonderful! You can check out the %s and the power bank here:\n", model)
	} else {
		fmt.Fprintf(&b, "No problem! You can check out the %s here:\n", model)
	}
	b.WriteString(strings.Join(data.URLs(), "\n"))

	return contractx.ToolResult{Tool: t.Name(), Text: b.String(), Data: data}, nil
}

func (t *CheckoutTool) phoneURL(model string) string {
	if t.handsets != nil {
		if doc, ok := t.handsets.Find(model); ok {
			if u := doc.Attr("url"); u != "" {
				return u
			}
		}
	}
	return t.shopBaseURL + "/phones/" + catalogx.Slug(model)
}
