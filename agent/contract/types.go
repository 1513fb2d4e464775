package contract

import (
	"time"

	catalogx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/catalog"
)

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
	SpeakerTool      Speaker = "tool"
)

// Turn is one immutable entry of a conversation log.
type Turn struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Content   string    `json:"content"`
	ToolName  string    `json:"tool_name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ModelRole string

const (
	ModelRoleClassifier ModelRole = "classifier"
	ModelRoleGenerator  ModelRole = "generator"
)

const (
	ToolRecommendation   = "RecommendationTool"
	ToolGetCustomer      = "GetCustomerTool"
	ToolCrossSell        = "CrossSellTool"
	ToolCrossSellOutcome = "CrossSellOutcomeTool"
	ToolCheckout         = "CheckoutTool"
)

// ToolRequest is what the state machine hands to a capability tool.
type ToolRequest struct {
	Input   string
	Thread  ThreadView
	Outcome string
}

// ThreadView is the read-only slice of a conversation a tool may consult.
type ThreadView struct {
	ThreadID      string
	CustomerID    *int
	Recommended   []string
	SelectedModel string
	History       []Turn
}

type ToolResult struct {
	Tool string `json:"tool"`
	Text string `json:"text"`
	Data any    `json:"data,omitempty"`
}

// RecommendationData is the structured part of a RecommendationTool result.
type RecommendationData struct {
	ShowAll    bool                       `json:"show_all"`
	Preference Preference                 `json:"preference"`
	Documents  []catalogx.HandsetDocument `json:"documents"`
	// Relaxed is set when nothing matched the preference and the filter was dropped.
	Relaxed bool `json:"relaxed,omitempty"`
}

type Preference struct {
	Colours []string `json:"colours,omitempty"`
	Size    string   `json:"size,omitempty"`
}

func (p Preference) IsZero() bool {
	return len(p.Colours) == 0 && p.Size == ""
}

// CustomerData is the structured part of a GetCustomerTool result.
type CustomerData struct {
	Found    bool                     `json:"found"`
	Customer *catalogx.CustomerRecord `json:"customer,omitempty"`
	// Reason is ErrIdentificationNotFound, possibly joined with ErrMalformedInput, when Found is false.
	Reason error `json:"-"`
}

type CrossSellData struct {
	PhoneModel string `json:"phone_model"`
	Accessory  string `json:"accessory"`
}

type CheckoutData struct {
	Outcome      string `json:"outcome"`
	PhoneURL     string `json:"phone_url"`
	AccessoryURL string `json:"accessory_url,omitempty"`
}

func (d CheckoutData) URLs() []string {
	if d.AccessoryURL == "" {
		return []string{d.PhoneURL}
	}
	return []string{d.PhoneURL, d.AccessoryURL}
}

type SafetyKind string

const (
	SafetyGuardrail SafetyKind = "guardrail"
	SafetyJailbreak SafetyKind = "jailbreak"
)

type SafetyVerdict struct {
	Kind      SafetyKind `json:"kind"`
	Passed    bool       `json:"passed"`
	Reasoning string     `json:"reasoning"`
}

// Taxonomy is a constrained tag vocabulary for a model-backed classifier.
type Taxonomy struct {
	Name         string
	Instructions string
	Tags         []string
	Fallback     string
}

func (t Taxonomy) Allows(tag string) bool {
	for _, candidate := range t.Tags {
		if candidate == tag {
			return true
		}
	}
	return false
}

type Classification struct {
	Tag       string `json:"tag"`
	Reasoning string `json:"reasoning,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
}

// GenerateRequest asks a generator for free text.
type GenerateRequest struct {
	Instructions string
	Input        string
	History      []Turn
}
