package contract

import (
	"context"

	catalogx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/catalog"
)

// Classifier maps text onto one tag of a taxonomy.
type Classifier interface {
	Classify(ctx context.Context, text string, taxonomy Taxonomy) (Classification, error)
}

// HistoryClassifier is implemented by classifiers that can read earlier turns
// as context. Only the latest text is classified.
type HistoryClassifier interface {
	ClassifyWithHistory(ctx context.Context, text string, history []Turn, taxonomy Taxonomy) (Classification, error)
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Retriever searches the read-only handset index. Len reports the corpus size.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]catalogx.HandsetDocument, error)
	Len() int
}

type CustomerDirectory interface {
	Lookup(ctx context.Context, customerID int) (catalogx.CustomerRecord, bool, error)
}

type Tool interface {
	Name() string
	Run(ctx context.Context, req ToolRequest) (ToolResult, error)
}

type SafetyPipeline interface {
	Check(ctx context.Context, text string) ([]SafetyVerdict, error)
}

// CheckoutNotifier is told about completed checkout cycles.
type CheckoutNotifier interface {
	NotifyCheckout(ctx context.Context, event CheckoutEvent) error
}

type CheckoutEvent struct {
	ThreadID          string   `json:"thread_id"`
	CustomerID        *int     `json:"customer_id,omitempty"`
	PhoneModel        string   `json:"phone_model"`
	AccessoryAccepted bool     `json:"accessory_accepted"`
	URLs              []string `json:"urls"`
}
