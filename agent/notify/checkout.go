package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	qstashx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/qstash"
)

var _ contractx.CheckoutNotifier = (*QStashNotifier)(nil)

type Publisher interface {
	Publish(ctx context.Context, destination string, body any) (qstashx.PublishResponse, error)
}

// QStashNotifier forwards completed checkouts to a webhook through QStash.
type QStashNotifier struct {
	publisher   Publisher
	destination string
}

func NewQStashNotifier(publisher Publisher, destination string) (*QStashNotifier, error) {
	if publisher == nil {
		return nil, errors.New("qstash publisher is nil")
	}
	if strings.TrimSpace(destination) == "" {
		return nil, errors.New("checkout destination is required")
	}
	return &QStashNotifier{publisher: publisher, destination: strings.TrimSpace(destination)}, nil
}

func (n *QStashNotifier) NotifyCheckout(ctx context.Context, event contractx.CheckoutEvent) error {
	resp, err := n.publisher.Publish(ctx, n.destination, event)
	if err != nil {
		return err
	}
	log.Debug().
		Str("thread_id", event.ThreadID).
		Str("message_id", resp.MessageID).
		Msg("checkout event published")
	return nil
}
