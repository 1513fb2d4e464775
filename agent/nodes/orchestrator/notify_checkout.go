package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

// NotifyCheckout publishes a committed checkout. Delivery failures never fail the turn.
func NotifyCheckout(ctx context.Context, in *GraphState, notifier contractx.CheckoutNotifier) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Checkout == nil || notifier == nil {
		return in, nil
	}

	if err := notifier.NotifyCheckout(ctx, *in.Checkout); err != nil {
		log.Warn().Err(err).Str("thread_id", in.ThreadID).Msg("checkout notification failed")
	}
	return in, nil
}
