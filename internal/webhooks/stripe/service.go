package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/internal/reconciliation"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type eventHandler interface {
	HandleWebhookEvent(ctx context.Context, event reconciliation.WebhookEvent) error
}

// Service decodes Stripe events into reconciliation input.
type Service struct {
	handler eventHandler
}

func NewService(handler eventHandler) (*Service, error) {
	if handler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation handler required")
	}
	return &Service{handler: handler}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	mapped := reconciliation.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		mapped.PaymentIntentID = intent.ID
	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
		}
		if charge.PaymentIntent != nil {
			mapped.PaymentIntentID = charge.PaymentIntent.ID
		}
	}
	return s.handler.HandleWebhookEvent(ctx, mapped)
}
