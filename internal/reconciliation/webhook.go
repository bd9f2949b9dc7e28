package reconciliation

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// Processor event types the engine reacts to.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
	EventChargeRefunded  = "charge.refunded"
)

// Webhook outcomes recorded on the events metric.
const (
	outcomeApplied   = "applied"
	outcomeDuplicate = "duplicate"
	outcomeUnmatched = "unmatched"
	outcomeIgnored   = "ignored"
	outcomeFailed    = "failed"
)

// WebhookEvent is the processor-agnostic part of a payment webhook.
type WebhookEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
}

// HandleWebhookEvent applies one processor event. Every branch is a guarded
// update, so redelivery of the same event leaves the order unchanged.
func (e *Engine) HandleWebhookEvent(ctx context.Context, event WebhookEvent) error {
	ctx = e.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": event.Type,
	})
	if event.PaymentIntentID != "" {
		ctx = e.logg.WithPaymentIntent(ctx, event.PaymentIntentID)
	}

	var handler func(context.Context, *models.Order) (string, error)
	switch event.Type {
	case EventIntentSucceeded:
		handler = e.handleSucceeded
	case EventIntentFailed:
		handler = e.handleFailed
	case EventIntentCanceled:
		handler = e.handleCanceled
	case EventChargeRefunded:
		handler = e.handleRefunded
	default:
		e.logg.Info(ctx, "ignoring unhandled webhook event")
		e.metrics.IncWebhookEvent(event.Type, outcomeIgnored)
		return nil
	}

	if event.PaymentIntentID == "" {
		e.metrics.IncWebhookEvent(event.Type, outcomeFailed)
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook event has no payment intent")
	}
	order, err := e.orders.FindByIntentID(ctx, event.PaymentIntentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			e.logg.Warn(ctx, "webhook event does not match any order")
			e.metrics.IncWebhookEvent(event.Type, outcomeUnmatched)
			return nil
		}
		e.metrics.IncWebhookEvent(event.Type, outcomeFailed)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order by intent")
	}
	ctx = e.logg.WithOrderID(ctx, order.ID.String())

	outcome, err := handler(ctx, order)
	if err != nil {
		e.metrics.IncWebhookEvent(event.Type, outcomeFailed)
		return err
	}
	e.metrics.IncWebhookEvent(event.Type, outcome)
	return nil
}

func (e *Engine) handleSucceeded(ctx context.Context, order *models.Order) (string, error) {
	if !order.CanBePaid() {
		if order.IsPaid() || order.PaymentStatus == enums.PaymentStatusRefunded {
			e.logg.Info(ctx, "order already paid; webhook is a no-op")
			return outcomeDuplicate, nil
		}
		e.logg.Warn(e.logg.WithField(ctx, "order_status", order.Status), "payment succeeded for a cancelled order; not settling")
		return outcomeIgnored, nil
	}

	if e.settle {
		err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := e.markPaidAndSettle(ctx, tx, order, metrics.SourceWebhook); err != nil {
				return err
			}
			if order.SourceCartID == nil {
				return nil
			}
			return e.cleaner.Destroy(ctx, tx, *order.SourceCartID)
		})
		switch {
		case err == nil:
			e.metrics.IncPaymentConfirmed(metrics.SourceWebhook)
			e.alerts.CheckUnits(context.WithoutCancel(ctx), unitsOf(order))
			e.logg.Info(ctx, "payment settled from webhook")
			return outcomeApplied, nil
		case pkgerrors.IsCode(err, pkgerrors.CodeAlreadyPaid):
			e.logg.Info(ctx, "order already paid; webhook is a no-op")
			return outcomeDuplicate, nil
		case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			e.logg.Error(ctx, "stock could not be settled for paid order; applying status only", err)
		default:
			return "", err
		}
	}

	changed := false
	paidAt := e.now().UTC()
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		changed, err = e.orders.WithTx(tx).MarkPaid(ctx, order.ID, paidAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
		}
		if !changed {
			return nil
		}
		return e.emitPaid(ctx, tx, order, metrics.SourceWebhook, false, paidAt)
	})
	if err != nil {
		return "", err
	}
	if !changed {
		return outcomeDuplicate, nil
	}
	e.metrics.IncPaymentConfirmed(metrics.SourceWebhook)
	e.logg.Warn(ctx, "order marked paid without inventory settlement")
	return outcomeApplied, nil
}

func (e *Engine) handleFailed(ctx context.Context, order *models.Order) (string, error) {
	return e.applyTransition(ctx, order, "payment failed", func(tx *gorm.DB) (bool, error) {
		return e.orders.WithTx(tx).MarkPaymentFailed(ctx, order.ID)
	}, outbox.DomainEvent{
		EventType: enums.EventOrderPaymentFailed,
		Data: payloads.OrderPaymentStatusEvent{
			OrderID:         order.ID,
			OrderNumber:     order.OrderNumber,
			PaymentIntentID: intentOf(order),
			PaymentStatus:   enums.PaymentStatusFailed,
		},
	})
}

func (e *Engine) handleCanceled(ctx context.Context, order *models.Order) (string, error) {
	at := e.now().UTC()
	return e.applyTransition(ctx, order, "order cancelled", func(tx *gorm.DB) (bool, error) {
		return e.orders.WithTx(tx).MarkCancelled(ctx, order.ID, at)
	}, outbox.DomainEvent{
		EventType: enums.EventOrderCanceled,
		Data: payloads.OrderCanceledEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Reason:      "payment_intent_canceled",
			CanceledAt:  at,
		},
	})
}

func (e *Engine) handleRefunded(ctx context.Context, order *models.Order) (string, error) {
	at := e.now().UTC()
	return e.applyTransition(ctx, order, "order refunded", func(tx *gorm.DB) (bool, error) {
		return e.orders.WithTx(tx).MarkRefunded(ctx, order.ID, at)
	}, outbox.DomainEvent{
		EventType: enums.EventOrderRefunded,
		Data: payloads.OrderPaymentStatusEvent{
			OrderID:         order.ID,
			OrderNumber:     order.OrderNumber,
			PaymentIntentID: intentOf(order),
			PaymentStatus:   enums.PaymentStatusRefunded,
		},
	})
}

// applyTransition runs a guarded status update and queues its event only
// when the row actually changed.
func (e *Engine) applyTransition(ctx context.Context, order *models.Order, msg string, transition func(tx *gorm.DB) (bool, error), event outbox.DomainEvent) (string, error) {
	changed := false
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		changed, err = transition(tx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if !changed {
			return nil
		}
		event.AggregateType = enums.AggregateOrder
		event.AggregateID = order.ID
		event.Actor = &outbox.ActorRef{UserID: order.UserID, Source: metrics.SourceWebhook}
		return e.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return "", err
	}
	if !changed {
		e.logg.Info(ctx, "webhook transition already applied")
		return outcomeDuplicate, nil
	}
	e.logg.Info(ctx, msg)
	return outcomeApplied, nil
}

func intentOf(order *models.Order) string {
	if order.PaymentIntentID == nil {
		return ""
	}
	return *order.PaymentIntentID
}
