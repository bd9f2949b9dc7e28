package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockDecrementer interface {
	Decrement(ctx context.Context, tx *gorm.DB, unit inventory.UnitRef, quantity int) error
}

type alertChecker interface {
	CheckUnits(ctx context.Context, units []inventory.UnitRef)
}

type cartDestroyer interface {
	Destroy(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type pipelineMetrics interface {
	IncPaymentConfirmed(source string)
	IncWebhookEvent(eventType, outcome string)
}

type EngineParams struct {
	Tx      txRunner
	Orders  orders.Repository
	Carts   cart.CartRepository
	Cleaner cartDestroyer
	Stock   stockDecrementer
	Alerts  alertChecker
	Gateway payments.Gateway
	Outbox  outbox.Emitter
	Metrics pipelineMetrics
	Logger  *logger.Logger

	// WebhookSettlesInventory makes a webhook-reported success apply the same
	// stock and cart effects as a client confirm.
	WebhookSettlesInventory bool
	Now                     func() time.Time
}

// Engine advances orders through the payment state machine. The client
// confirm path and the processor webhook converge on the same guarded
// first-time-paid transition.
type Engine struct {
	tx      txRunner
	orders  orders.Repository
	carts   cart.CartRepository
	cleaner cartDestroyer
	stock   stockDecrementer
	alerts  alertChecker
	gateway payments.Gateway
	outbox  outbox.Emitter
	metrics pipelineMetrics
	logg    *logger.Logger
	settle  bool
	now     func() time.Time
}

func NewEngine(params EngineParams) (*Engine, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case params.Cleaner == nil:
		return nil, fmt.Errorf("cart destroyer required")
	case params.Stock == nil:
		return nil, fmt.Errorf("stock ledger required")
	case params.Alerts == nil:
		return nil, fmt.Errorf("stock alerts required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	m := params.Metrics
	if m == nil {
		m = metrics.NewCheckoutMetrics(nil)
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		tx:      params.Tx,
		orders:  params.Orders,
		carts:   params.Carts,
		cleaner: params.Cleaner,
		stock:   params.Stock,
		alerts:  params.Alerts,
		gateway: params.Gateway,
		outbox:  params.Outbox,
		metrics: m,
		logg:    logg,
		settle:  params.WebhookSettlesInventory,
		now:     now,
	}, nil
}

// ConfirmResult is the refreshed order plus whether the guest cookie should be cleared.
type ConfirmResult struct {
	Order        *models.Order
	ClearSession bool
}

// ConfirmPayment is the synchronous client path. It verifies the intent with
// the gateway before any local write, then pays the order, deducts stock and
// destroys the requester's cart in one transaction.
func (e *Engine) ConfirmPayment(ctx context.Context, owner cart.Owner, orderID uuid.UUID, intentID string) (*ConfirmResult, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_intent_id is required")
	}
	ctx = e.logg.WithPaymentIntent(e.logg.WithOrderID(ctx, orderID.String()), intentID)

	order, err := e.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, orderNotFound(err)
	}
	if order.UserID != nil && (owner.UserID == nil || *owner.UserID != *order.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentIntentID == nil || *order.PaymentIntentID != intentID {
		return nil, pkgerrors.New(pkgerrors.CodeIntentMismatch, "payment intent does not match order")
	}
	if err := ensurePayable(order); err != nil {
		return nil, err
	}

	intent, err := e.gateway.RetrieveOrConfirm(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if !intent.Succeeded() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotSucceeded, "payment has not succeeded").
			WithDetails(map[string]any{"status": intent.Status})
	}

	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := e.markPaidAndSettle(ctx, tx, order, metrics.SourceConfirm); err != nil {
			return err
		}
		requesterCart, err := e.carts.WithTx(tx).FindByOwner(ctx, owner, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load requester cart")
		}
		return e.cleaner.Destroy(ctx, tx, requesterCart.ID)
	})
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeAlreadyPaid) {
			e.logg.Error(ctx, "payment succeeded but order could not be settled", err)
		}
		return nil, err
	}

	e.metrics.IncPaymentConfirmed(metrics.SourceConfirm)
	e.alerts.CheckUnits(context.WithoutCancel(ctx), unitsOf(order))
	e.logg.Info(ctx, "payment confirmed")

	refreshed, err := e.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, orderNotFound(err)
	}
	return &ConfirmResult{Order: refreshed, ClearSession: owner.IsGuest()}, nil
}

// ensurePayable rejects orders that were paid before, including refunded ones,
// and orders cancelled without payment.
func ensurePayable(order *models.Order) error {
	switch {
	case order.CanBePaid():
		return nil
	case order.IsPaid(), order.PaymentStatus == enums.PaymentStatusRefunded:
		return pkgerrors.New(pkgerrors.CodeAlreadyPaid, "order already paid")
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be paid").
			WithDetails(map[string]any{"status": order.Status, "payment_status": order.PaymentStatus})
	}
}

// markPaidAndSettle runs the guarded transition plus stock deduction. An
// AlreadyPaid error means another caller won the transition.
func (e *Engine) markPaidAndSettle(ctx context.Context, tx *gorm.DB, order *models.Order, source string) error {
	paidAt := e.now().UTC()
	changed, err := e.orders.WithTx(tx).MarkPaid(ctx, order.ID, paidAt)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
	}
	if !changed {
		return pkgerrors.New(pkgerrors.CodeAlreadyPaid, "order already paid")
	}
	for _, item := range order.Items {
		unit := inventory.UnitRef{ProductID: item.ProductID, VariationID: item.VariationID}
		if err := e.stock.Decrement(ctx, tx, unit, item.Quantity); err != nil {
			return err
		}
	}
	return e.emitPaid(ctx, tx, order, source, true, paidAt)
}

func (e *Engine) emitPaid(ctx context.Context, tx *gorm.DB, order *models.Order, source string, settled bool, paidAt time.Time) error {
	return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Source: source},
		Data: payloads.OrderPaidEvent{
			OrderID:          order.ID,
			OrderNumber:      order.OrderNumber,
			PaymentIntentID:  intentOf(order),
			Total:            order.Total,
			Source:           source,
			InventorySettled: settled,
			PaidAt:           paidAt,
		},
	})
}

// RefundOrder asks the processor to refund a paid order. The charge.refunded
// webhook performs the state change.
func (e *Engine) RefundOrder(ctx context.Context, orderID uuid.UUID, amountMinor *int64) (*payments.Refund, error) {
	order, err := e.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, orderNotFound(err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only paid orders can be refunded").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus.String()})
	}
	if amountMinor != nil && *amountMinor > payments.AmountMinor(order.Total) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds order total").
			WithDetails(map[string]any{"max_amount": payments.AmountMinor(order.Total)})
	}
	refund, err := e.gateway.Refund(ctx, order, amountMinor)
	if err != nil {
		return nil, err
	}
	e.logg.Info(e.logg.WithFields(e.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"refund_id": refund.ID,
		"amount":    refund.AmountMinor,
	}), "refund requested")
	return refund, nil
}

func unitsOf(order *models.Order) []inventory.UnitRef {
	units := make([]inventory.UnitRef, 0, len(order.Items))
	for _, item := range order.Items {
		units = append(units, inventory.UnitRef{ProductID: item.ProductID, VariationID: item.VariationID})
	}
	return units
}

func orderNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}
