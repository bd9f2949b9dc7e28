package reconciliation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type recordingMetrics struct {
	confirmed []string
	outcomes  map[string][]string
}

func (m *recordingMetrics) IncPaymentConfirmed(source string) {
	m.confirmed = append(m.confirmed, source)
}

func (m *recordingMetrics) IncWebhookEvent(eventType, outcome string) {
	if m.outcomes == nil {
		m.outcomes = map[string][]string{}
	}
	m.outcomes[eventType] = append(m.outcomes[eventType], outcome)
}

func TestWebhookSucceededSettlesOnceAndIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	recorder := &recordingMetrics{}
	f.engine.metrics = recorder

	product := dbtest.SimpleProduct(t, f.client.DB(), "Widget", "20.00", 10, 3)
	userID := uuid.New()
	owner := cart.UserOwner(userID)
	order := f.checkout(t, owner, product, 2, "pi_hook")

	event := WebhookEvent{ID: "evt_1", Type: EventIntentSucceeded, PaymentIntentID: "pi_hook"}
	require.NoError(t, f.engine.HandleWebhookEvent(ctx, event))

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusProcessing, stored.Status)
	assert.Equal(t, 8, dbtest.Stock(t, f.client.DB(), product.ID, nil))
	_, err = f.carts.Get(ctx, owner)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, f.engine.HandleWebhookEvent(ctx, event))
	again, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.PaymentStatus, again.PaymentStatus)
	assert.Equal(t, stored.Status, again.Status)
	assert.Equal(t, 8, dbtest.Stock(t, f.client.DB(), product.ID, nil))
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventOrderPaid))

	// the client confirm arriving after the webhook must not deduct again
	_, err = f.engine.ConfirmPayment(ctx, owner, order.ID, "pi_hook")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyPaid))
	assert.Equal(t, 8, dbtest.Stock(t, f.client.DB(), product.ID, nil))

	assert.Equal(t, []string{metrics.SourceWebhook}, recorder.confirmed)
	assert.Equal(t, []string{outcomeApplied, outcomeDuplicate}, recorder.outcomes[EventIntentSucceeded])
}

func TestWebhookSucceededStatusOnly(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	product := dbtest.SimpleProduct(t, f.client.DB(), "Widget", "20.00", 10, 3)
	owner := cart.GuestOwner("status-only")
	order := f.checkout(t, owner, product, 2, "pi_status")

	require.NoError(t, f.engine.HandleWebhookEvent(ctx, WebhookEvent{ID: "evt_2", Type: EventIntentSucceeded, PaymentIntentID: "pi_status"}))

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, 10, dbtest.Stock(t, f.client.DB(), product.ID, nil))
	_, err = f.carts.Get(ctx, owner)
	assert.NoError(t, err)

	require.NoError(t, f.engine.HandleWebhookEvent(ctx, WebhookEvent{ID: "evt_2", Type: EventIntentSucceeded, PaymentIntentID: "pi_status"}))
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventOrderPaid))
}

func TestWebhookFallsBackToStatusOnlyWhenStockIsShort(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	product := dbtest.SimpleProduct(t, f.client.DB(), "Widget", "20.00", 2, 0)
	owner := cart.GuestOwner("short")
	order := f.checkout(t, owner, product, 2, "pi_short")
	require.NoError(t, f.client.DB().Exec("UPDATE products SET stock = 0 WHERE id = ?", product.ID).Error)

	require.NoError(t, f.engine.HandleWebhookEvent(ctx, WebhookEvent{ID: "evt_3", Type: EventIntentSucceeded, PaymentIntentID: "pi_short"}))

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, 0, dbtest.Stock(t, f.client.DB(), product.ID, nil))
}

func TestWebhookStatusTransitions(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	product := dbtest.SimpleProduct(t, f.client.DB(), "Widget", "20.00", 10, 3)

	failing := f.checkout(t, cart.GuestOwner("failing"), product, 1, "pi_fail")
	require.NoError(t, f.engine.HandleWebhookEvent(ctx, WebhookEvent{ID: "evt_f", Type: EventIntentFailed, PaymentIntentID: "pi_fail"}))
	stored, err := f.orders.FindByID(ctx, failing.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)

	canceled := f.checkout(t, cart.GuestOwner("canceled"), product, 1, "pi_cancel")
	for i := 0; i < 2; i++ {
		require.NoError(t, f.engine.HandleWebhookEvent(ctx, WebhookEvent{ID: "evt_c", Type: EventIntentCanceled, PaymentIntentID: "pi_cancel"}))
	}
	stored, err = f.orders.FindByID(ctx, canceled.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.NotNil(t, stored.CancelledAt)
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventOrderCanceled))

	refundedOwner := cart.GuestOwner("refunded")
	refunded := f.checkout(t, refundedOwner, product, 1, "pi_refunded")
	_, err = f.engine.ConfirmPayment(ctx, refundedOwner, refunded.ID, "pi_refunded")
	require.NoError(t, err)
	require.NoError(t, f.engine.HandleWebhookEvent(ctx, WebhookEvent{ID: "evt_r", Type: EventChargeRefunded, PaymentIntentID: "pi_refunded"}))
	stored, err = f.orders.FindByID(ctx, refunded.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventOrderRefunded))
}

func TestWebhookIgnoresUnknownAndUnmatchedEvents(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	assert.NoError(t, f.engine.HandleWebhookEvent(ctx, WebhookEvent{ID: "evt_x", Type: "customer.created"}))
	assert.NoError(t, f.engine.HandleWebhookEvent(ctx, WebhookEvent{ID: "evt_y", Type: EventIntentSucceeded, PaymentIntentID: "pi_unknown"}))

	err := f.engine.HandleWebhookEvent(ctx, WebhookEvent{ID: "evt_z", Type: EventIntentFailed})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSucceededAfterRefundIsNoOp(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	recorder := &recordingMetrics{}
	f.engine.metrics = recorder

	product := dbtest.SimpleProduct(t, f.client.DB(), "Widget", "20.00", 10, 3)
	owner := cart.UserOwner(uuid.New())
	order := f.checkout(t, owner, product, 2, "pi_refunded")

	succeeded := WebhookEvent{ID: "evt_paid", Type: EventIntentSucceeded, PaymentIntentID: "pi_refunded"}
	require.NoError(t, f.engine.HandleWebhookEvent(ctx, succeeded))
	require.NoError(t, f.engine.HandleWebhookEvent(ctx, WebhookEvent{ID: "evt_refund", Type: EventChargeRefunded, PaymentIntentID: "pi_refunded"}))
	assert.Equal(t, 8, dbtest.Stock(t, f.client.DB(), product.ID, nil))

	// redelivered success after the refund
	require.NoError(t, f.engine.HandleWebhookEvent(ctx, WebhookEvent{ID: "evt_paid_again", Type: EventIntentSucceeded, PaymentIntentID: "pi_refunded"}))

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.Equal(t, 8, dbtest.Stock(t, f.client.DB(), product.ID, nil))

	// the processor still reports the intent as succeeded
	_, err = f.engine.ConfirmPayment(ctx, owner, order.ID, "pi_refunded")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyPaid))

	stored, err = f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, stored.PaymentStatus)
	assert.Equal(t, 8, dbtest.Stock(t, f.client.DB(), product.ID, nil))
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventOrderPaid))
	assert.Equal(t, []string{outcomeApplied, outcomeDuplicate}, recorder.outcomes[EventIntentSucceeded])
}

func TestSucceededForCancelledOrderIsIgnored(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	product := dbtest.SimpleProduct(t, f.client.DB(), "Widget", "20.00", 10, 3)
	owner := cart.GuestOwner("cancelled-first")
	order := f.checkout(t, owner, product, 1, "pi_cancelled")

	require.NoError(t, f.engine.HandleWebhookEvent(ctx, WebhookEvent{ID: "evt_c", Type: EventIntentCanceled, PaymentIntentID: "pi_cancelled"}))
	require.NoError(t, f.engine.HandleWebhookEvent(ctx, WebhookEvent{ID: "evt_s", Type: EventIntentSucceeded, PaymentIntentID: "pi_cancelled"}))

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)
	assert.Equal(t, 10, dbtest.Stock(t, f.client.DB(), product.ID, nil))

	_, err = f.engine.ConfirmPayment(ctx, owner, order.ID, "pi_cancelled")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}
