package reconciliation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type stubGateway struct {
	mu       sync.Mutex
	status   string
	err      error
	calls    int
	refunded *models.Order
}

func (g *stubGateway) CreateIntent(context.Context, *models.Order) (*payments.Intent, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) RetrieveOrConfirm(_ context.Context, intentID string) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &payments.Intent{ID: intentID, Status: g.status}, nil
}

func (g *stubGateway) Refund(_ context.Context, order *models.Order, amount *int64) (*payments.Refund, error) {
	g.refunded = order
	value := payments.AmountMinor(order.Total)
	if amount != nil {
		value = *amount
	}
	return &payments.Refund{ID: "re_1", Status: "succeeded", AmountMinor: value}, nil
}

type fixture struct {
	client  *db.Client
	carts   cart.Service
	builder *orders.Builder
	orders  orders.Repository
	gateway *stubGateway
	engine  *Engine
}

func newFixture(t *testing.T, settle bool) *fixture {
	t.Helper()
	client := dbtest.New(t)
	ledger := inventory.NewLedger(client.DB())
	cartRepo := cart.NewRepository(client.DB())
	carts, err := cart.NewService(cart.ServiceParams{Repo: cartRepo, Tx: client, Stock: ledger})
	require.NoError(t, err)
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop())
	alerts, err := inventory.NewAlerts(client, ledger, emitter, logger.Nop())
	require.NoError(t, err)
	orderRepo := orders.NewRepository(client.DB())
	builder, err := orders.NewBuilder(orders.BuilderParams{
		Tx: client, Orders: orderRepo, Carts: cartRepo, Stock: ledger, Outbox: emitter,
	})
	require.NoError(t, err)

	gateway := &stubGateway{status: payments.StatusSucceeded}
	engine, err := NewEngine(EngineParams{
		Tx:                      client,
		Orders:                  orderRepo,
		Carts:                   cartRepo,
		Cleaner:                 carts,
		Stock:                   ledger,
		Alerts:                  alerts,
		Gateway:                 gateway,
		Outbox:                  emitter,
		WebhookSettlesInventory: settle,
	})
	require.NoError(t, err)
	return &fixture{client: client, carts: carts, builder: builder, orders: orderRepo, gateway: gateway, engine: engine}
}

// checkout fills the owner's cart and creates an order bound to intentID.
func (f *fixture) checkout(t *testing.T, owner cart.Owner, product *models.Product, qty int, intentID string) *models.Order {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, owner, cart.AddItemInput{ProductID: product.ID, Quantity: qty})
	require.NoError(t, err)
	c, err := f.carts.Get(ctx, owner)
	require.NoError(t, err)
	order, err := f.builder.CreateOrder(ctx, orders.CreateOrderInput{
		CartID:          c.ID,
		UserID:          owner.UserID,
		ShippingAddress: dbtest.Address(),
		BillingAddress:  dbtest.Address(),
	})
	require.NoError(t, err)
	require.NoError(t, f.orders.SetPaymentIntent(ctx, order.ID, intentID))
	return order
}

func (f *fixture) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestConfirmPaymentHappyPathIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	product := dbtest.SimpleProduct(t, f.client.DB(), "Widget", "20.00", 10, 3)
	owner := cart.GuestOwner("guest-checkout")

	order := f.checkout(t, owner, product, 2, "pi_happy")
	assert.Equal(t, "40.00", order.Total.StringFixed(2))
	assert.Equal(t, int64(4000), payments.AmountMinor(order.Total))

	result, err := f.engine.ConfirmPayment(ctx, owner, order.ID, "pi_happy")
	require.NoError(t, err)
	assert.True(t, result.ClearSession)
	assert.Equal(t, enums.OrderStatusProcessing, result.Order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, result.Order.PaymentStatus)
	assert.NotNil(t, result.Order.PaidAt)
	assert.Equal(t, 8, dbtest.Stock(t, f.client.DB(), product.ID, nil))

	_, err = f.carts.Get(ctx, owner)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.engine.ConfirmPayment(ctx, owner, order.ID, "pi_happy")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyPaid))
	assert.Equal(t, 8, dbtest.Stock(t, f.client.DB(), product.ID, nil))
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventOrderPaid))
}

func TestConfirmPaymentGuards(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	product := dbtest.SimpleProduct(t, f.client.DB(), "Widget", "20.00", 10, 3)
	userID := uuid.New()
	owner := cart.UserOwner(userID)
	order := f.checkout(t, owner, product, 1, "pi_guard")

	_, err := f.engine.ConfirmPayment(ctx, owner, uuid.New(), "pi_guard")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.engine.ConfirmPayment(ctx, cart.UserOwner(uuid.New()), order.ID, "pi_guard")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.engine.ConfirmPayment(ctx, owner, order.ID, "pi_other")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIntentMismatch))
	assert.Zero(t, f.gateway.calls)

	f.gateway.status = "requires_payment_method"
	_, err = f.engine.ConfirmPayment(ctx, owner, order.ID, "pi_guard")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePaymentNotSucceeded, typed.Code())
	assert.Equal(t, map[string]any{"status": "requires_payment_method"}, typed.Details())

	f.gateway.status = payments.StatusSucceeded
	f.gateway.err = pkgerrors.New(pkgerrors.CodePaymentGateway, "payment failed")
	_, err = f.engine.ConfirmPayment(ctx, owner, order.ID, "pi_guard")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentGateway))

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)
	assert.Equal(t, 10, dbtest.Stock(t, f.client.DB(), product.ID, nil))
}

func TestConfirmPaymentRollsBackWhenStockIsGone(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	product := dbtest.SimpleProduct(t, f.client.DB(), "Widget", "20.00", 2, 0)
	owner := cart.GuestOwner("late")
	order := f.checkout(t, owner, product, 2, "pi_late")

	require.NoError(t, f.client.DB().Model(&models.Product{}).Where("id = ?", product.ID).Update("stock", 1).Error)

	_, err := f.engine.ConfirmPayment(ctx, owner, order.ID, "pi_late")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)
	_, err = f.carts.Get(ctx, owner)
	assert.NoError(t, err, "cart must survive a rolled back confirm")
}

func TestConfirmPaymentRaisesStockAlert(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	product := dbtest.SimpleProduct(t, f.client.DB(), "Widget", "20.00", 5, 3)
	owner := cart.GuestOwner("alert")
	order := f.checkout(t, owner, product, 3, "pi_alert")

	_, err := f.engine.ConfirmPayment(ctx, owner, order.ID, "pi_alert")
	require.NoError(t, err)

	var alerts []models.StockAlert
	require.NoError(t, f.client.DB().Find(&alerts).Error)
	require.Len(t, alerts, 1)
	assert.Equal(t, enums.StockAlertTypeLowStock, alerts[0].AlertType)
	assert.Equal(t, 2, alerts[0].StockAtAlert)
}

func TestRefundOrder(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	product := dbtest.SimpleProduct(t, f.client.DB(), "Widget", "20.00", 10, 3)
	owner := cart.GuestOwner("refund")
	order := f.checkout(t, owner, product, 1, "pi_refund")

	_, err := f.engine.RefundOrder(ctx, order.ID, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.engine.ConfirmPayment(ctx, owner, order.ID, "pi_refund")
	require.NoError(t, err)

	tooMuch := int64(5000)
	_, err = f.engine.RefundOrder(ctx, order.ID, &tooMuch)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	refund, err := f.engine.RefundOrder(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), refund.AmountMinor)
	require.NotNil(t, f.gateway.refunded)
	assert.Equal(t, order.ID, f.gateway.refunded.ID)

	_, err = f.engine.RefundOrder(ctx, uuid.New(), nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConcurrentConfirmsDeductOnce(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	product := dbtest.SimpleProduct(t, f.client.DB(), "Widget", "20.00", 10, 3)
	owner := cart.GuestOwner("double-click")
	order := f.checkout(t, owner, product, 2, "pi_twice")

	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.ConfirmPayment(ctx, owner, order.ID, "pi_twice")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyPaid), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 8, dbtest.Stock(t, f.client.DB(), product.ID, nil))
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventOrderPaid))
}

func TestConcurrentConfirmsOnSharedUnitNeverOversell(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	product := dbtest.SimpleProduct(t, f.client.DB(), "Widget", "20.00", 3, 1)
	first := cart.GuestOwner("shopper-a")
	second := cart.GuestOwner("shopper-b")
	orderA := f.checkout(t, first, product, 2, "pi_a")
	orderB := f.checkout(t, second, product, 2, "pi_b")

	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = f.engine.ConfirmPayment(ctx, first, orderA.ID, "pi_a")
	}()
	go func() {
		defer wg.Done()
		_, errB = f.engine.ConfirmPayment(ctx, second, orderB.ID, "pi_b")
	}()
	wg.Wait()

	require.True(t, (errA == nil) != (errB == nil), "exactly one confirm should settle: a=%v b=%v", errA, errB)
	failed := errA
	if failed == nil {
		failed = errB
	}
	assert.True(t, pkgerrors.IsCode(failed, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, 1, dbtest.Stock(t, f.client.DB(), product.ID, nil))
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventOrderPaid))
}
