package checkout

import (
	"context"
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
	err     error
	created []*models.Order
}

func (g *stubGateway) CreateIntent(_ context.Context, order *models.Order) (*payments.Intent, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, order)
	return &payments.Intent{
		ID:           "pi_" + order.OrderNumber,
		ClientSecret: "secret_" + order.OrderNumber,
		Status:       payments.StatusRequiresConfirmation,
		AmountMinor:  payments.AmountMinor(order.Total),
		Currency:     order.Currency,
	}, nil
}

func (g *stubGateway) RetrieveOrConfirm(context.Context, string) (*payments.Intent, error) {
	return nil, nil
}

func (g *stubGateway) Refund(context.Context, *models.Order, *int64) (*payments.Refund, error) {
	return nil, nil
}

type countingMetrics struct{ created int }

func (m *countingMetrics) IncOrderCreated() { m.created++ }

type fixture struct {
	client  *db.Client
	carts   cart.Service
	orders  orders.Repository
	gateway *stubGateway
	metrics *countingMetrics
	svc     Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.New(t)
	ledger := inventory.NewLedger(client.DB())
	cartRepo := cart.NewRepository(client.DB())
	carts, err := cart.NewService(cart.ServiceParams{Repo: cartRepo, Tx: client, Stock: ledger})
	require.NoError(t, err)

	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop())
	orderRepo := orders.NewRepository(client.DB())
	builder, err := orders.NewBuilder(orders.BuilderParams{
		Tx:       client,
		Orders:   orderRepo,
		Carts:    cartRepo,
		Stock:    ledger,
		Outbox:   emitter,
		Currency: "usd",
	})
	require.NoError(t, err)

	f := &fixture{client: client, carts: carts, orders: orderRepo, gateway: &stubGateway{}, metrics: &countingMetrics{}}
	f.svc, err = NewService(ServiceParams{
		Tx:      client,
		Carts:   cartRepo,
		Builder: builder,
		Orders:  orderRepo,
		Gateway: f.gateway,
		Outbox:  emitter,
		Metrics: f.metrics,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) fillCart(t *testing.T, owner cart.Owner, productID uuid.UUID, qty int) *models.Cart {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), owner, cart.AddItemInput{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
	c, err := f.carts.Get(context.Background(), owner)
	require.NoError(t, err)
	return c
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreatePaymentIntentBindsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.SimpleProduct(t, f.client.DB(), "Lamp", "12.50", 10, 1)
	owner := cart.UserOwner(uuid.New())
	source := f.fillCart(t, owner, product.ID, 3)

	res, err := f.svc.CreatePaymentIntent(ctx, owner, PaymentIntentInput{
		CartID:          source.ID,
		ShippingAddress: dbtest.Address(),
		BillingAddress:  dbtest.Address(),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3750), res.Amount)
	assert.Equal(t, "usd", res.Currency)
	assert.Equal(t, "pi_"+res.Order.OrderNumber, res.PaymentIntentID)
	assert.NotEmpty(t, res.ClientSecret)
	assert.Equal(t, "37.50", res.Order.Total)
	require.NotNil(t, res.Order.PaymentIntentID)
	assert.Equal(t, res.PaymentIntentID, *res.Order.PaymentIntentID)
	assert.Equal(t, 1, f.metrics.created)

	stored, err := f.orders.FindByIntentID(ctx, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, res.Order.ID, stored.ID)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)

	// the cart survives until payment is confirmed
	count, err := f.carts.Count(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 10, dbtest.Stock(t, f.client.DB(), product.ID, nil))
}

func TestCreatePaymentIntentRejectsForeignCart(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SimpleProduct(t, f.client.DB(), "Lamp", "12.50", 10, 1)
	other := f.fillCart(t, cart.GuestOwner("someone-else"), product.ID, 1)
	owner := cart.GuestOwner("me")
	f.fillCart(t, owner, product.ID, 1)

	_, err := f.svc.CreatePaymentIntent(context.Background(), owner, PaymentIntentInput{
		CartID:          other.ID,
		ShippingAddress: dbtest.Address(),
		BillingAddress:  dbtest.Address(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Empty(t, f.gateway.created)
}

func TestCreatePaymentIntentEmptyCart(t *testing.T) {
	f := newFixture(t)
	owner := cart.GuestOwner("empty")
	c, err := f.carts.GetOrCreate(context.Background(), owner)
	require.NoError(t, err)

	_, err = f.svc.CreatePaymentIntent(context.Background(), owner, PaymentIntentInput{
		CartID:          c.ID,
		ShippingAddress: dbtest.Address(),
		BillingAddress:  dbtest.Address(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart))
	assert.Zero(t, f.metrics.created)
}

func TestCreatePaymentIntentCancelsOrderOnGatewayFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.err = pkgerrors.New(pkgerrors.CodePaymentGateway, "payment failed")
	product := dbtest.SimpleProduct(t, f.client.DB(), "Lamp", "12.50", 10, 1)
	owner := cart.UserOwner(uuid.New())
	source := f.fillCart(t, owner, product.ID, 1)

	_, err := f.svc.CreatePaymentIntent(ctx, owner, PaymentIntentInput{
		CartID:          source.ID,
		ShippingAddress: dbtest.Address(),
		BillingAddress:  dbtest.Address(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentGateway))

	var order models.Order
	require.NoError(t, f.client.DB().Where("source_cart_id = ?", source.ID).First(&order).Error)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	assert.NotNil(t, order.CancelledAt)

	var events int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventOrderCanceled).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}
