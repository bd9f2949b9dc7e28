package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fakeIntentAPI struct {
	created    *stripe.PaymentIntentParams
	intent     *stripe.PaymentIntent
	confirmed  bool
	refund     *stripe.RefundParams
	err        error
	deadlineOK bool
}

func (f *fakeIntentAPI) Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	_, f.deadlineOK = ctx.Deadline()
	f.created = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.PaymentIntent{
		ID:           "pi_test",
		ClientSecret: "pi_test_secret",
		Amount:       *params.Amount,
		Currency:     stripe.Currency(*params.Currency),
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
	}, nil
}

func (f *fakeIntentAPI) Get(_ context.Context, id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

func (f *fakeIntentAPI) Confirm(_ context.Context, id string, _ *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	f.confirmed = true
	return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusSucceeded}, nil
}

func (f *fakeIntentAPI) Refund(_ context.Context, params *stripe.RefundParams) (*stripe.Refund, error) {
	f.refund = params
	if f.err != nil {
		return nil, f.err
	}
	amount := int64(4000)
	if params.Amount != nil {
		amount = *params.Amount
	}
	return &stripe.Refund{ID: "re_1", Status: stripe.RefundStatusSucceeded, Amount: amount}, nil
}

type countingMetrics struct {
	ops []string
}

func (m *countingMetrics) ObserveGatewayError(op string) { m.ops = append(m.ops, op) }

func testOrder() *models.Order {
	userID := uuid.New()
	return &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-20260301-000001",
		UserID:      &userID,
		Total:       decimal.RequireFromString("40.00"),
	}
}

func TestAmountMinor(t *testing.T) {
	assert.Equal(t, int64(4000), AmountMinor(decimal.RequireFromString("40.00")))
	assert.Equal(t, int64(1999), AmountMinor(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(101), AmountMinor(decimal.RequireFromString("1.005")))
}

func TestCreateIntent(t *testing.T) {
	api := &fakeIntentAPI{}
	gw, err := NewStripeGateway(StripeGatewayParams{API: api, Currency: "USD", Timeout: time.Second})
	require.NoError(t, err)

	order := testOrder()
	intent, err := gw.CreateIntent(context.Background(), order)
	require.NoError(t, err)

	assert.Equal(t, "pi_test", intent.ID)
	assert.Equal(t, "pi_test_secret", intent.ClientSecret)
	assert.Equal(t, int64(4000), intent.AmountMinor)
	assert.Equal(t, "usd", intent.Currency)
	assert.True(t, api.deadlineOK)

	require.NotNil(t, api.created)
	assert.Equal(t, int64(4000), *api.created.Amount)
	assert.True(t, *api.created.AutomaticPaymentMethods.Enabled)
	assert.Equal(t, order.ID.String(), api.created.Metadata["order_id"])
	assert.Equal(t, order.OrderNumber, api.created.Metadata["order_number"])
	assert.Equal(t, order.UserID.String(), api.created.Metadata["user_id"])
}

func TestGatewayErrorsAreWrapped(t *testing.T) {
	metrics := &countingMetrics{}
	api := &fakeIntentAPI{err: &stripe.Error{Code: stripe.ErrorCodeCardDeclined, HTTPStatusCode: 402, Msg: "card declined"}}
	gw, err := NewStripeGateway(StripeGatewayParams{API: api, Metrics: metrics})
	require.NoError(t, err)

	_, err = gw.CreateIntent(context.Background(), testOrder())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePaymentGateway, typed.Code())
	assert.Equal(t, "payment failed", typed.Message())

	api.err = context.DeadlineExceeded
	_, err = gw.RetrieveOrConfirm(context.Background(), "pi_1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentGateway))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, []string{"create_intent", "retrieve_intent"}, metrics.ops)
}

func TestRetrieveOrConfirm(t *testing.T) {
	api := &fakeIntentAPI{intent: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded}}
	gw, err := NewStripeGateway(StripeGatewayParams{API: api})
	require.NoError(t, err)

	intent, err := gw.RetrieveOrConfirm(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.True(t, intent.Succeeded())
	assert.False(t, api.confirmed)

	api.intent = &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusRequiresConfirmation}
	intent, err = gw.RetrieveOrConfirm(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.True(t, api.confirmed)
	assert.Equal(t, StatusSucceeded, intent.Status)

	_, err = gw.RetrieveOrConfirm(context.Background(), " ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRefund(t *testing.T) {
	api := &fakeIntentAPI{}
	gw, err := NewStripeGateway(StripeGatewayParams{API: api})
	require.NoError(t, err)

	order := testOrder()
	_, err = gw.Refund(context.Background(), order, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	intentID := "pi_paid"
	order.PaymentIntentID = &intentID
	full, err := gw.Refund(context.Background(), order, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), full.AmountMinor)
	assert.Nil(t, api.refund.Amount)
	assert.Equal(t, "pi_paid", *api.refund.PaymentIntent)

	partial := int64(1500)
	re, err := gw.Refund(context.Background(), order, &partial)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), re.AmountMinor)

	zero := int64(0)
	_, err = gw.Refund(context.Background(), order, &zero)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
