package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const defaultTimeout = 15 * time.Second

type StripeGatewayParams struct {
	API      IntentAPI
	Currency string
	Timeout  time.Duration
	Logger   *logger.Logger
	Metrics  gatewayMetrics
}

type gatewayMetrics interface {
	ObserveGatewayError(operation string)
}

// StripeGateway implements Gateway on Stripe payment intents.
type StripeGateway struct {
	api      IntentAPI
	currency string
	timeout  time.Duration
	logg     *logger.Logger
	metrics  gatewayMetrics
}

func NewStripeGateway(params StripeGatewayParams) (*StripeGateway, error) {
	if params.API == nil {
		return nil, fmt.Errorf("stripe api required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &StripeGateway{
		api:      params.API,
		currency: currency,
		timeout:  timeout,
		logg:     logg,
		metrics:  params.Metrics,
	}, nil
}

func (g *StripeGateway) CreateIntent(ctx context.Context, order *models.Order) (*Intent, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	amount := AmountMinor(order.Total)
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("order_number", order.OrderNumber)
	if order.UserID != nil {
		params.AddMetadata("user_id", order.UserID.String())
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	pi, err := g.api.Create(callCtx, params)
	if err != nil {
		return nil, g.gatewayError(ctx, "create_intent", err)
	}
	return toIntent(pi), nil
}

// RetrieveOrConfirm fetches the intent and confirms it when Stripe is still
// waiting for confirmation.
func (g *StripeGateway) RetrieveOrConfirm(ctx context.Context, intentID string) (*Intent, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_intent_id is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	pi, err := g.api.Get(callCtx, intentID, &stripe.PaymentIntentParams{})
	if err != nil {
		return nil, g.gatewayError(ctx, "retrieve_intent", err)
	}
	if pi.Status == stripe.PaymentIntentStatusRequiresConfirmation {
		pi, err = g.api.Confirm(callCtx, intentID, &stripe.PaymentIntentConfirmParams{})
		if err != nil {
			return nil, g.gatewayError(ctx, "confirm_intent", err)
		}
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) Refund(ctx context.Context, order *models.Order, amountMinor *int64) (*Refund, error) {
	if order == nil || order.PaymentIntentID == nil || *order.PaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no payment intent")
	}
	params := &stripe.RefundParams{PaymentIntent: stripe.String(*order.PaymentIntentID)}
	if amountMinor != nil {
		if *amountMinor <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
		}
		params.Amount = stripe.Int64(*amountMinor)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	re, err := g.api.Refund(callCtx, params)
	if err != nil {
		return nil, g.gatewayError(ctx, "refund", err)
	}
	return &Refund{ID: re.ID, Status: string(re.Status), AmountMinor: re.Amount}, nil
}

// gatewayError logs processor detail and returns an error whose public
// message never leaks it.
func (g *StripeGateway) gatewayError(ctx context.Context, operation string, err error) error {
	fields := map[string]any{"operation": operation}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		fields["stripe_code"] = string(stripeErr.Code)
		fields["stripe_status"] = stripeErr.HTTPStatusCode
		fields["stripe_request_id"] = stripeErr.RequestID
	}
	if errors.Is(err, context.DeadlineExceeded) {
		fields["timeout"] = g.timeout.String()
	}
	g.logg.Error(g.logg.WithFields(ctx, fields), "payment gateway call failed", err)
	if g.metrics != nil {
		g.metrics.ObserveGatewayError(operation)
	}
	return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "payment failed")
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return &Intent{}
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
	}
}
