package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderBuilder interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error)
}

type cartFinder interface {
	FindByOwner(ctx context.Context, owner cart.Owner, lock bool) (*models.Cart, error)
}

type orderMetrics interface {
	IncOrderCreated()
}

// Service executes checkout orchestration.
type Service interface {
	CreatePaymentIntent(ctx context.Context, owner cart.Owner, input PaymentIntentInput) (*PaymentIntentResult, error)
}

// PaymentIntentInput is the checkout request after boundary validation.
type PaymentIntentInput struct {
	CartID          uuid.UUID
	ShippingAddress types.Address
	BillingAddress  types.Address
}

type PaymentIntentResult struct {
	PaymentIntentID string          `json:"payment_intent_id"`
	ClientSecret    string          `json:"client_secret"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	Order           orders.OrderDTO `json:"order"`
}

type ServiceParams struct {
	Tx      txRunner
	Carts   cartFinder
	Builder orderBuilder
	Orders  orders.Repository
	Gateway payments.Gateway
	Outbox  outbox.Emitter
	Metrics orderMetrics
	Logger  *logger.Logger
}

type service struct {
	tx      txRunner
	carts   cartFinder
	builder orderBuilder
	orders  orders.Repository
	gateway payments.Gateway
	outbox  outbox.Emitter
	metrics orderMetrics
	logg    *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Builder == nil {
		return nil, fmt.Errorf("order builder required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:      params.Tx,
		carts:   params.Carts,
		builder: params.Builder,
		orders:  params.Orders,
		gateway: params.Gateway,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    logg,
	}, nil
}

// CreatePaymentIntent snapshots the requester's cart into an order, opens a
// payment intent for it and binds the two. An order whose intent could not be
// created is cancelled so it can never be charged.
func (s *service) CreatePaymentIntent(ctx context.Context, owner cart.Owner, input PaymentIntentInput) (*PaymentIntentResult, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart_id is required")
	}

	requesterCart, err := s.carts.FindByOwner(ctx, owner, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if requesterCart.ID != input.CartID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}

	order, err := s.builder.CreateOrder(ctx, orders.CreateOrderInput{
		CartID:          input.CartID,
		UserID:          owner.UserID,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncOrderCreated()
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	intent, err := s.gateway.CreateIntent(ctx, order)
	if err != nil {
		if cancelErr := s.cancelUnchargeable(ctx, order); cancelErr != nil {
			s.logg.Error(ctx, "failed to cancel order after intent failure", cancelErr)
		}
		return nil, err
	}
	ctx = s.logg.WithPaymentIntent(ctx, intent.ID)

	if err := s.orders.SetPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		s.logg.Error(ctx, "payment intent created but not bound to order", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment intent")
	}
	intentID := intent.ID
	order.PaymentIntentID = &intentID

	s.logg.Info(ctx, "payment intent created")
	return &PaymentIntentResult{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          payments.AmountMinor(order.Total),
		Currency:        order.Currency,
		Order:           orders.NewOrderDTO(order),
	}, nil
}

func (s *service) cancelUnchargeable(ctx context.Context, order *models.Order) error {
	at := time.Now().UTC()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		changed, err := s.orders.WithTx(tx).MarkCancelled(ctx, order.ID, at)
		if err != nil || !changed {
			return err
		}
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &at
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID, Source: "checkout"},
			Data: payloads.OrderCanceledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Reason:      "payment_intent_failed",
				CanceledAt:  at,
			},
		})
	})
}
