package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type stockReader interface {
	Level(ctx context.Context, tx *gorm.DB, unit inventory.UnitRef) (inventory.StockLevel, error)
}

// CreateOrderInput is everything needed to snapshot a cart into an order.
type CreateOrderInput struct {
	CartID           uuid.UUID
	UserID           *uuid.UUID
	ShippingAddress  types.Address
	BillingAddress   types.Address
	PaymentIntentRef *string
}

type BuilderParams struct {
	Tx       txRunner
	Orders   Repository
	Carts    cart.CartRepository
	Stock    stockReader
	Numbers  *NumberGenerator
	Outbox   outbox.Emitter
	Currency string
	Logger   *logger.Logger
}

// Builder turns a cart into a pending order. Stock is checked but never
// decremented here; payment confirmation owns the decrement.
type Builder struct {
	tx       txRunner
	orders   Repository
	carts    cart.CartRepository
	stock    stockReader
	numbers  *NumberGenerator
	outbox   outbox.Emitter
	currency string
	logg     *logger.Logger
}

func NewBuilder(params BuilderParams) (*Builder, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	numbers := params.Numbers
	if numbers == nil {
		numbers = NewNumberGenerator(DefaultNumberAttempts)
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Builder{
		tx:       params.Tx,
		orders:   params.Orders,
		carts:    params.Carts,
		stock:    params.Stock,
		numbers:  numbers,
		outbox:   params.Outbox,
		currency: currency,
		logg:     logg,
	}, nil
}

// CreateOrder runs in one transaction; any failure leaves no order behind.
func (b *Builder) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart_id is required")
	}

	var order *models.Order
	err := b.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := b.carts.WithTx(tx)
		orders := b.orders.WithTx(tx)

		source, err := carts.FindByID(ctx, input.CartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if len(source.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}

		items := make([]models.OrderItem, 0, len(source.Items))
		for _, item := range source.Items {
			line, err := b.snapshotItem(ctx, tx, carts, item)
			if err != nil {
				return err
			}
			items = append(items, line)
		}

		number, err := b.numbers.Next(ctx, orders.NumberExists)
		if err != nil {
			return err
		}

		sourceID := source.ID
		order = &models.Order{
			OrderNumber:     number,
			UserID:          input.UserID,
			SourceCartID:    &sourceID,
			Total:           source.Total(),
			Currency:        b.currency,
			Status:          enums.OrderStatusPending,
			PaymentStatus:   enums.PaymentStatusPending,
			PaymentIntentID: input.PaymentIntentRef,
			Items:           items,
			Addresses: []models.OrderAddress{
				models.NewOrderAddress(uuid.Nil, enums.AddressTypeShipping, input.ShippingAddress),
				models.NewOrderAddress(uuid.Nil, enums.AddressTypeBilling, input.BillingAddress),
			},
		}
		if err := orders.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		return b.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Source: "checkout"},
			Data:          orderCreatedPayload(order),
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := b.logg.WithOrderID(ctx, order.ID.String())
	b.logg.Info(b.logg.WithFields(logCtx, map[string]any{
		"order_number": order.OrderNumber,
		"total":        order.Total.StringFixed(2),
		"items":        len(order.Items),
	}), "order created")
	return order, nil
}

func (b *Builder) snapshotItem(ctx context.Context, tx *gorm.DB, carts cart.CartRepository, item models.CartItem) (models.OrderItem, error) {
	unit := inventory.UnitRef{ProductID: item.ProductID, VariationID: item.VariationID}
	level, err := b.stock.Level(ctx, tx, unit)
	if err != nil {
		return models.OrderItem{}, err
	}
	if level.Stock < item.Quantity {
		return models.OrderItem{}, pkgerrors.New(pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("only %d of %s available", max(level.Stock, 0), level.ProductName)).
			WithDetails(map[string]any{
				"product_id":   item.ProductID.String(),
				"product_name": level.ProductName,
				"available":    max(level.Stock, 0),
				"requested":    item.Quantity,
			})
	}

	line := models.OrderItem{
		ProductID:   item.ProductID,
		VariationID: item.VariationID,
		ProductName: level.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Subtotal:    item.Subtotal(),
	}
	if item.VariationID != nil {
		variation, err := carts.FindVariation(ctx, *item.VariationID)
		if err != nil {
			return models.OrderItem{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variation")
		}
		label := variation.Label()
		line.VariationLabel = &label
	}
	return line, nil
}

func orderCreatedPayload(order *models.Order) payloads.OrderCreatedEvent {
	lines := make([]payloads.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, payloads.OrderLine{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Quantity:    item.Quantity,
		})
	}
	return payloads.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
		Currency:    order.Currency,
		Items:       lines,
	}
}
