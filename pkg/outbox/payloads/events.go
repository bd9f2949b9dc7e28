package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderLine is the compact item view carried by order events.
type OrderLine struct {
	ProductID   uuid.UUID  `json:"product_id"`
	VariationID *uuid.UUID `json:"variation_id,omitempty"`
	Quantity    int        `json:"quantity"`
}

// OrderCreatedEvent is emitted when checkout snapshots a cart into an order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id" validate:"required"`
	OrderNumber string          `json:"order_number" validate:"required"`
	UserID      *uuid.UUID      `json:"user_id,omitempty"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	Items       []OrderLine     `json:"items"`
}

// OrderPaidEvent is emitted once per order on the first successful payment.
type OrderPaidEvent struct {
	OrderID          uuid.UUID       `json:"order_id" validate:"required"`
	OrderNumber      string          `json:"order_number"`
	PaymentIntentID  string          `json:"payment_intent_id" validate:"required"`
	Total            decimal.Decimal `json:"total"`
	Source           string          `json:"source"`
	InventorySettled bool            `json:"inventory_settled"`
	PaidAt           time.Time       `json:"paid_at"`
}

// OrderPaymentStatusEvent covers failed and refunded payments.
type OrderPaymentStatusEvent struct {
	OrderID         uuid.UUID           `json:"order_id" validate:"required"`
	OrderNumber     string              `json:"order_number"`
	PaymentIntentID string              `json:"payment_intent_id"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
}

// OrderCanceledEvent is emitted when an order can no longer be paid.
type OrderCanceledEvent struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	OrderNumber string    `json:"order_number"`
	Reason      string    `json:"reason,omitempty"`
	CanceledAt  time.Time `json:"canceled_at"`
}

// StockAlertRaisedEvent notifies catalog owners that a unit crossed a stock threshold.
type StockAlertRaisedEvent struct {
	ProductID   uuid.UUID            `json:"product_id" validate:"required"`
	VariationID *uuid.UUID           `json:"variation_id,omitempty"`
	ProductName string               `json:"product_name"`
	AlertType   enums.StockAlertType `json:"alert_type" validate:"required"`
	Stock       int                  `json:"stock"`
	Threshold   int                  `json:"threshold"`
}
