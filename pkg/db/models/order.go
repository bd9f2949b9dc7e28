package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is the immutable snapshot of a cart at checkout time. Only the status
// columns and the payment intent reference change after creation.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID          *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	SourceCartID    *uuid.UUID          `gorm:"column:source_cart_id;type:uuid"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	Currency        string              `gorm:"column:currency;not null;default:'usd'"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentIntentID *string             `gorm:"column:payment_intent_id;uniqueIndex"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	RefundedAt      *time.Time          `gorm:"column:refunded_at"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Addresses       []OrderAddress      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// PayableStatuses are the payment states a first successful payment may
// move out of.
var PayableStatuses = []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusFailed}

func (o Order) IsPaid() bool {
	return o.PaymentStatus == enums.PaymentStatusPaid
}

// CanBePaid reports whether a succeeded payment may still settle the order.
// Refunded and cancelled orders are terminal.
func (o Order) CanBePaid() bool {
	if o.Status == enums.OrderStatusCancelled {
		return false
	}
	for _, status := range PayableStatuses {
		if o.PaymentStatus == status {
			return true
		}
	}
	return false
}

// Address returns the address of the given type, if present.
func (o Order) Address(kind enums.AddressType) (OrderAddress, bool) {
	for _, addr := range o.Addresses {
		if addr.Type == kind {
			return addr, true
		}
	}
	return OrderAddress{}, false
}
