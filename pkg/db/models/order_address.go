package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type OrderAddress struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_order_addresses_order_type"`
	Type       enums.AddressType `gorm:"column:type;type:text;not null;uniqueIndex:ux_order_addresses_order_type"`
	FirstName  string            `gorm:"column:first_name;not null"`
	LastName   string            `gorm:"column:last_name;not null"`
	Email      *string           `gorm:"column:email"`
	Phone      *string           `gorm:"column:phone"`
	Line1      string            `gorm:"column:line1;not null"`
	Line2      *string           `gorm:"column:line2"`
	City       string            `gorm:"column:city;not null"`
	State      *string           `gorm:"column:state"`
	PostalCode string            `gorm:"column:postal_code;not null"`
	Country    string            `gorm:"column:country;not null"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (a *OrderAddress) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// NewOrderAddress copies a checkout address onto an order record.
func NewOrderAddress(orderID uuid.UUID, kind enums.AddressType, addr types.Address) OrderAddress {
	addr = addr.Normalize()
	return OrderAddress{
		OrderID:    orderID,
		Type:       kind,
		FirstName:  addr.FirstName,
		LastName:   addr.LastName,
		Email:      optionalString(addr.Email),
		Phone:      optionalString(addr.Phone),
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      optionalString(addr.State),
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
