package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type OrderItemDTO struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"product_id"`
	VariationID    *uuid.UUID `json:"variation_id,omitempty"`
	ProductName    string     `json:"product_name"`
	VariationLabel *string    `json:"variation_label,omitempty"`
	Quantity       int        `json:"quantity"`
	UnitPrice      string     `json:"unit_price"`
	Subtotal       string     `json:"subtotal"`
}

type AddressDTO struct {
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"order_number"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	Total           string              `json:"total"`
	Currency        string              `json:"currency"`
	PaymentIntentID *string             `json:"payment_intent_id,omitempty"`
	Items           []OrderItemDTO      `json:"items"`
	ShippingAddress *AddressDTO         `json:"shipping_address,omitempty"`
	BillingAddress  *AddressDTO         `json:"billing_address,omitempty"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

func NewOrderDTO(order *models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			ID:             item.ID,
			ProductID:      item.ProductID,
			VariationID:    item.VariationID,
			ProductName:    item.ProductName,
			VariationLabel: item.VariationLabel,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice.StringFixed(2),
			Subtotal:       item.Subtotal.StringFixed(2),
		})
	}
	dto := OrderDTO{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          order.Status,
		PaymentStatus:   order.PaymentStatus,
		Total:           order.Total.StringFixed(2),
		Currency:        order.Currency,
		PaymentIntentID: order.PaymentIntentID,
		Items:           items,
		PaidAt:          order.PaidAt,
		CreatedAt:       order.CreatedAt,
	}
	if addr, ok := order.Address(enums.AddressTypeShipping); ok {
		dto.ShippingAddress = addressDTO(addr)
	}
	if addr, ok := order.Address(enums.AddressTypeBilling); ok {
		dto.BillingAddress = addressDTO(addr)
	}
	return dto
}

func addressDTO(addr models.OrderAddress) *AddressDTO {
	return &AddressDTO{
		FirstName:  addr.FirstName,
		LastName:   addr.LastName,
		Email:      addr.Email,
		Phone:      addr.Phone,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
}
