package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// CartItemDTO is the API shape of a cart row.
type CartItemDTO struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   uuid.UUID  `json:"product_id"`
	VariationID *uuid.UUID `json:"variation_id,omitempty"`
	Quantity    int        `json:"quantity"`
	UnitPrice   string     `json:"unit_price"`
	Subtotal    string     `json:"subtotal"`
}

// CartDTO is the API shape of a cart. Money is rendered with two decimals.
type CartDTO struct {
	ID        uuid.UUID     `json:"id"`
	IsGuest   bool          `json:"is_guest"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Items     []CartItemDTO `json:"items"`
	Count     int           `json:"count"`
	Total     string        `json:"total"`
}

func NewCartItemDTO(item models.CartItem) CartItemDTO {
	return CartItemDTO{
		ID:          item.ID,
		ProductID:   item.ProductID,
		VariationID: item.VariationID,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice.StringFixed(2),
		Subtotal:    item.Subtotal().StringFixed(2),
	}
}

func NewCartDTO(cart *models.Cart) CartDTO {
	items := make([]CartItemDTO, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, NewCartItemDTO(item))
	}
	return CartDTO{
		ID:        cart.ID,
		IsGuest:   cart.IsGuest(),
		ExpiresAt: cart.ExpiresAt,
		Items:     items,
		Count:     cart.Count(),
		Total:     cart.Total().StringFixed(2),
	}
}

// EmptyCartDTO is returned when the requester has no cart yet.
func EmptyCartDTO(guest bool) CartDTO {
	return CartDTO{IsGuest: guest, Items: []CartItemDTO{}, Total: "0.00"}
}
