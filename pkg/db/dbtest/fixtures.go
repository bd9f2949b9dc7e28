package dbtest

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// SimpleProduct inserts a published simple product.
func SimpleProduct(t testing.TB, conn *gorm.DB, name, price string, stock, threshold int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:              name,
		Slug:              slug(name),
		Type:              enums.ProductTypeSimple,
		Status:            enums.ProductStatusPublished,
		Price:             decimal.RequireFromString(price),
		Stock:             stock,
		LowStockThreshold: threshold,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// VariableProduct inserts a published variable product with no stock of its own.
func VariableProduct(t testing.TB, conn *gorm.DB, name string) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:   name,
		Slug:   slug(name),
		Type:   enums.ProductTypeVariable,
		Status: enums.ProductStatusPublished,
		Price:  decimal.Zero,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// Variation inserts a variation for productID.
func Variation(t testing.TB, conn *gorm.DB, productID uuid.UUID, attrs types.VariationAttributes, price string, stock, threshold int) *models.ProductVariation {
	t.Helper()
	variation := &models.ProductVariation{
		ProductID:         productID,
		SKU:               "SKU-" + uuid.NewString()[:8],
		Attributes:        attrs,
		Price:             decimal.RequireFromString(price),
		Stock:             stock,
		LowStockThreshold: threshold,
	}
	if err := conn.Create(variation).Error; err != nil {
		t.Fatalf("create variation: %v", err)
	}
	return variation
}

// Unpublish flips a product back to draft.
func Unpublish(t testing.TB, conn *gorm.DB, productID uuid.UUID) {
	t.Helper()
	if err := conn.Model(&models.Product{}).Where("id = ?", productID).
		Update("status", enums.ProductStatusDraft).Error; err != nil {
		t.Fatalf("unpublish: %v", err)
	}
}

// Stock reads the stock column of a product or variation.
func Stock(t testing.TB, conn *gorm.DB, productID uuid.UUID, variationID *uuid.UUID) int {
	t.Helper()
	var stock int
	var err error
	if variationID != nil {
		err = conn.Model(&models.ProductVariation{}).Select("stock").Where("id = ?", *variationID).Scan(&stock).Error
	} else {
		err = conn.Model(&models.Product{}).Select("stock").Where("id = ?", productID).Scan(&stock).Error
	}
	if err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

func slug(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-")) + "-" + uuid.NewString()[:8]
}

// Address returns a complete checkout address.
func Address() types.Address {
	return types.Address{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@example.com",
		Line1:      "12 Analytical Way",
		City:       "London",
		PostalCode: "N1 9GU",
		Country:    "gb",
	}
}
