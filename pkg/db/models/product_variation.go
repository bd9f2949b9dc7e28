package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ProductVariation is a purchasable option set of a variable product.
type ProductVariation struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	ProductID         uuid.UUID                 `gorm:"column:product_id;type:uuid;not null;index"`
	SKU               string                    `gorm:"column:sku;not null;uniqueIndex"`
	Attributes        types.VariationAttributes `gorm:"column:attributes;type:jsonb;not null"`
	Price             decimal.Decimal           `gorm:"column:price;type:numeric(12,2);not null"`
	Stock             int                       `gorm:"column:stock;not null;default:0"`
	LowStockThreshold int                       `gorm:"column:low_stock_threshold;not null"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariation) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// Label renders the attributes as "color: red, size: M" with keys sorted.
func (v ProductVariation) Label() string {
	if len(v.Attributes) == 0 {
		return v.SKU
	}
	keys := make([]string, 0, len(v.Attributes))
	for k := range v.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v.Attributes[k])
	}
	return strings.Join(parts, ", ")
}
