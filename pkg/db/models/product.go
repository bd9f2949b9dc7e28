package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Product is a catalog entry. Variable products sell only through their variations.
type Product struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name              string              `gorm:"column:name;not null"`
	Slug              string              `gorm:"column:slug;not null;uniqueIndex"`
	Type              enums.ProductType   `gorm:"column:type;type:text;not null;default:'simple'"`
	Status            enums.ProductStatus `gorm:"column:status;type:text;not null;default:'draft'"`
	Price             decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	Stock             int                 `gorm:"column:stock;not null;default:0"`
	LowStockThreshold int                 `gorm:"column:low_stock_threshold;not null"`
	Variations        []ProductVariation  `gorm:"foreignKey:ProductID"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

func (p Product) IsPublished() bool {
	return p.Status == enums.ProductStatusPublished
}

func (p Product) IsVariable() bool {
	return p.Type == enums.ProductTypeVariable
}
