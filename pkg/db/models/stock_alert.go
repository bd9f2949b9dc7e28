package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// StockAlert records that a threshold alert was already raised for a unit.
type StockAlert struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    uuid.UUID            `gorm:"column:product_id;type:uuid;not null;index"`
	VariationID  *uuid.UUID           `gorm:"column:variation_id;type:uuid"`
	AlertType    enums.StockAlertType `gorm:"column:alert_type;type:text;not null"`
	StockAtAlert int                  `gorm:"column:stock_at_alert;not null"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (a *StockAlert) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
