package inventory

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Alerts raises one stock alert per unit and threshold until the unit is replenished.
type Alerts struct {
	tx     txRunner
	ledger *Ledger
	outbox outbox.Emitter
	logg   *logger.Logger
}

func NewAlerts(tx txRunner, ledger *Ledger, emitter outbox.Emitter, logg *logger.Logger) (*Alerts, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Alerts{tx: tx, ledger: ledger, outbox: emitter, logg: logg}, nil
}

// CheckUnits evaluates each touched unit after a sale. Failures are logged and
// never surface to the caller: the sale has already committed.
func (a *Alerts) CheckUnits(ctx context.Context, units []UnitRef) {
	for _, unit := range Dedupe(units) {
		raised, err := a.checkUnit(ctx, unit)
		logCtx := a.logg.WithField(ctx, "unit", unit.String())
		if err != nil {
			a.logg.Error(logCtx, "stock alert check failed", err)
			continue
		}
		if raised != "" {
			a.logg.Info(a.logg.WithField(logCtx, "alert_type", raised.String()), "stock alert raised")
		}
	}
}

func (a *Alerts) checkUnit(ctx context.Context, unit UnitRef) (enums.StockAlertType, error) {
	var raised enums.StockAlertType
	err := a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		level, err := a.ledger.Level(ctx, tx, unit)
		if err != nil {
			return err
		}

		var alertType enums.StockAlertType
		switch {
		case level.IsOut():
			alertType = enums.StockAlertTypeOutOfStock
		case level.IsLow():
			alertType = enums.StockAlertTypeLowStock
		default:
			return nil
		}

		exists, err := alertExists(tx, unit, alertType)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		alert := models.StockAlert{
			ProductID:    unit.ProductID,
			VariationID:  unit.VariationID,
			AlertType:    alertType,
			StockAtAlert: level.Stock,
		}
		if err := tx.Create(&alert).Error; err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_stock_alerts_unit_type") {
				return nil
			}
			return err
		}

		if err := a.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockAlertRaised,
			AggregateType: enums.AggregateSellableUnit,
			AggregateID:   unit.AggregateID(),
			Data: payloads.StockAlertRaisedEvent{
				ProductID:   unit.ProductID,
				VariationID: unit.VariationID,
				ProductName: level.ProductName,
				AlertType:   alertType,
				Stock:       level.Stock,
				Threshold:   level.Threshold,
			},
		}); err != nil {
			return err
		}
		raised = alertType
		return nil
	})
	return raised, err
}

// ResetReplenished clears alerts whose unit has recovered, so the next dip alerts again.
// Low-stock alerts clear above the threshold; out-of-stock alerts clear once any stock returns.
func (a *Alerts) ResetReplenished(ctx context.Context) (int, error) {
	cleared := 0
	err := a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var alerts []models.StockAlert
		if err := tx.Order("created_at ASC").Find(&alerts).Error; err != nil {
			return err
		}
		for _, alert := range alerts {
			unit := UnitRef{ProductID: alert.ProductID, VariationID: alert.VariationID}
			level, err := a.ledger.Level(ctx, tx, unit)
			if err != nil {
				if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
					// unit deleted; the alert is meaningless now
					if err := tx.Delete(&models.StockAlert{}, "id = ?", alert.ID).Error; err != nil {
						return err
					}
					cleared++
					continue
				}
				return err
			}
			if !replenished(alert.AlertType, level) {
				continue
			}
			if err := tx.Delete(&models.StockAlert{}, "id = ?", alert.ID).Error; err != nil {
				return err
			}
			cleared++
		}
		return nil
	})
	return cleared, err
}

func replenished(alertType enums.StockAlertType, level StockLevel) bool {
	switch alertType {
	case enums.StockAlertTypeOutOfStock:
		return level.Stock > 0
	default:
		return level.Stock > level.Threshold
	}
}

func alertExists(tx *gorm.DB, unit UnitRef, alertType enums.StockAlertType) (bool, error) {
	query := tx.Model(&models.StockAlert{}).
		Where("product_id = ? AND alert_type = ?", unit.ProductID, alertType)
	if unit.VariationID != nil {
		query = query.Where("variation_id = ?", *unit.VariationID)
	} else {
		query = query.Where("variation_id IS NULL")
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
