package inventory

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Ledger reads and mutates stock for sellable units. Every method takes the
// transaction it should run in; a nil tx uses the ledger's own connection.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return l.db.WithContext(ctx)
}

// Level loads the unit's current stock without locking.
func (l *Ledger) Level(ctx context.Context, tx *gorm.DB, unit UnitRef) (StockLevel, error) {
	return l.load(l.conn(ctx, tx), unit)
}

// LockUnit loads the unit's stock with a row lock held until tx ends.
func (l *Ledger) LockUnit(ctx context.Context, tx *gorm.DB, unit UnitRef) (StockLevel, error) {
	locked := l.conn(ctx, tx).Clauses(clause.Locking{Strength: "UPDATE"}).Session(&gorm.Session{})
	return l.load(locked, unit)
}

// GetAvailableStock returns the unit's stock, never negative.
func (l *Ledger) GetAvailableStock(ctx context.Context, tx *gorm.DB, unit UnitRef) (int, error) {
	level, err := l.Level(ctx, tx, unit)
	if err != nil {
		return 0, err
	}
	if level.Stock < 0 {
		return 0, nil
	}
	return level.Stock, nil
}

func (l *Ledger) IsLowStock(ctx context.Context, tx *gorm.DB, unit UnitRef) (bool, error) {
	level, err := l.Level(ctx, tx, unit)
	if err != nil {
		return false, err
	}
	return level.IsLow(), nil
}

func (l *Ledger) IsOutOfStock(ctx context.Context, tx *gorm.DB, unit UnitRef) (bool, error) {
	level, err := l.Level(ctx, tx, unit)
	if err != nil {
		return false, err
	}
	return level.IsOut(), nil
}

// Decrement removes quantity from the unit in a single conditional statement,
// so concurrent decrements can never drive stock below zero.
func (l *Ledger) Decrement(ctx context.Context, tx *gorm.DB, unit UnitRef, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "decrement quantity must be positive")
	}

	conn := l.conn(ctx, tx)
	updates := map[string]any{
		"stock":      gorm.Expr("stock - ?", quantity),
		"updated_at": time.Now().UTC(),
	}

	var res *gorm.DB
	if unit.VariationID != nil {
		res = conn.Model(&models.ProductVariation{}).
			Where("id = ? AND product_id = ? AND stock >= ?", *unit.VariationID, unit.ProductID, quantity).
			Updates(updates)
	} else {
		res = conn.Model(&models.Product{}).
			Where("id = ? AND stock >= ?", unit.ProductID, quantity).
			Updates(updates)
	}
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "decrement stock")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	level, err := l.load(conn, unit)
	if err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(map[string]any{
		"product_id":   unit.ProductID.String(),
		"product_name": level.ProductName,
		"available":    level.Stock,
		"requested":    quantity,
	})
}

func (l *Ledger) load(conn *gorm.DB, unit UnitRef) (StockLevel, error) {
	if unit.VariationID != nil {
		var variation models.ProductVariation
		err := conn.Where("id = ? AND product_id = ?", *unit.VariationID, unit.ProductID).
			Take(&variation).Error
		if err != nil {
			return StockLevel{}, notFoundOr(err, "product variation not found")
		}
		var product models.Product
		if err := conn.Select("id", "name").
			Where("id = ?", unit.ProductID).Take(&product).Error; err != nil {
			return StockLevel{}, notFoundOr(err, "product not found")
		}
		return StockLevel{
			Unit:        unit,
			ProductName: product.Name,
			Stock:       variation.Stock,
			Threshold:   variation.LowStockThreshold,
		}, nil
	}

	var product models.Product
	if err := conn.Where("id = ?", unit.ProductID).Take(&product).Error; err != nil {
		return StockLevel{}, notFoundOr(err, "product not found")
	}
	return StockLevel{
		Unit:        unit,
		ProductName: product.Name,
		Stock:       product.Stock,
		Threshold:   product.LowStockThreshold,
	}, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load stock")
}
