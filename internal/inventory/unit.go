package inventory

import (
	"github.com/google/uuid"
)

// UnitRef identifies a sellable unit: a simple product, or one variation of a variable product.
type UnitRef struct {
	ProductID   uuid.UUID
	VariationID *uuid.UUID
}

func ProductUnit(productID uuid.UUID) UnitRef {
	return UnitRef{ProductID: productID}
}

func VariationUnit(productID, variationID uuid.UUID) UnitRef {
	return UnitRef{ProductID: productID, VariationID: &variationID}
}

// IsVariation reports whether the unit targets a variation row.
func (u UnitRef) IsVariation() bool {
	return u.VariationID != nil
}

// AggregateID is the id stock rows and stock events are keyed by.
func (u UnitRef) AggregateID() uuid.UUID {
	if u.VariationID != nil {
		return *u.VariationID
	}
	return u.ProductID
}

func (u UnitRef) String() string {
	if u.VariationID == nil {
		return u.ProductID.String()
	}
	return u.ProductID.String() + "/" + u.VariationID.String()
}

// key is usable as a map key, unlike UnitRef.
func (u UnitRef) key() string {
	return u.String()
}

// StockLevel is a point-in-time view of a unit's stock.
type StockLevel struct {
	Unit        UnitRef
	ProductName string
	Stock       int
	Threshold   int
}

// IsLow is true when stock is positive but at or below the threshold.
func (s StockLevel) IsLow() bool {
	return s.Stock > 0 && s.Stock <= s.Threshold
}

func (s StockLevel) IsOut() bool {
	return s.Stock <= 0
}

// Dedupe drops repeated units while preserving order.
func Dedupe(units []UnitRef) []UnitRef {
	seen := make(map[string]struct{}, len(units))
	out := make([]UnitRef, 0, len(units))
	for _, u := range units {
		if _, ok := seen[u.key()]; ok {
			continue
		}
		seen[u.key()] = struct{}{}
		out = append(out, u)
	}
	return out
}
