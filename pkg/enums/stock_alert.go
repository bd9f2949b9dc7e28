package enums

import "fmt"

// StockAlertType identifies which stock threshold an alert was raised for.
type StockAlertType string

const (
	StockAlertTypeLowStock   StockAlertType = "low_stock"
	StockAlertTypeOutOfStock StockAlertType = "out_of_stock"
)

var validStockAlertTypes = []StockAlertType{
	StockAlertTypeLowStock,
	StockAlertTypeOutOfStock,
}

// String implements fmt.Stringer.
func (s StockAlertType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockAlertType.
func (s StockAlertType) IsValid() bool {
	for _, candidate := range validStockAlertTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockAlertType converts raw input into a StockAlertType.
func ParseStockAlertType(value string) (StockAlertType, error) {
	for _, candidate := range validStockAlertTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock alert type %q", value)
}
