package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// VariationAttributes stores the option values (size, color, ...) that define a variation.
type VariationAttributes map[string]string

// Value implements driver.Valuer.
func (v VariationAttributes) Value() (driver.Value, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (v *VariationAttributes) Scan(value interface{}) error {
	if value == nil {
		*v = VariationAttributes{}
		return nil
	}

	var raw []byte
	switch data := value.(type) {
	case []byte:
		raw = data
	case string:
		raw = []byte(data)
	default:
		return fmt.Errorf("variation attributes: unsupported scan type %T", value)
	}

	out := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("variation attributes: %w", err)
		}
	}
	*v = out
	return nil
}
