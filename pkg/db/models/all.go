package models

// All lists every persisted model in dependency order for AutoMigrate.
func All() []any {
	return []any{
		&Product{},
		&ProductVariation{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&OrderAddress{},
		&StockAlert{},
		&OutboxEvent{},
	}
}
