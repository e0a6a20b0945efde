package domain

import "github.com/shopspring/decimal"

// Product is the sellable unit backed by shared, finite stock.
// Version changes on every committed mutation of the row and is the fence
// for optimistic stock updates.
type Product struct {
	ID      int64
	Name    string
	Price   decimal.Decimal
	Stock   int64
	Version int64
}
