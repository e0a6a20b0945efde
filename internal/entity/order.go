package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPlaced Status = "PLACED"
)

// Order exists only after a successful commit; the total is computed by the
// pricer, never supplied by the caller.
type Order struct {
	ID        string
	UserID    string
	Status    Status
	Total     decimal.Decimal
	CreatedAt time.Time
	Lines     []OrderLine
}

// OrderLine keeps the unit price as it was at commit time, so historical
// totals stay stable when the product price moves later.
type OrderLine struct {
	OrderID   string
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
}
