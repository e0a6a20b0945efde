package usecase

import (
	"sort"

	"github.com/shopspring/decimal"

	domain "github.com/aq2208/stockorder-api/internal/entity"
)

// priceOrder validates merged demand against the product snapshot and prices
// it. Single pass: each product is checked exactly once no matter how many
// raw lines referenced it. Pure; no I/O.
func priceOrder(demand map[int64]int64, snap map[int64]domain.Product) (decimal.Decimal, []PlanLine, error) {
	total := decimal.Zero
	lines := make([]PlanLine, 0, len(demand))
	for id, qty := range demand {
		p, ok := snap[id]
		if !ok {
			return decimal.Zero, nil, &ProductNotFoundError{ProductID: id}
		}
		if p.Stock < qty {
			return decimal.Zero, nil, &InsufficientStockError{
				ProductID: id,
				Requested: qty,
				Available: p.Stock,
			}
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(qty)))
		lines = append(lines, PlanLine{
			ProductID: id,
			Quantity:  qty,
			UnitPrice: p.Price,
			Version:   p.Version,
		})
	}
	// Stable line order keeps row locking and inserts deterministic.
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return total, lines, nil
}
