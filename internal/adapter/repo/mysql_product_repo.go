package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/aq2208/stockorder-api/internal/entity"
	"github.com/aq2208/stockorder-api/internal/usecase"
)

var ErrNotFound = errors.New("not found")

type MySQLProductRepo struct{ db *sql.DB }

func NewMySQLProductRepo(db *sql.DB) *MySQLProductRepo { return &MySQLProductRepo{db: db} }

// GetByIDs loads every referenced product in a single round-trip. Ids with no
// matching row are absent from the result.
func (r *MySQLProductRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	if len(ids) == 0 {
		return map[int64]domain.Product{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := fmt.Sprintf(`
SELECT id,name,price,stock_qty,version FROM products WHERE id IN (%s)`, placeholders(len(ids)))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: bulk product read: %v", usecase.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make(map[int64]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Stock, &p.Version); err != nil {
			return nil, fmt.Errorf("%w: scan product: %v", usecase.ErrStoreUnavailable, err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("%w: bad price for product %d: %v", usecase.ErrStoreUnavailable, p.ID, err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: bulk product read: %v", usecase.ErrStoreUnavailable, err)
	}
	return out, nil
}

// Replenish adds inbound stock and bumps the version so in-flight optimistic
// placements against the old row re-read.
func (r *MySQLProductRepo) Replenish(ctx context.Context, productID, qty int64) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE products SET stock_qty = stock_qty + ?, version = version + 1, updated_at = NOW()
WHERE id = ?`, qty, productID)
	if err != nil {
		return fmt.Errorf("%w: replenish product %d: %v", usecase.ErrStoreUnavailable, productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: replenish product %d: %v", usecase.ErrStoreUnavailable, productID, err)
	}
	if n == 0 {
		return &usecase.ProductNotFoundError{ProductID: productID}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var (
	_ usecase.ProductReader    = (*MySQLProductRepo)(nil)
	_ usecase.StockReplenisher = (*MySQLProductRepo)(nil)
)
