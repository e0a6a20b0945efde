package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	domain "github.com/aq2208/stockorder-api/internal/entity"
	"github.com/aq2208/stockorder-api/internal/usecase"
)

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,user_id,status,total,created_at FROM orders WHERE id=?`, id)

	var (
		o     domain.Order
		total string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &total, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read order: %v", usecase.ErrStoreUnavailable, err)
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("%w: bad total for order %s: %v", usecase.ErrStoreUnavailable, id, err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT order_id,product_id,quantity,unit_price FROM order_lines
WHERE order_id=? ORDER BY product_id`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: read order lines: %v", usecase.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l     domain.OrderLine
			price string
		)
		if err := rows.Scan(&l.OrderID, &l.ProductID, &l.Quantity, &price); err != nil {
			return nil, fmt.Errorf("%w: scan order line: %v", usecase.ErrStoreUnavailable, err)
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("%w: bad unit price on order %s: %v", usecase.ErrStoreUnavailable, id, err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read order lines: %v", usecase.ErrStoreUnavailable, err)
	}
	return &o, nil
}

var _ usecase.OrderReader = (*MySQLOrderRepo)(nil)
