package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/aq2208/stockorder-api/internal/usecase"
)

// Mode selects the concurrency-control policy for the placement transaction.
type Mode string

const (
	// ModeSerializable re-reads the touched rows FOR UPDATE inside a
	// serializable transaction; the store detects conflicting committers.
	ModeSerializable Mode = "serializable"
	// ModeOptimistic skips row locks and fences each stock decrement on the
	// version observed at snapshot time.
	ModeOptimistic Mode = "optimistic"
)

const placedChannel = "order.placed"

// MySQLOrderCommitter persists a priced plan as one transaction: order
// header, lines, stock decrements, and the outbox row all commit together or
// not at all.
type MySQLOrderCommitter struct {
	db   *sql.DB
	mode Mode
}

func NewMySQLOrderCommitter(db *sql.DB, mode Mode) *MySQLOrderCommitter {
	if mode != ModeOptimistic {
		mode = ModeSerializable
	}
	return &MySQLOrderCommitter{db: db, mode: mode}
}

func (c *MySQLOrderCommitter) Commit(ctx context.Context, plan usecase.OrderPlan) error {
	opts := &sql.TxOptions{}
	if c.mode == ModeSerializable {
		opts.Isolation = sql.LevelSerializable
	}
	tx, err := c.db.BeginTx(ctx, opts)
	if err != nil {
		return storeErr("begin", err)
	}
	if err := c.run(ctx, tx, plan); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return commitErr(err)
	}
	return nil
}

// commitErr classifies a failed COMMIT round-trip. A deadlock or lock-wait
// timeout reported at commit means the server rolled the transaction back, so
// the attempt is replayable. Anything else may have applied before the
// acknowledgment was lost and must not be retried.
func commitErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && (me.Number == 1213 || me.Number == 1205) {
		return fmt.Errorf("%w: commit: %v", usecase.ErrSerializationConflict, err)
	}
	return fmt.Errorf("%w: %v", usecase.ErrCommitAmbiguous, err)
}

func (c *MySQLOrderCommitter) run(ctx context.Context, tx *sql.Tx, plan usecase.OrderPlan) error {
	if c.mode == ModeSerializable {
		if err := c.lockAndRecheck(ctx, tx, plan); err != nil {
			return err
		}
	}
	if err := c.insertOrder(ctx, tx, plan); err != nil {
		return err
	}
	if err := c.insertLines(ctx, tx, plan); err != nil {
		return err
	}
	if err := c.deductStock(ctx, tx, plan); err != nil {
		return err
	}
	return c.insertOutbox(ctx, tx, plan)
}

// lockAndRecheck takes row locks on every touched product and re-validates
// stock under them, closing the window between snapshot and commit. Plan
// lines are sorted by product id, so overlapping committers lock in the same
// order.
func (c *MySQLOrderCommitter) lockAndRecheck(ctx context.Context, tx *sql.Tx, plan usecase.OrderPlan) error {
	args := make([]any, len(plan.Lines))
	for i, l := range plan.Lines {
		args[i] = l.ProductID
	}
	q := fmt.Sprintf(`
SELECT id,stock_qty FROM products WHERE id IN (%s) FOR UPDATE`, placeholders(len(plan.Lines)))

	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return storeErr("lock products", err)
	}
	defer rows.Close()

	stock := make(map[int64]int64, len(plan.Lines))
	for rows.Next() {
		var id, qty int64
		if err := rows.Scan(&id, &qty); err != nil {
			return storeErr("scan locked product", err)
		}
		stock[id] = qty
	}
	if err := rows.Err(); err != nil {
		return storeErr("lock products", err)
	}

	for _, l := range plan.Lines {
		avail, ok := stock[l.ProductID]
		if !ok {
			// Deleted since the snapshot.
			return &usecase.ProductNotFoundError{ProductID: l.ProductID}
		}
		if avail < l.Quantity {
			return &usecase.InsufficientStockError{
				ProductID: l.ProductID,
				Requested: l.Quantity,
				Available: avail,
				AtCommit:  true,
			}
		}
	}
	return nil
}

func (c *MySQLOrderCommitter) insertOrder(ctx context.Context, tx *sql.Tx, plan usecase.OrderPlan) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO orders (id,user_id,status,total,created_at,updated_at)
VALUES (?,?,?,?,NOW(),NOW())`,
		plan.OrderID, plan.UserID, "PLACED", plan.Total.String())
	if err != nil {
		return storeErr("insert order", err)
	}
	return nil
}

func (c *MySQLOrderCommitter) insertLines(ctx context.Context, tx *sql.Tx, plan usecase.OrderPlan) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO order_lines (order_id,product_id,quantity,unit_price) VALUES `)
	args := make([]any, 0, len(plan.Lines)*4)
	for i, l := range plan.Lines {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?,?,?)")
		args = append(args, plan.OrderID, l.ProductID, l.Quantity, l.UnitPrice.String())
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return storeErr("insert order lines", err)
	}
	return nil
}

func (c *MySQLOrderCommitter) deductStock(ctx context.Context, tx *sql.Tx, plan usecase.OrderPlan) error {
	for _, l := range plan.Lines {
		var (
			res sql.Result
			err error
		)
		if c.mode == ModeOptimistic {
			res, err = tx.ExecContext(ctx, `
UPDATE products SET stock_qty = stock_qty - ?, version = version + 1, updated_at = NOW()
WHERE id = ? AND version = ? AND stock_qty >= ?`,
				l.Quantity, l.ProductID, l.Version, l.Quantity)
		} else {
			// Rows are already locked and re-checked.
			res, err = tx.ExecContext(ctx, `
UPDATE products SET stock_qty = stock_qty - ?, version = version + 1, updated_at = NOW()
WHERE id = ?`,
				l.Quantity, l.ProductID)
		}
		if err != nil {
			return storeErr("deduct stock", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storeErr("deduct stock", err)
		}
		if n == 0 {
			if c.mode == ModeOptimistic {
				return c.diagnose(ctx, tx, l)
			}
			return &usecase.ProductNotFoundError{ProductID: l.ProductID}
		}
	}
	return nil
}

// diagnose tells a lost version fence apart from genuinely exhausted stock
// with one read of the current row.
func (c *MySQLOrderCommitter) diagnose(ctx context.Context, tx *sql.Tx, l usecase.PlanLine) error {
	var stock, version int64
	err := tx.QueryRowContext(ctx, `
SELECT stock_qty,version FROM products WHERE id = ?`, l.ProductID).Scan(&stock, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return &usecase.ProductNotFoundError{ProductID: l.ProductID}
	}
	if err != nil {
		return storeErr("diagnose stock", err)
	}
	if version != l.Version {
		return fmt.Errorf("%w: product %d version %d, had %d",
			usecase.ErrStaleVersion, l.ProductID, version, l.Version)
	}
	return &usecase.InsufficientStockError{
		ProductID: l.ProductID,
		Requested: l.Quantity,
		Available: stock,
		AtCommit:  true,
	}
}

func (c *MySQLOrderCommitter) insertOutbox(ctx context.Context, tx *sql.Tx, plan usecase.OrderPlan) error {
	payload, err := json.Marshal(usecase.PlacedMsg{
		OrderID: plan.OrderID,
		UserID:  plan.UserID,
		Total:   plan.Total.String(),
	})
	if err != nil {
		return fmt.Errorf("marshal placed event: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO outbox (channel,payload,status,retry_count,next_attempt_at,created_at)
VALUES (?,?,'PENDING',0,NOW(),NOW())`, placedChannel, payload)
	if err != nil {
		return storeErr("insert outbox", err)
	}
	return nil
}

// storeErr maps driver failures onto the placement taxonomy. MySQL reports a
// deadlock as 1213 and a lock wait timeout as 1205; both mean a concurrent
// committer won and the attempt can be replayed.
func storeErr(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1213, 1205:
			return fmt.Errorf("%w: %s: %v", usecase.ErrSerializationConflict, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", usecase.ErrStoreUnavailable, op, err)
}

var _ usecase.OrderCommitter = (*MySQLOrderCommitter)(nil)
