package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aq2208/stockorder-api/internal/usecase"
)

// MySQLOutboxRepo is the drain side of the transactional outbox. Rows are
// written by the committer inside the placement transaction.
type MySQLOutboxRepo struct{ db *sql.DB }

func NewMySQLOutboxRepo(db *sql.DB) *MySQLOutboxRepo { return &MySQLOutboxRepo{db: db} }

func (r *MySQLOutboxRepo) FetchPending(ctx context.Context, limit int) ([]usecase.OutboxMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,channel,payload,retry_count FROM outbox
WHERE status='PENDING' AND next_attempt_at <= NOW()
ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox: %w", err)
	}
	defer rows.Close()

	var out []usecase.OutboxMessage
	for rows.Next() {
		var m usecase.OutboxMessage
		if err := rows.Scan(&m.ID, &m.Channel, &m.Payload, &m.RetryCount); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MySQLOutboxRepo) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE outbox SET status='SENT', sent_at=NOW() WHERE id=?`, id)
	return err
}

func (r *MySQLOutboxRepo) MarkRetry(ctx context.Context, id int64, delay time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE outbox SET retry_count=retry_count+1, next_attempt_at=DATE_ADD(NOW(), INTERVAL ? SECOND)
WHERE id=?`, int64(delay.Seconds()), id)
	return err
}

var _ usecase.OutboxStore = (*MySQLOutboxRepo)(nil)
