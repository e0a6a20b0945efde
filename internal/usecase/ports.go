package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/aq2208/stockorder-api/internal/entity"
)

// ProductReader performs the bulk snapshot load. Implementations must issue
// one query regardless of how many ids are requested; missing ids are simply
// absent from the result map.
type ProductReader interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
}

// StockReplenisher applies inbound inventory. Every mutation bumps the
// product version.
type StockReplenisher interface {
	Replenish(ctx context.Context, productID, qty int64) error
}

// PlanLine is one product's share of a priced order plan: the quantity to
// deduct, the unit price to snapshot, and the version observed at load time.
type PlanLine struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
	Version   int64
}

// OrderPlan is the validated, priced demand handed to the committer.
type OrderPlan struct {
	OrderID string
	UserID  string
	Total   decimal.Decimal
	Lines   []PlanLine
}

// OrderCommitter persists a plan as one atomic unit: order header, lines,
// stock decrements, outbox row. On any abort nothing is persisted and the
// returned error is one of the taxonomy errors.
type OrderCommitter interface {
	Commit(ctx context.Context, plan OrderPlan) error
}

type OrderReader interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
	// Release frees a held lock so the same key may be retried.
	Release(ctx context.Context, scope, key string) error
}

// OrderSummary is the cached placement result served to status polls.
type OrderSummary struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
	Status  string `json:"status"`
	Total   string `json:"total"`
}

type OrderCache interface {
	SetSummary(ctx context.Context, orderID string, s OrderSummary) error
	GetSummary(ctx context.Context, orderID string) (OrderSummary, bool, error)
}

// OutboxMessage is a pending event row drained by the publisher.
type OutboxMessage struct {
	ID         int64
	Channel    string
	Payload    []byte
	RetryCount int
}

type OutboxStore interface {
	FetchPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	MarkRetry(ctx context.Context, id int64, delay time.Duration) error
}
