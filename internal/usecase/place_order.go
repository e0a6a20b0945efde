package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aq2208/stockorder-api/internal/logging"
)

type PlaceOrderInput struct {
	UserID         string
	IdempotencyKey string
	Lines          []LineRequest
}

type PlaceOrderOutput struct {
	OrderID string
	Total   decimal.Decimal
}

// PlaceOrder drives one pipeline per attempt: normalize, bulk snapshot load,
// validate+price, atomic commit. Transient conflicts re-enter at the snapshot
// load until the attempt budget runs out. There is no shared mutable state
// between concurrent executions; the store arbitrates.
type PlaceOrder struct {
	products  ProductReader
	committer OrderCommitter
	orders    OrderReader
	idem      IdempotencyStore

	maxAttempts int
	backoff     time.Duration
}

type PlaceOrderOption func(*PlaceOrder)

func WithMaxAttempts(n int) PlaceOrderOption {
	return func(uc *PlaceOrder) {
		if n > 0 {
			uc.maxAttempts = n
		}
	}
}

func WithRetryBackoff(d time.Duration) PlaceOrderOption {
	return func(uc *PlaceOrder) {
		if d > 0 {
			uc.backoff = d
		}
	}
}

func NewPlaceOrder(products ProductReader, committer OrderCommitter, orders OrderReader, idem IdempotencyStore, opts ...PlaceOrderOption) *PlaceOrder {
	uc := &PlaceOrder{
		products:    products,
		committer:   committer,
		orders:      orders,
		idem:        idem,
		maxAttempts: 3,
		backoff:     25 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *PlaceOrder) Execute(ctx context.Context, in PlaceOrderInput) (PlaceOrderOutput, error) {
	demand, err := normalize(in.Lines)
	if err != nil {
		placements.WithLabelValues("invalid_input").Inc()
		return PlaceOrderOutput{}, err
	}

	l := logging.FromCtx(ctx).With("user_id", in.UserID)

	if in.IdempotencyKey != "" && uc.idem != nil {
		if id, ok, _ := uc.idem.Recall(ctx, in.UserID, in.IdempotencyKey); ok {
			return uc.replay(ctx, id)
		}
		locked, err := uc.idem.TryLock(ctx, in.UserID, in.IdempotencyKey)
		if err != nil {
			return PlaceOrderOutput{}, fmt.Errorf("%w: idempotency lock: %v", ErrStoreUnavailable, err)
		}
		if !locked {
			placements.WithLabelValues("duplicate").Inc()
			return PlaceOrderOutput{}, ErrDuplicateRequest
		}
	}

	ids := make([]int64, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var lastErr error
	for attempt := 1; attempt <= uc.maxAttempts; attempt++ {
		placementAttempts.Inc()
		out, err := uc.attempt(ctx, in.UserID, demand, ids)
		if err == nil {
			if in.IdempotencyKey != "" && uc.idem != nil {
				_ = uc.idem.Remember(ctx, in.UserID, in.IdempotencyKey, out.OrderID)
			}
			placements.WithLabelValues("committed").Inc()
			l.Info("order placed",
				"order_id", out.OrderID, "total", out.Total.String(), "attempt", attempt)
			return out, nil
		}
		if !uc.retryable(err, in.IdempotencyKey != "") {
			uc.release(ctx, in, err)
			return PlaceOrderOutput{}, uc.terminal(l, err)
		}
		lastErr = err
		l.Warn("placement attempt aborted", "attempt", attempt, "err", err.Error())
		if attempt < uc.maxAttempts {
			if serr := sleepBackoff(ctx, uc.backoff, attempt); serr != nil {
				return PlaceOrderOutput{}, serr
			}
		}
	}

	uc.release(ctx, in, lastErr)
	if errors.Is(lastErr, ErrStoreUnavailable) {
		placements.WithLabelValues("unavailable").Inc()
		return PlaceOrderOutput{}, lastErr
	}
	placements.WithLabelValues("conflict").Inc()
	l.Warn("placement retries exhausted", "err", lastErr.Error())
	return PlaceOrderOutput{}, fmt.Errorf("%w: %v", ErrConflict, lastErr)
}

// attempt runs snapshot load -> validate/price -> commit once.
func (uc *PlaceOrder) attempt(ctx context.Context, userID string, demand map[int64]int64, ids []int64) (PlaceOrderOutput, error) {
	snap, err := uc.products.GetByIDs(ctx, ids)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	total, lines, err := priceOrder(demand, snap)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	plan := OrderPlan{
		OrderID: uuid.NewString(),
		UserID:  userID,
		Total:   total,
		Lines:   lines,
	}
	if err := uc.committer.Commit(ctx, plan); err != nil {
		return PlaceOrderOutput{}, err
	}
	return PlaceOrderOutput{OrderID: plan.OrderID, Total: total}, nil
}

func (uc *PlaceOrder) retryable(err error, idempotent bool) bool {
	if errors.Is(err, ErrSerializationConflict) || errors.Is(err, ErrStaleVersion) {
		return true
	}
	// The COMMIT round-trip may have applied before failing; nothing proves
	// the attempt did not take effect, so it is never replayed.
	if errors.Is(err, ErrCommitAmbiguous) {
		return false
	}
	// A pre-commit store failure provably rolled back; it is replayed only
	// when the caller's idempotency key scopes the retry to one placement.
	if errors.Is(err, ErrStoreUnavailable) {
		return idempotent
	}
	return false
}

// release frees the idempotency lock after a failure whose outcome is known,
// so the client can retry the same key immediately. An ambiguous commit keeps
// the lock: the order may exist and a replay could double-place it.
func (uc *PlaceOrder) release(ctx context.Context, in PlaceOrderInput, err error) {
	if in.IdempotencyKey == "" || uc.idem == nil {
		return
	}
	if errors.Is(err, ErrCommitAmbiguous) {
		return
	}
	_ = uc.idem.Release(ctx, in.UserID, in.IdempotencyKey)
}

// terminal records metrics and logging for a non-retryable failure and hands
// it back unchanged.
func (uc *PlaceOrder) terminal(l *slog.Logger, err error) error {
	var nf *ProductNotFoundError
	var is *InsufficientStockError
	switch {
	case errors.As(err, &is):
		stage := "validate"
		if is.AtCommit {
			stage = "commit"
			l.Warn("stock exhausted at commit",
				"product_id", is.ProductID, "requested", is.Requested, "available", is.Available)
		}
		insufficientStock.WithLabelValues(stage).Inc()
		placements.WithLabelValues("insufficient_stock").Inc()
	case errors.As(err, &nf):
		placements.WithLabelValues("not_found").Inc()
	case errors.Is(err, ErrStoreUnavailable):
		placements.WithLabelValues("unavailable").Inc()
	default:
		placements.WithLabelValues("error").Inc()
	}
	return err
}

// replay answers a repeated idempotency key with the originally created
// order, reading the total back from the store.
func (uc *PlaceOrder) replay(ctx context.Context, orderID string) (PlaceOrderOutput, error) {
	out := PlaceOrderOutput{OrderID: orderID, Total: decimal.Zero}
	if uc.orders != nil {
		if o, err := uc.orders.GetByID(ctx, orderID); err == nil && o != nil {
			out.Total = o.Total
		}
	}
	placements.WithLabelValues("replayed").Inc()
	return out, nil
}

// sleepBackoff waits base*2^(attempt-1) with +/-50% jitter, honoring ctx.
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	d := base << (attempt - 1)
	d = d/2 + time.Duration(rand.Int63n(int64(d)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
