package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/aq2208/stockorder-api/internal/logging"
	"github.com/aq2208/stockorder-api/internal/usecase"
)

// Publisher is the transport side of the drainer; RabbitProducer implements it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// OutboxPublisher drains PENDING outbox rows and publishes them. The rows
// were written inside the placement transaction, so an order is published
// exactly when it committed; a failed publish is retried with a growing
// per-row delay.
type OutboxPublisher struct {
	store    usecase.OutboxStore
	producer Publisher
	interval time.Duration
	batch    int
}

type OutboxOption func(*OutboxPublisher)

func WithInterval(d time.Duration) OutboxOption { return func(o *OutboxPublisher) { o.interval = d } }
func WithBatchSize(n int) OutboxOption          { return func(o *OutboxPublisher) { o.batch = n } }

func NewOutboxPublisher(store usecase.OutboxStore, producer Publisher, opts ...OutboxOption) *OutboxPublisher {
	o := &OutboxPublisher{
		store:    store,
		producer: producer,
		interval: time.Second,
		batch:    100,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start blocks until ctx is done. Run it in its own goroutine.
func (o *OutboxPublisher) Start(ctx context.Context) {
	l := logging.New("outbox")
	t := time.NewTicker(o.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			o.drain(ctx, l)
		}
	}
}

func (o *OutboxPublisher) drain(ctx context.Context, l *slog.Logger) {
	msgs, err := o.store.FetchPending(ctx, o.batch)
	if err != nil {
		l.Error("outbox fetch failed", "err", err.Error())
		return
	}
	for _, m := range msgs {
		if err := o.producer.Publish(ctx, m.Channel, m.Payload); err != nil {
			l.Warn("outbox publish failed", "id", m.ID, "channel", m.Channel, "err", err.Error())
			// Linear per-row backoff; the row stays PENDING.
			_ = o.store.MarkRetry(ctx, m.ID, time.Duration(m.RetryCount+1)*5*time.Second)
			continue
		}
		if err := o.store.MarkSent(ctx, m.ID); err != nil {
			// Row will be re-published; consumers must stay idempotent.
			l.Warn("outbox mark-sent failed", "id", m.ID, "err", err.Error())
		}
	}
}
