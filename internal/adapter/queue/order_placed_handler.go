package queue

import (
	"context"

	"github.com/aq2208/stockorder-api/internal/usecase"
)

// OrderPlacedHandler consumes order.placed events and warms the summary
// cache that serves status polls. Re-deliveries just overwrite the same key,
// so the handler is idempotent as the Router requires.
type OrderPlacedHandler struct {
	Cache usecase.OrderCache
}

func NewOrderPlacedHandler(cache usecase.OrderCache) *OrderPlacedHandler {
	return &OrderPlacedHandler{Cache: cache}
}

// HandlePlaced is intended for the JSON adapter (queue.JSONHandler[PlacedMsg]).
func (h *OrderPlacedHandler) HandlePlaced(ctx context.Context, msg usecase.PlacedMsg) error {
	return h.Cache.SetSummary(ctx, msg.OrderID, usecase.OrderSummary{
		OrderID: msg.OrderID,
		UserID:  msg.UserID,
		Status:  "PLACED",
		Total:   msg.Total,
	})
}
