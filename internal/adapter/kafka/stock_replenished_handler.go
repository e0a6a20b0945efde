package kafka

import (
	"context"
	"errors"

	"github.com/aq2208/stockorder-api/internal/logging"
	"github.com/aq2208/stockorder-api/internal/usecase"
)

// StockReplenishedHandler applies warehouse intake to product rows. Updates
// go through the same version discipline as placements, so concurrent
// optimistic committers see the stock move.
type StockReplenishedHandler struct {
	Products usecase.StockReplenisher
}

func NewStockReplenishedHandler(products usecase.StockReplenisher) *StockReplenishedHandler {
	return &StockReplenishedHandler{Products: products}
}

func (h *StockReplenishedHandler) Handle(ctx context.Context, ev usecase.StockReplenishedMsg) error {
	l := logging.New("stock-feed")
	if ev.Quantity <= 0 {
		l.Warn("dropping replenishment with non-positive quantity",
			"product_id", ev.ProductID, "quantity", ev.Quantity)
		return nil
	}
	err := h.Products.Replenish(ctx, ev.ProductID, ev.Quantity)
	var nf *usecase.ProductNotFoundError
	if errors.As(err, &nf) {
		// Feed can reference products this service never sold; skip, don't retry.
		l.Warn("replenishment for unknown product", "product_id", ev.ProductID)
		return nil
	}
	if err != nil {
		return err
	}
	l.Info("stock replenished", "product_id", ev.ProductID, "quantity", ev.Quantity)
	return nil
}
