package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aq2208/stockorder-api/internal/logging"
	"github.com/aq2208/stockorder-api/internal/usecase"
)

type OrderHandler struct {
	place    *usecase.PlaceOrder
	orders   usecase.OrderReader
	products usecase.ProductReader
	cache    usecase.OrderCache
}

func NewOrderHandler(place *usecase.PlaceOrder, orders usecase.OrderReader, products usecase.ProductReader, cache usecase.OrderCache) *OrderHandler {
	return &OrderHandler{place: place, orders: orders, products: products, cache: cache}
}

type placeOrderReq struct {
	UserID string `json:"userId" binding:"required"`
	Items  []struct {
		ProductID int64 `json:"productId" binding:"required"`
		Quantity  int64 `json:"quantity"`
	} `json:"items" binding:"required"`
}

type placeOrderResp struct {
	OrderID string `json:"orderId"`
	Total   string `json:"total"`
}

// PlaceOrder handler: translate to use case input. Quantity bounds are not
// enforced in the binding so the pipeline's own validation answers with the
// proper failure kind.
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	idemKey := c.GetHeader("X-Idempotency-Key")

	lines := make([]usecase.LineRequest, len(req.Items))
	for i, it := range req.Items {
		lines[i] = usecase.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	// Budget covers the full retry loop, not one attempt.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	ctx = logging.WithCtx(ctx, logging.From(c))

	out, err := h.place.Execute(ctx, usecase.PlaceOrderInput{
		UserID:         req.UserID,
		IdempotencyKey: idemKey,
		Lines:          lines,
	})
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, gin.H{"error": code, "detail": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, placeOrderResp{
		OrderID: out.OrderID,
		Total:   out.Total.String(),
	})
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	o, err := h.orders.GetByID(ctx, id)
	if errors.Is(err, usecase.ErrStoreUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable"})
		return
	}
	if err != nil || o == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	lines := make([]gin.H, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = gin.H{
			"product_id": l.ProductID,
			"quantity":   l.Quantity,
			"unit_price": l.UnitPrice.String(),
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         o.ID,
		"user_id":    o.UserID,
		"status":     o.Status,
		"total":      o.Total.String(),
		"created_at": o.CreatedAt,
		"lines":      lines,
	})
}

// GetOrderStatus serves the summary from the redis cache when it is warm and
// falls back to MySQL.
func (h *OrderHandler) GetOrderStatus(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.cache != nil {
		if s, ok, err := h.cache.GetSummary(ctx, id); err == nil && ok {
			c.JSON(http.StatusOK, s)
			return
		}
	}

	o, err := h.orders.GetByID(ctx, id)
	if errors.Is(err, usecase.ErrStoreUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable"})
		return
	}
	if err != nil || o == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, usecase.OrderSummary{
		OrderID: o.ID,
		UserID:  o.UserID,
		Status:  string(o.Status),
		Total:   o.Total.String(),
	})
}

func (h *OrderHandler) GetProductByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	snap, err := h.products.GetByIDs(ctx, []int64{id})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable"})
		return
	}
	p, ok := snap[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      p.ID,
		"name":    p.Name,
		"price":   p.Price.String(),
		"stock":   p.Stock,
		"version": p.Version,
	})
}

// statusFor maps the placement taxonomy onto HTTP. Conflict-class failures
// share 409 with distinct codes so clients can pick between re-prompt and
// "sold out".
func statusFor(err error) (int, string) {
	var (
		nf *usecase.ProductNotFoundError
		is *usecase.InsufficientStockError
	)
	switch {
	case errors.Is(err, usecase.ErrEmptyOrder):
		return http.StatusBadRequest, "empty_order"
	case errors.Is(err, usecase.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.As(err, &nf):
		return http.StatusNotFound, "product_not_found"
	case errors.As(err, &is):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, usecase.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate_request"
	case errors.Is(err, usecase.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, usecase.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
