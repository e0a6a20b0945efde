package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/stockorder-api/internal/entity"
	"github.com/aq2208/stockorder-api/internal/usecase"
)

// fakeStore implements the placement ports over a guarded map, the same way
// the MySQL adapters behave: optimistic commit semantics, versions bump on
// every mutation.
type fakeStore struct {
	mu       sync.Mutex
	products map[int64]domain.Product
}

func newFakeStore(products ...domain.Product) *fakeStore {
	s := &fakeStore{products: map[int64]domain.Product{}}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeStore) GetByIDs(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *fakeStore) Commit(_ context.Context, plan usecase.OrderPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range plan.Lines {
		p, ok := s.products[l.ProductID]
		if !ok {
			return &usecase.ProductNotFoundError{ProductID: l.ProductID}
		}
		if p.Stock < l.Quantity {
			return &usecase.InsufficientStockError{
				ProductID: l.ProductID, Requested: l.Quantity, Available: p.Stock, AtCommit: true,
			}
		}
	}
	for _, l := range plan.Lines {
		p := s.products[l.ProductID]
		p.Stock -= l.Quantity
		p.Version++
		s.products[l.ProductID] = p
	}
	return nil
}

type fakeOrders struct {
	orders  map[string]*domain.Order
	readErr error
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if o, ok := f.orders[id]; ok {
		return o, nil
	}
	return nil, errors.New("not found")
}

type fakeCache struct {
	summaries map[string]usecase.OrderSummary
}

func (f *fakeCache) SetSummary(_ context.Context, id string, s usecase.OrderSummary) error {
	f.summaries[id] = s
	return nil
}

func (f *fakeCache) GetSummary(_ context.Context, id string) (usecase.OrderSummary, bool, error) {
	s, ok := f.summaries[id]
	return s, ok, nil
}

func newTestRouter(store *fakeStore, orders *fakeOrders, cc *fakeCache) *gin.Engine {
	gin.SetMode(gin.TestMode)
	uc := usecase.NewPlaceOrder(store, store, orders, nil)
	h := NewOrderHandler(uc, orders, store, cc)

	r := gin.New()
	r.POST("/v1/orders", h.PlaceOrder)
	r.GET("/v1/orders/:id", h.GetOrderByID)
	r.GET("/v1/orders/:id/status", h.GetOrderStatus)
	r.GET("/v1/products/:id", h.GetProductByID)
	return r
}

func postOrder(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPlaceOrderCreated(t *testing.T) {
	store := newFakeStore(
		domain.Product{ID: 1, Name: "a", Price: decimal.RequireFromString("10.00"), Stock: 5, Version: 1},
		domain.Product{ID: 2, Name: "b", Price: decimal.RequireFromString("3.50"), Stock: 2, Version: 1},
	)
	r := newTestRouter(store, &fakeOrders{}, &fakeCache{summaries: map[string]usecase.OrderSummary{}})

	w := postOrder(t, r, `{"userId":"u1","items":[
		{"productId":1,"quantity":2},
		{"productId":1,"quantity":1},
		{"productId":2,"quantity":2}]}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		OrderID string `json:"orderId"`
		Total   string `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.OrderID)
	assert.True(t, decimal.RequireFromString(resp.Total).Equal(decimal.RequireFromString("37.00")))
}

func TestPlaceOrderValidationStatuses(t *testing.T) {
	store := newFakeStore(
		domain.Product{ID: 1, Price: decimal.RequireFromString("10.00"), Stock: 1, Version: 1},
	)
	r := newTestRouter(store, &fakeOrders{}, &fakeCache{summaries: map[string]usecase.OrderSummary{}})

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"empty items", `{"userId":"u1","items":[]}`, http.StatusBadRequest, "empty_order"},
		{"zero quantity", `{"userId":"u1","items":[{"productId":1,"quantity":0}]}`, http.StatusBadRequest, "invalid_quantity"},
		{"negative quantity", `{"userId":"u1","items":[{"productId":1,"quantity":-2}]}`, http.StatusBadRequest, "invalid_quantity"},
		{"unknown product", `{"userId":"u1","items":[{"productId":99,"quantity":1}]}`, http.StatusNotFound, "product_not_found"},
		{"insufficient stock", `{"userId":"u1","items":[{"productId":1,"quantity":5}]}`, http.StatusConflict, "insufficient_stock"},
		{"missing user", `{"items":[{"productId":1,"quantity":1}]}`, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postOrder(t, r, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			var resp map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp["error"])
		})
	}
}

func TestGetOrderStatusServedFromCache(t *testing.T) {
	store := newFakeStore()
	cc := &fakeCache{summaries: map[string]usecase.OrderSummary{
		"ord-1": {OrderID: "ord-1", UserID: "u1", Status: "PLACED", Total: "37.00"},
	}}
	r := newTestRouter(store, &fakeOrders{}, cc)

	req := httptest.NewRequest(http.MethodGet, "/v1/orders/ord-1/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var s usecase.OrderSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, "PLACED", s.Status)
	assert.Equal(t, "37.00", s.Total)
}

func TestGetOrderDistinguishesMissingFromStoreDown(t *testing.T) {
	store := newFakeStore()
	cc := &fakeCache{summaries: map[string]usecase.OrderSummary{}}

	down := &fakeOrders{readErr: fmt.Errorf("%w: read order: connection refused", usecase.ErrStoreUnavailable)}
	r := newTestRouter(store, down, cc)
	for _, path := range []string{"/v1/orders/ord-1", "/v1/orders/ord-1/status"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}

	r = newTestRouter(store, &fakeOrders{}, cc)
	for _, path := range []string{"/v1/orders/ord-1", "/v1/orders/ord-1/status"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestGetProductByID(t *testing.T) {
	store := newFakeStore(
		domain.Product{ID: 7, Name: "widget", Price: decimal.RequireFromString("1.25"), Stock: 3, Version: 2},
	)
	r := newTestRouter(store, &fakeOrders{}, &fakeCache{summaries: map[string]usecase.OrderSummary{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/products/7", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/products/404", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
