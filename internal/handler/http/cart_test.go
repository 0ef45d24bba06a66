package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/client/order"
	"github.com/utafrali/storefront/internal/repository/memory"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/middleware"
)

// ============================================================================
// Mocks
// ============================================================================

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishCartUpdated(ctx context.Context, sessionID string, c cart.Cart) error {
	return m.Called(ctx, sessionID, c).Error(0)
}

func (m *mockEvents) PublishCartCleared(ctx context.Context, sessionID, reason string) error {
	return m.Called(ctx, sessionID, reason).Error(0)
}

func (m *mockEvents) PublishCartCheckedOut(ctx context.Context, sessionID string, orderID int64, c cart.Cart) error {
	return m.Called(ctx, sessionID, orderID, c).Error(0)
}

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) SubmitOrder(ctx context.Context, req order.Request) (int64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(int64), args.Error(1)
}

// ============================================================================
// Test helpers
// ============================================================================

type testEnv struct {
	router http.Handler
	slots  *memory.Provider
	orders *mockOrders
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	events := new(mockEvents)
	events.On("PublishCartUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	events.On("PublishCartCleared", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	events.On("PublishCartCheckedOut", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	env := &testEnv{slots: memory.NewProvider(), orders: new(mockOrders)}
	svc := service.NewCartService(env.slots, events, env.orders, logger.Discard(), service.Config{
		SessionIdle: time.Minute,
		SlotTimeout: time.Second,
	})

	hh := health.NewHandler()
	hh.RegisterCritical("slot", env.slots.Ping)

	env.router = NewRouter(svc, hh, logger.Discard(), RouterConfig{CORS: middleware.DefaultCORSConfig()})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, session string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(middleware.SessionHeader, session)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type cartEnvelope struct {
	Data  CartResponse            `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartEnvelope {
	t.Helper()
	var env cartEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

const dressJSON = `{"id":1,"name":"Dress","unit_price":"150.00","image":"a.jpg"}`

// ============================================================================
// GET /api/v1/cart
// ============================================================================

func TestGetCart_IssuesSessionWhenMissing(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.SessionHeader))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	resp := decodeCart(t, rec)
	assert.Nil(t, resp.Error)
	assert.Empty(t, resp.Data.Items)
	assert.Equal(t, "0.00", resp.Data.TotalPrice)
}

func TestGetCart_ReadsExistingSlot(t *testing.T) {
	env := newTestEnv(t)
	env.slots.Put("sess-1", []byte(`[{"id":1,"name":"Dress","unitPrice":150,"quantity":2,"image":"a.jpg"},{"id":"x"}]`))

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "sess-1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sess-1", rec.Header().Get(middleware.SessionHeader))
	resp := decodeCart(t, rec)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, "300.00", resp.Data.Items[0].Subtotal)
	assert.Equal(t, 2, resp.Data.ItemCount)
	assert.Equal(t, "300.00", resp.Data.TotalPrice)
}

// ============================================================================
// POST /api/v1/cart/items
// ============================================================================

func TestAddItem_Success(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/v1/cart/items", "sess-1", dressJSON)
	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "sess-1", dressJSON)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCart(t, rec)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, 2, resp.Data.Items[0].Quantity)
	assert.Equal(t, "150.00", resp.Data.Items[0].UnitPrice)
	assert.Equal(t, "300.00", resp.Data.TotalPrice)

	raw, ok := env.slots.Get("sess-1")
	require.True(t, ok)
	assert.Contains(t, string(raw), `"quantity":2`)
}

func TestAddItem_NumericPrice(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "sess-1", `{"id":3,"name":"Sock","unit_price":4.5}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4.50", decodeCart(t, rec).Data.TotalPrice)
}

func TestAddItem_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "sess-1", `{invalid json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestAddItem_ValidationFailure(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "sess-1", `{"id":0,"name":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", e.Code)
	assert.Contains(t, e.Fields, "id")
	assert.Contains(t, e.Fields, "name")
	assert.Contains(t, e.Fields, "unit_price")
}

func TestAddItem_NegativePrice(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "sess-1", `{"id":1,"name":"X","unit_price":"-1"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", e.Code)
	assert.Contains(t, e.Fields, "unit_price")
}

func TestAddItem_PriceOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		price string
		code  string
	}{
		{"huge exponent", `"1e20000000"`, "VALIDATION_ERROR"},
		{"huge exponent number", `1e20000000`, "VALIDATION_ERROR"},
		{"above max", `"1000000.01"`, "VALIDATION_ERROR"},
		{"tiny exponent", `"1e-20000000"`, "INVALID_INPUT"},
		{"sub-cent", `"19.999"`, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			start := time.Now()
			rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "s", `{"id":3,"name":"X","unit_price":`+tt.price+`}`)

			assert.Less(t, time.Since(start), 2*time.Second)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Less(t, rec.Body.Len(), 1024)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
			_, written := env.slots.Get("s")
			assert.False(t, written)
		})
	}
}

func TestAddItem_MaxPriceAccepted(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "s", `{"id":3,"name":"X","unit_price":"1000000.00"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000000.00", decodeCart(t, rec).Data.TotalPrice)
}

func TestAddItem_WrongContentType(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader([]byte(dressJSON)))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// ============================================================================
// PUT / DELETE /api/v1/cart/items/{productId}
// ============================================================================

func TestUpdateItemQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s", dressJSON)

	rec := env.do(t, http.MethodPut, "/api/v1/cart/items/1", "s", `{"quantity":3}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "450.00", decodeCart(t, rec).Data.TotalPrice)

	rec = env.do(t, http.MethodPut, "/api/v1/cart/items/1", "s", `{"quantity":0}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Data.Items)
}

func TestUpdateItemQuantity_MissingQuantity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/v1/cart/items/1", "s", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
}

func TestUpdateItemQuantity_AboveMax(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s", dressJSON)

	for _, body := range []string{`{"quantity":10000}`, `{"quantity":9223372036854775807}`} {
		rec := env.do(t, http.MethodPut, "/api/v1/cart/items/1", "s", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		e := decodeError(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", e.Code)
		assert.Contains(t, e.Fields, "quantity")
	}
}

func TestUpdateItemQuantity_AddAtMaxKeepsQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s", dressJSON)

	rec := env.do(t, http.MethodPut, "/api/v1/cart/items/1", "s", fmt.Sprintf(`{"quantity":%d}`, cart.MaxQuantity))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/cart/items", "s", dressJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCart(t, rec)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, cart.MaxQuantity, resp.Data.Items[0].Quantity)
	assert.Equal(t, cart.MaxQuantity, resp.Data.ItemCount)
	assert.Equal(t, "1499850.00", resp.Data.TotalPrice)

	raw, ok := env.slots.Get("s")
	require.True(t, ok)
	items, drops, err := cart.Decode(raw)
	require.NoError(t, err)
	assert.Empty(t, drops)
	require.Len(t, items, 1)
	assert.Equal(t, cart.MaxQuantity, items[0].Quantity)
}

func TestUpdateItemQuantity_InvalidProductID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/v1/cart/items/abc", "s", `{"quantity":1}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeError(t, rec).Code)
}

func TestRemoveItem(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s", dressJSON)
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s", `{"id":2,"name":"Hat","unit_price":"20"}`)

	rec := env.do(t, http.MethodDelete, "/api/v1/cart/items/1", "s", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCart(t, rec)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, int64(2), resp.Data.Items[0].ID)
}

// ============================================================================
// DELETE /api/v1/cart
// ============================================================================

func TestClearCart(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s", dressJSON)

	rec := env.do(t, http.MethodDelete, "/api/v1/cart", "s", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Data.Items)
	raw, _ := env.slots.Get("s")
	assert.Equal(t, "[]", string(raw))
}

// ============================================================================
// POST /api/v1/cart/checkout
// ============================================================================

const checkoutJSON = `{"shipping_address":{"street":"1 Main St","city":"Springfield","state":"IL","zip_code":"62701","country":"US"}}`

func TestCheckout_Success(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s", dressJSON)

	env.orders.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(r order.Request) bool {
		return r.AuthToken == "Bearer abc" &&
			len(r.Items) == 1 && r.Items[0].ProductID == 1 &&
			r.ShippingAddress.ZipCode == "62701"
	})).Return(int64(42), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/checkout", strings.NewReader(checkoutJSON))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set(middleware.SessionHeader, "s")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":{"order_id":42}}`, rec.Body.String())

	raw, _ := env.slots.Get("s")
	assert.Equal(t, "[]", string(raw))
	env.orders.AssertExpectations(t)
}

func TestCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/checkout", "s", checkoutJSON)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
	env.orders.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
}

func TestCheckout_MissingAddress(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/checkout", "s", `{"shipping_address":{"street":"1 Main St"}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", e.Code)
	assert.Contains(t, e.Fields, "shipping_address.city")
}

func TestCheckout_MissingState(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s", dressJSON)

	body := `{"shipping_address":{"street":"1 Main St","city":"Springfield","state":"","zip_code":"62701","country":"US"}}`
	rec := env.do(t, http.MethodPost, "/api/v1/cart/checkout", "s", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", e.Code)
	assert.Contains(t, e.Fields, "shipping_address.state")
	env.orders.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
}

func TestCheckout_OrderServiceDown(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s", dressJSON)
	before, _ := env.slots.Get("s")

	env.orders.On("SubmitOrder", mock.Anything, mock.Anything).
		Return(int64(0), apperrors.ServiceUnavailable("order service unavailable", nil)).Once()

	rec := env.do(t, http.MethodPost, "/api/v1/cart/checkout", "s", checkoutJSON)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, rec).Code)
	after, _ := env.slots.Get("s")
	assert.Equal(t, string(before), string(after))
}

// ============================================================================
// Health, CORS
// ============================================================================

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart/items", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), middleware.SessionHeader)
}
