package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/client/order"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
type AddItemRequest struct {
	ID        int64            `json:"id" validate:"gt=0"`
	Name      string           `json:"name" validate:"required,max=500"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"required,gte=0,lte=1000000"`
	Image     string           `json:"image" validate:"max=2048"`
}

// UpdateQuantityRequest is the JSON request body for setting a line's
// quantity. Zero or less removes the line; the upper bound is
// cart.MaxQuantity.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=9999"`
}

// AddressRequest is a shipping address.
type AddressRequest struct {
	Street  string `json:"street" validate:"required,max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"required,max=100"`
	ZipCode string `json:"zip_code" validate:"required,max=20"`
	Country string `json:"country" validate:"required,max=100"`
}

// CheckoutRequest is the JSON request body for checking out.
type CheckoutRequest struct {
	ShippingAddress AddressRequest `json:"shipping_address" validate:"required"`
}

// --- Response DTOs ---

// LineItemResponse is one cart line.
type LineItemResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image"`
	Subtotal  string `json:"subtotal"`
}

// CartResponse is the cart view rendered on every cart endpoint.
type CartResponse struct {
	Items      []LineItemResponse `json:"items"`
	ItemCount  int                `json:"item_count"`
	TotalPrice string             `json:"total_price"`
}

// CheckoutResponse carries the order created from the cart.
type CheckoutResponse struct {
	OrderID int64 `json:"order_id"`
}

func toCartResponse(v service.View) CartResponse {
	items := make([]LineItemResponse, len(v.Items))
	for i, it := range v.Items {
		items[i] = toLineItemResponse(it)
	}
	return CartResponse{
		Items:      items,
		ItemCount:  v.ItemCount,
		TotalPrice: v.TotalPrice.StringFixed(2),
	}
}

func toLineItemResponse(it cart.LineItem) LineItemResponse {
	return LineItemResponse{
		ID:        it.ID,
		Name:      it.Name,
		UnitPrice: it.UnitPrice.StringFixed(2),
		Quantity:  it.Quantity,
		Image:     it.Image,
		Subtotal:  it.Subtotal().StringFixed(2),
	}
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.View(r.Context(), middleware.SessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toCartResponse(v)})
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	v, err := h.service.AddItem(r.Context(), middleware.SessionIDFromContext(r.Context()), service.AddItemInput{
		ID:        req.ID,
		Name:      req.Name,
		UnitPrice: *req.UnitPrice,
		Image:     req.Image,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toCartResponse(v)})
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{productId}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseID(w, "productId", chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	v, err := h.service.SetQuantity(r.Context(), middleware.SessionIDFromContext(r.Context()), productID, *req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toCartResponse(v)})
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseID(w, "productId", chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	v, err := h.service.RemoveItem(r.Context(), middleware.SessionIDFromContext(r.Context()), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toCartResponse(v)})
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Clear(r.Context(), middleware.SessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toCartResponse(v)})
}

// Checkout handles POST /api/v1/cart/checkout. The caller's Authorization
// header is passed through to the order service.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	a := req.ShippingAddress
	orderID, err := h.service.Checkout(r.Context(), middleware.SessionIDFromContext(r.Context()), service.CheckoutInput{
		ShippingAddress: order.Address{
			Street:  a.Street,
			City:    a.City,
			State:   a.State,
			ZipCode: a.ZipCode,
			Country: a.Country,
		},
		AuthToken: r.Header.Get("Authorization"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: CheckoutResponse{OrderID: orderID}})
}
