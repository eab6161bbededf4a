package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/invoice"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const ordersPath = "/api/v1/orders"

type OrderService interface {
	PlaceOrder(ctx context.Context, userID, idempotencyKey string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*domain.Order, error)
	RenderInvoice(ctx context.Context, orderID, requesterID string, w io.Writer) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewOrdersHandler(orders OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type OrderResponse struct {
	*domain.Order
	Total decimal.Decimal `json:"total"`
}

func newOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{Order: o, Total: o.Total()}
}

// PlaceOrder checks the cart out. An Idempotency-Key header makes retries
// return the order created by the first attempt.
func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key := r.Header.Get("Idempotency-Key")
	if len(key) > 255 {
		respondError(w, r, http.StatusBadRequest, "invalid_idempotency_key", "Idempotency-Key is too long")
		return
	}

	order, err := h.orders.PlaceOrder(ctx, getUserIDFromContext(r.Context()), key)
	if err != nil {
		handleServiceError(w, r, err, cartPath)
		return
	}

	respondJSON(w, r, http.StatusCreated, newOrderResponse(order))
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListOrders(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err, "")
		return
	}

	resp := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderResponse(o))
	}
	respondJSON(w, r, http.StatusOK, resp)
}

// GetInvoice renders into a buffer first so a failure can still be answered
// with a redirect.
func (h *OrdersHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var buf bytes.Buffer
	order, err := h.orders.RenderInvoice(ctx, chi.URLParam(r, "order_id"), getUserIDFromContext(r.Context()), &buf)
	if err != nil {
		handleServiceError(w, r, err, ordersPath)
		return
	}

	w.Header().Set("Content-Type", invoice.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", invoice.FileName(order)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
