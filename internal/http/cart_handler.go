package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/go-chi/chi/v5"
)

const cartPath = "/api/v1/cart"

type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.CartView, error)
	AddToCart(ctx context.Context, userID, productID string) error
	RemoveFromCart(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.respondCart(ctx, w, r, http.StatusOK)
}

// AddItem adds one unit of the product. Repeating the call increments the
// quantity.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	if err := h.carts.AddToCart(ctx, getUserIDFromContext(r.Context()), req.ProductID); err != nil {
		handleServiceError(w, r, err, productsPath)
		return
	}

	h.respondCart(ctx, w, r, http.StatusCreated)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.RemoveFromCart(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "product_id")); err != nil {
		handleServiceError(w, r, err, cartPath)
		return
	}

	h.respondCart(ctx, w, r, http.StatusOK)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.ClearCart(ctx, getUserIDFromContext(r.Context())); err != nil {
		handleServiceError(w, r, err, cartPath)
		return
	}

	h.respondCart(ctx, w, r, http.StatusOK)
}

func (h *CartHandler) respondCart(ctx context.Context, w http.ResponseWriter, r *http.Request, status int) {
	view, err := h.carts.GetCart(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err, "")
		return
	}
	if view.Lines == nil {
		view.Lines = []domain.CartLine{}
	}
	respondJSON(w, r, status, view)
}
