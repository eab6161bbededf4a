package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/go-chi/chi/v5"
)

const productsPath = "/api/v1/products"

type CatalogService interface {
	ListProducts(ctx context.Context, page int) (*domain.ProductPage, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListOwnedProducts(ctx context.Context, ownerID string) ([]*domain.Product, error)
	CreateProduct(ctx context.Context, ownerID string, in domain.ProductInput, image io.Reader) (*domain.Product, error)
	UpdateProduct(ctx context.Context, ownerID, productID string, in domain.ProductInput, image io.Reader) (*domain.Product, error)
	DeleteProduct(ctx context.Context, ownerID, productID string) error
}

type ProductHandler struct {
	catalog       CatalogService
	timeout       time.Duration
	maxUploadSize int64
}

func NewProductHandler(catalog CatalogService, timeout time.Duration, maxUploadSize int64) *ProductHandler {
	return &ProductHandler{
		catalog:       catalog,
		timeout:       timeout,
		maxUploadSize: maxUploadSize,
	}
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	result, err := h.catalog.ListProducts(ctx, page)
	if err != nil {
		handleServiceError(w, r, err, "")
		return
	}

	respondJSON(w, r, http.StatusOK, result)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err, "")
		return
	}

	respondJSON(w, r, http.StatusOK, product)
}

func (h *ProductHandler) ListOwnedProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.ListOwnedProducts(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err, "")
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	respondJSON(w, r, http.StatusOK, products)
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	in, image, ok := h.parseProductForm(w, r)
	if !ok {
		return
	}
	if image != nil {
		defer image.Close()
	}

	product, err := h.catalog.CreateProduct(ctx, getUserIDFromContext(r.Context()), in, readerOrNil(image))
	if err != nil {
		handleServiceError(w, r, err, productsPath)
		return
	}

	respondJSON(w, r, http.StatusCreated, product)
}

// UpdateProduct keeps the current image when the form carries none.
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	in, image, ok := h.parseProductForm(w, r)
	if !ok {
		return
	}
	if image != nil {
		defer image.Close()
	}

	product, err := h.catalog.UpdateProduct(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "id"), in, readerOrNil(image))
	if err != nil {
		handleServiceError(w, r, err, productsPath)
		return
	}

	respondJSON(w, r, http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.catalog.DeleteProduct(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err, productsPath)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseProductForm reads the multipart form. It writes the error response
// itself and reports false when the request is unusable.
func (h *ProductHandler) parseProductForm(w http.ResponseWriter, r *http.Request) (domain.ProductInput, io.ReadCloser, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "uploaded file is too large")
			return domain.ProductInput{}, nil, false
		}
		respondError(w, r, http.StatusBadRequest, "invalid_request", "expected multipart form")
		return domain.ProductInput{}, nil, false
	}

	in := domain.ProductInput{
		Title:       r.FormValue("title"),
		Price:       r.FormValue("price"),
		Description: r.FormValue("description"),
	}

	file, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil, true
	case err != nil:
		respondError(w, r, http.StatusBadRequest, "invalid_request", "could not read uploaded image")
		return domain.ProductInput{}, nil, false
	}
	return in, file, true
}

// readerOrNil avoids handing the service a non-nil interface holding a nil
// file.
func readerOrNil(f io.ReadCloser) io.Reader {
	if f == nil {
		return nil
	}
	return f
}
