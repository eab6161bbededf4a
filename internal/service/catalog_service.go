package service

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/fjod/go_shop/pkg/circuitbreaker"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

type ImageStore interface {
	Save(r io.Reader) (string, error)
	Remove(url string) error
}

type CatalogService struct {
	products  repository.ProductRepository
	cache     cache.ProductCache
	images    ImageStore
	validator *domain.Validator
	pageSize  int
	logger    zerolog.Logger
	sfg       singleflight.Group // Prevents cache stampede

	// generations counts invalidations per product id. A cache fill that
	// raced an invalidation undoes itself.
	genMu       sync.Mutex
	generations map[string]uint64
}

func NewCatalogService(
	products repository.ProductRepository,
	cache cache.ProductCache,
	images ImageStore,
	validator *domain.Validator,
	pageSize int,
	logger zerolog.Logger,
) *CatalogService {
	if pageSize < 1 {
		pageSize = 10
	}
	return &CatalogService{
		products:  products,
		cache:     cache,
		images:    images,
		validator: validator,
		pageSize:  pageSize,
		logger:    logger,

		generations: make(map[string]uint64),
	}
}

func (s *CatalogService) ListProducts(ctx context.Context, page int) (*domain.ProductPage, error) {
	if page < 1 {
		page = 1
	}
	// Larger pages would overflow the store offset.
	if maxPage := math.MaxInt32 / s.pageSize; page > maxPage {
		page = maxPage
	}
	offset := int64(page-1) * int64(s.pageSize)

	products, total, err := s.products.List(ctx, offset, int64(s.pageSize))
	if err != nil {
		return nil, err
	}
	return &domain.ProductPage{
		Products: products,
		Page:     domain.NewPage(page, s.pageSize, total),
	}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(id, func() (interface{}, error) {
		product, err := s.cache.Get(ctx, id)
		if err == nil {
			return product, nil
		}
		switch {
		case errors.Is(err, cache.ErrCacheMiss):
		case circuitbreaker.IsOpen(err):
			logFor(ctx, s.logger).Debug().Str("product_id", id).Msg("product cache breaker open, reading store")
		default:
			logFor(ctx, s.logger).Warn().Err(err).Str("product_id", id).Msg("product cache get failed")
		}

		gen := s.generation(id)
		product, err = s.products.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		go s.fillCache(product, gen)

		return product, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Product), nil
}

// GetProducts reads straight from the store so checkout always sees
// current prices.
func (s *CatalogService) GetProducts(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	return s.products.GetByIDs(ctx, ids)
}

func (s *CatalogService) ListOwnedProducts(ctx context.Context, ownerID string) ([]*domain.Product, error) {
	return s.products.ListByOwner(ctx, ownerID)
}

func (s *CatalogService) CreateProduct(ctx context.Context, ownerID string, in domain.ProductInput, image io.Reader) (*domain.Product, error) {
	in = normalizeProductInput(in)
	ve, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	if image == nil {
		ve.Add("image", "required", "attached file is not an image")
	}
	if ve.HasErrors() {
		return nil, ve
	}

	imageURL, err := s.saveImage(in, image)
	if err != nil {
		return nil, err
	}

	product := &domain.Product{
		Title:       in.Title,
		Price:       decimal.RequireFromString(in.Price),
		Description: in.Description,
		ImageURL:    imageURL,
		UserID:      ownerID,
	}
	if err := s.products.Create(ctx, product); err != nil {
		s.removeImage(ctx, imageURL)
		return nil, err
	}

	logFor(ctx, s.logger).Info().Str("product_id", product.ID).Str("user_id", ownerID).Msg("product created")
	return product, nil
}

// UpdateProduct replaces the editable fields. image may be nil to keep the
// current one. A product owned by someone else yields domain.ErrUnauthorized.
func (s *CatalogService) UpdateProduct(ctx context.Context, ownerID, productID string, in domain.ProductInput, image io.Reader) (*domain.Product, error) {
	in = normalizeProductInput(in)
	ve, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	if ve.HasErrors() {
		return nil, ve
	}

	product, err := s.ownedProduct(ctx, ownerID, productID)
	if err != nil {
		return nil, err
	}

	oldImage := product.ImageURL
	updated := *product
	updated.Title = in.Title
	updated.Price = decimal.RequireFromString(in.Price)
	updated.Description = in.Description
	if image != nil {
		if updated.ImageURL, err = s.saveImage(in, image); err != nil {
			return nil, err
		}
	}

	if err := s.products.Update(ctx, &updated); err != nil {
		if updated.ImageURL != oldImage {
			s.removeImage(ctx, updated.ImageURL)
		}
		return nil, err
	}
	if updated.ImageURL != oldImage {
		s.removeImage(ctx, oldImage)
	}
	s.invalidate(ctx, productID)

	return &updated, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, ownerID, productID string) error {
	product, err := s.ownedProduct(ctx, ownerID, productID)
	if err != nil {
		return err
	}

	if err := s.products.Delete(ctx, productID, ownerID); err != nil {
		return err
	}
	s.removeImage(ctx, product.ImageURL)
	s.invalidate(ctx, productID)

	logFor(ctx, s.logger).Info().Str("product_id", productID).Str("user_id", ownerID).Msg("product deleted")
	return nil
}

func (s *CatalogService) ownedProduct(ctx context.Context, ownerID, productID string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.OwnedBy(ownerID) {
		logFor(ctx, s.logger).Warn().
			Str("product_id", productID).
			Str("user_id", ownerID).
			Msg("product ownership check failed")
		return nil, domain.ErrUnauthorized
	}
	return product, nil
}

func (s *CatalogService) validate(in domain.ProductInput) (*domain.ValidationError, error) {
	err := s.validator.Struct(in, in.Echo())
	if err == nil {
		return domain.NewValidationError("validation failed", in.Echo()), nil
	}
	if ve, ok := domain.IsValidation(err); ok {
		return ve, nil
	}
	return nil, err
}

func (s *CatalogService) saveImage(in domain.ProductInput, image io.Reader) (string, error) {
	url, err := s.images.Save(image)
	if ve, ok := domain.IsValidation(err); ok {
		ve.Input = in.Echo()
		return "", ve
	}
	return url, err
}

func (s *CatalogService) removeImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.images.Remove(url); err != nil {
		logFor(ctx, s.logger).Warn().Err(err).Str("image", url).Msg("failed to remove image")
	}
}

func (s *CatalogService) generation(productID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[productID]
}

// fillCache stores a product read at generation gen. If the product was
// invalidated since, the entry is removed again so a stale or deleted
// product does not outlive the write.
func (s *CatalogService) fillCache(product *domain.Product, gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.cache.Set(ctx, product); err != nil {
		s.logger.Warn().Err(err).Str("product_id", product.ID).Msg("product cache set failed")
		return
	}
	if s.generation(product.ID) == gen {
		return
	}
	if err := s.cache.Delete(ctx, product.ID); err != nil {
		s.logger.Warn().Err(err).Str("product_id", product.ID).Msg("product cache invalidate failed")
	}
}

// invalidate must run after the store write so that fills racing it see the
// new generation.
func (s *CatalogService) invalidate(ctx context.Context, productID string) {
	s.genMu.Lock()
	s.generations[productID]++
	s.genMu.Unlock()

	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(delCtx, productID); err != nil {
		logFor(ctx, s.logger).Warn().Err(err).Str("product_id", productID).Msg("product cache invalidate failed")
	}
}

func normalizeProductInput(in domain.ProductInput) domain.ProductInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Price = strings.TrimSpace(in.Price)
	in.Description = strings.TrimSpace(in.Description)
	return in
}
