package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(products *mockProducts, c *mockCache, images *mockImages) *CatalogService {
	return NewCatalogService(products, c, images, domain.NewValidator(5), 2, zerolog.Nop())
}

var validInput = domain.ProductInput{
	Title:       "Widget",
	Price:       "12.50",
	Description: "A very useful widget",
}

func TestCatalogService_CreateProduct(t *testing.T) {
	products := newMockProducts()
	images := &mockImages{}
	svc := newTestCatalog(products, newMockCache(), images)

	p, err := svc.CreateProduct(context.Background(), "owner-1", validInput, strings.NewReader("png"))

	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "owner-1", p.UserID)
	assert.Equal(t, "12.5", p.Price.String())
	assert.Equal(t, "/images/1.png", p.ImageURL)
}

func TestCatalogService_CreateProductValidation(t *testing.T) {
	svc := newTestCatalog(newMockProducts(), newMockCache(), &mockImages{})

	in := domain.ProductInput{Title: "ab", Price: "-1", Description: "x"}
	_, err := svc.CreateProduct(context.Background(), "owner-1", in, nil)

	ve, ok := domain.IsValidation(err)
	require.True(t, ok)
	codes := fieldCodes(ve)
	assert.Equal(t, "min", codes["title"])
	assert.Equal(t, "positive_decimal", codes["price"])
	assert.Equal(t, "min", codes["description"])
	assert.Equal(t, "required", codes["image"])
	assert.Equal(t, "ab", ve.Input["title"])
}

func TestCatalogService_CreateProductUnstorablePrice(t *testing.T) {
	products := newMockProducts()
	svc := newTestCatalog(products, newMockCache(), &mockImages{})

	for _, price := range []string{
		"0.12345678901234567890123456789012345",
		"123456789012345678901234567890123456",
	} {
		in := validInput
		in.Price = price
		_, err := svc.CreateProduct(context.Background(), "owner-1", in, strings.NewReader("png"))

		ve, ok := domain.IsValidation(err)
		require.True(t, ok, price)
		assert.Equal(t, "price", ve.Fields[0].Field)
		assert.Equal(t, price, ve.Input["price"])
	}
	assert.Empty(t, products.products)
}

func TestCatalogService_CreateProductRejectedImage(t *testing.T) {
	images := &mockImages{err: domain.NewValidationError("validation failed", nil,
		domain.FieldError{Field: "image", Code: "mime", Message: "attached file is not an image"})}
	svc := newTestCatalog(newMockProducts(), newMockCache(), images)

	_, err := svc.CreateProduct(context.Background(), "owner-1", validInput, strings.NewReader("gif"))

	ve, ok := domain.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "Widget", ve.Input["title"])
}

func TestCatalogService_GetProductUsesCache(t *testing.T) {
	products := newMockProducts(testProduct("p1", "Widget", "10.00"))
	c := newMockCache()
	svc := newTestCatalog(products, c, &mockImages{})
	ctx := context.Background()

	p, err := svc.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Widget", p.Title)

	assert.Eventually(t, func() bool { return c.has("p1") }, time.Second, 10*time.Millisecond)

	_, err = svc.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, products.getCalls)
}

func TestCatalogService_GetProductCacheErrorFallsBack(t *testing.T) {
	products := newMockProducts(testProduct("p1", "Widget", "10.00"))
	c := newMockCache()
	c.err = errors.New("redis down")
	svc := newTestCatalog(products, c, &mockImages{})

	p, err := svc.GetProduct(context.Background(), "p1")

	require.NoError(t, err)
	assert.Equal(t, "Widget", p.Title)
}

func TestCatalogService_GetProductBreakerOpenFallsBack(t *testing.T) {
	products := newMockProducts(testProduct("p1", "Widget", "10.00"))
	c := newMockCache()
	c.err = fmt.Errorf("redis get failed: %w", gobreaker.ErrOpenState)
	svc := newTestCatalog(products, c, &mockImages{})

	p, err := svc.GetProduct(context.Background(), "p1")

	require.NoError(t, err)
	assert.Equal(t, "Widget", p.Title)
}

func TestCatalogService_CacheFillAfterInvalidation(t *testing.T) {
	c := newMockCache()
	svc := newTestCatalog(newMockProducts(), c, &mockImages{})
	p := testProduct("p1", "Widget", "10.00")

	t.Run("stale read is not kept", func(t *testing.T) {
		gen := svc.generation(p.ID)
		svc.invalidate(context.Background(), p.ID)

		svc.fillCache(p, gen)

		assert.False(t, c.has(p.ID))
	})

	t.Run("current read is kept", func(t *testing.T) {
		svc.fillCache(p, svc.generation(p.ID))

		assert.True(t, c.has(p.ID))
	})
}

func TestCatalogService_GetProductConcurrent(t *testing.T) {
	products := newMockProducts(testProduct("p1", "Widget", "10.00"))
	svc := newTestCatalog(products, newMockCache(), &mockImages{})

	var wg sync.WaitGroup
	for rangeIter := 0; rangeIter < 20; rangeIter++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := svc.GetProduct(context.Background(), "p1")
			assert.NoError(t, err)
			assert.Equal(t, "p1", p.ID)
		}()
	}
	wg.Wait()
}

func TestCatalogService_ListProductsPagination(t *testing.T) {
	products := newMockProducts()
	svc := newTestCatalog(products, newMockCache(), &mockImages{})
	ctx := context.Background()
	for rangeIter := 0; rangeIter < 5; rangeIter++ {
		_, err := svc.CreateProduct(ctx, "owner-1", validInput, strings.NewReader("png"))
		require.NoError(t, err)
	}

	page, err := svc.ListProducts(ctx, 2)

	require.NoError(t, err)
	assert.Len(t, page.Products, 2)
	assert.Equal(t, 2, page.Page.CurrentPage)
	assert.True(t, page.Page.HasNext)
	assert.True(t, page.Page.HasPrevious)
	assert.Equal(t, 3, page.Page.LastPage)
	assert.Equal(t, int64(5), page.Page.Total)

	first, err := svc.ListProducts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Page.CurrentPage)
}

func TestCatalogService_ListProductsPageOutOfRange(t *testing.T) {
	products := newMockProducts()
	svc := newTestCatalog(products, newMockCache(), &mockImages{})
	ctx := context.Background()
	for rangeIter := 0; rangeIter < 3; rangeIter++ {
		_, err := svc.CreateProduct(ctx, "owner-1", validInput, strings.NewReader("png"))
		require.NoError(t, err)
	}

	page, err := svc.ListProducts(ctx, math.MaxInt)

	require.NoError(t, err)
	assert.Empty(t, page.Products)
	assert.Positive(t, page.Page.CurrentPage)
	assert.False(t, page.Page.HasNext)
	assert.True(t, page.Page.HasPrevious)
	assert.Equal(t, 2, page.Page.LastPage)
	assert.Equal(t, int64(3), page.Page.Total)
}

func TestCatalogService_UpdateProduct(t *testing.T) {
	products := newMockProducts()
	c := newMockCache()
	images := &mockImages{}
	svc := newTestCatalog(products, c, images)
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, "owner-1", validInput, strings.NewReader("png"))
	require.NoError(t, err)

	t.Run("owner keeps image", func(t *testing.T) {
		in := validInput
		in.Title = "Better Widget"
		updated, err := svc.UpdateProduct(ctx, "owner-1", p.ID, in, nil)
		require.NoError(t, err)
		assert.Equal(t, "Better Widget", updated.Title)
		assert.Equal(t, p.ImageURL, updated.ImageURL)
		assert.Contains(t, c.deleted, p.ID)
	})

	t.Run("owner replaces image", func(t *testing.T) {
		updated, err := svc.UpdateProduct(ctx, "owner-1", p.ID, validInput, strings.NewReader("png"))
		require.NoError(t, err)
		assert.NotEqual(t, p.ImageURL, updated.ImageURL)
		assert.Contains(t, images.removed, p.ImageURL)
	})

	t.Run("other user", func(t *testing.T) {
		_, err := svc.UpdateProduct(ctx, "owner-2", p.ID, validInput, nil)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("missing product", func(t *testing.T) {
		_, err := svc.UpdateProduct(ctx, "owner-1", "missing", validInput, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestCatalogService_DeleteProduct(t *testing.T) {
	products := newMockProducts()
	images := &mockImages{}
	svc := newTestCatalog(products, newMockCache(), images)
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, "owner-1", validInput, strings.NewReader("png"))
	require.NoError(t, err)

	err = svc.DeleteProduct(ctx, "owner-2", p.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, svc.DeleteProduct(ctx, "owner-1", p.ID))
	assert.Contains(t, images.removed, p.ImageURL)

	_, err = svc.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalogService_ListOwnedProducts(t *testing.T) {
	products := newMockProducts(
		testProduct("p1", "Widget", "10.00"),
		&domain.Product{ID: "p2", Title: "Other", UserID: "owner-2"},
	)
	svc := newTestCatalog(products, newMockCache(), &mockImages{})

	owned, err := svc.ListOwnedProducts(context.Background(), "owner-1")

	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "p1", owned[0].ID)
}
