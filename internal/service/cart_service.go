package service

import (
	"context"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/rs/zerolog"
)

type CartService struct {
	carts    repository.CartRepository
	products ProductLookup
	logger   zerolog.Logger
}

func NewCartService(carts repository.CartRepository, products ProductLookup, logger zerolog.Logger) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		logger:   logger,
	}
}

// GetCart resolves the cart against the catalog. Items whose product was
// deleted are skipped and listed in Missing.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.CartView, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	lines, missing, err := resolveCart(ctx, s.products, cart)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		logFor(ctx, s.logger).Warn().
			Str("user_id", userID).
			Strs("product_ids", missing).
			Msg("cart references missing products")
	}

	return &domain.CartView{Lines: lines, Missing: missing}, nil
}

// AddToCart increments the product's quantity by one, adding the line if
// needed. The product must exist.
func (s *CartService) AddToCart(ctx context.Context, userID, productID string) error {
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return err
	}

	if err := s.carts.AddItem(ctx, userID, productID); err != nil {
		logFor(ctx, s.logger).Error().Err(err).Str("user_id", userID).Str("product_id", productID).Msg("repo add item error")
		return err
	}
	return nil
}

func (s *CartService) RemoveFromCart(ctx context.Context, userID, productID string) error {
	if err := s.carts.RemoveItem(ctx, userID, productID); err != nil {
		logFor(ctx, s.logger).Error().Err(err).Str("user_id", userID).Str("product_id", productID).Msg("repo remove item error")
		return err
	}
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if err := s.carts.ClearCart(ctx, userID); err != nil {
		logFor(ctx, s.logger).Error().Err(err).Str("user_id", userID).Msg("repo clear cart error")
		return err
	}
	return nil
}
