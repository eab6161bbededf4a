package service

import (
	"context"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/pkg/logger"
	"github.com/rs/zerolog"
)

// ProductLookup resolves product ids against the catalog.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]*domain.Product, error)
}

// logFor prefers the request logger carried by ctx.
func logFor(ctx context.Context, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return logger.FromContext(ctx)
	}
	return &fallback
}

// resolveCart pairs every cart item with its live product, in cart order.
// Products that no longer exist are reported in missing instead of failing.
func resolveCart(ctx context.Context, products ProductLookup, cart domain.Cart) ([]domain.CartLine, []string, error) {
	found, err := products.GetProducts(ctx, cart.ProductIDs())
	if err != nil {
		return nil, nil, err
	}

	lines := make([]domain.CartLine, 0, len(cart.Items))
	var missing []string
	for _, item := range cart.Items {
		p, ok := found[item.ProductID]
		if !ok {
			missing = append(missing, item.ProductID)
			continue
		}
		lines = append(lines, domain.CartLine{Product: p, Quantity: item.Quantity})
	}
	return lines, missing, nil
}
