package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrUserNotFound    = fmt.Errorf("user %w", domain.ErrNotFound)
	ErrProductNotFound = fmt.Errorf("product %w", domain.ErrNotFound)
	ErrOrderNotFound   = fmt.Errorf("order %w", domain.ErrNotFound)
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrDuplicateOrder  = errors.New("order with this idempotency key already exists")
)

// UserRepository stores identities in the users collection.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByResetToken(ctx context.Context, token string) (*domain.User, error)
	SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// CartRepository mutates the cart embedded in a user document. Mutations
// are conditional or relative updates, never read-modify-write, so
// concurrent calls never lose increments.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	AddItem(ctx context.Context, userID, productID string) error
	RemoveItem(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
	// RemoveItems subtracts the given quantities and drops lines that reach
	// zero, leaving anything added since the items were read.
	RemoveItems(ctx context.Context, userID string, items []domain.CartItem) error
}

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)
	List(ctx context.Context, offset, limit int64) ([]*domain.Product, int64, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id, ownerID string) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
}
