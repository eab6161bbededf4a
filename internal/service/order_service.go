package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/events"
	"github.com/fjod/go_shop/internal/invoice"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type OrderService struct {
	orders    repository.OrderRepository
	users     repository.UserRepository
	carts     repository.CartRepository
	products  ProductLookup
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewOrderService(
	orders repository.OrderRepository,
	users repository.UserRepository,
	carts repository.CartRepository,
	products ProductLookup,
	publisher events.Publisher,
	logger zerolog.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		users:     users,
		carts:     carts,
		products:  products,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

type orderPlacedPayload struct {
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
	Items     int    `json:"items"`
	Total     string `json:"total"`
}

// PlaceOrder snapshots the cart into a new order and then removes the
// ordered lines from the cart.
// The cart is left untouched when resolving products or storing the order
// fails. A repeated idempotency key returns the order created first.
func (s *OrderService) PlaceOrder(ctx context.Context, userID, idempotencyKey string) (*domain.Order, error) {
	log := logFor(ctx, s.logger)

	if idempotencyKey != "" {
		existing, err := s.orders.GetOrderByIdempotencyKey(ctx, userID, idempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	lines, missing, err := resolveCart(ctx, s.products, cart)
	if err != nil {
		return nil, fmt.Errorf("resolve cart products: %w", err)
	}
	if len(missing) > 0 {
		log.Warn().Str("user_id", userID).Strs("product_ids", missing).Msg("skipping missing products at checkout")
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	order := &domain.Order{
		ID:             uuid.New(),
		UserID:         user.ID,
		UserEmail:      user.Email,
		Items:          make([]domain.OrderItem, 0, len(lines)),
		IdempotencyKey: idempotencyKey,
		CreatedAt:      s.now().UTC().Truncate(time.Microsecond),
	}
	for _, line := range lines {
		order.Items = append(order.Items, domain.OrderItem{
			Product:  domain.NewProductSnapshot(line.Product),
			Quantity: line.Quantity,
		})
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) && idempotencyKey != "" {
			return s.orders.GetOrderByIdempotencyKey(ctx, userID, idempotencyKey)
		}
		log.Error().Err(err).Str("user_id", userID).Msg("failed to store order, cart kept")
		return nil, err
	}

	// Only the lines read above are taken out; anything added meanwhile
	// stays in the cart. The order exists now, so a failure here is logged
	// and not returned.
	if err := s.carts.RemoveItems(ctx, userID, cart.Items); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("order_id", order.ID.String()).Msg("failed to clear cart after checkout")
	}

	evt := events.New(events.TypeOrderPlaced, userID, orderPlacedPayload{
		OrderID:   order.ID.String(),
		UserID:    userID,
		UserEmail: order.UserEmail,
		Items:     len(order.Items),
		Total:     order.Total().StringFixed(2),
	})
	if err := s.publisher.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to publish order event")
	}

	log.Info().Str("user_id", userID).Str("order_id", order.ID.String()).Msg("order placed")
	return order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.orders.ListOrdersByUserID(ctx, userID)
}

// GetOrderForUser loads an order the requester owns. A missing order
// matches both domain.ErrNotFound and domain.ErrUnauthorized, so a
// non-owner cannot tell whether it exists.
func (s *OrderService) GetOrderForUser(ctx context.Context, orderID, requesterID string) (*domain.Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, missingOrder(orderID)
	}

	order, err := s.orders.GetOrderByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, missingOrder(orderID)
	}
	if err != nil {
		return nil, err
	}

	if !order.OwnedBy(requesterID) {
		logFor(ctx, s.logger).Warn().
			Str("order_id", orderID).
			Str("user_id", requesterID).
			Msg("order ownership check failed")
		return nil, domain.ErrUnauthorized
	}
	return order, nil
}

// RenderInvoice writes the PDF invoice for an order the requester owns.
func (s *OrderService) RenderInvoice(ctx context.Context, orderID, requesterID string, w io.Writer) (*domain.Order, error) {
	order, err := s.GetOrderForUser(ctx, orderID, requesterID)
	if err != nil {
		return nil, err
	}
	if err := invoice.Render(w, order); err != nil {
		return nil, err
	}
	return order, nil
}

func missingOrder(orderID string) error {
	return fmt.Errorf("order %s: %w", orderID, errors.Join(repository.ErrOrderNotFound, domain.ErrUnauthorized))
}
