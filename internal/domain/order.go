package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductSnapshot is a copy of a product taken when an order is placed.
type ProductSnapshot struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	UserID      string          `json:"user_id"`
}

func NewProductSnapshot(p *Product) ProductSnapshot {
	return ProductSnapshot{
		ID:          p.ID,
		Title:       p.Title,
		Price:       p.Price,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		UserID:      p.UserID,
	}
}

type OrderItem struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is never updated after it has been stored.
type Order struct {
	ID             uuid.UUID   `json:"id"`
	UserID         string      `json:"user_id"`
	UserEmail      string      `json:"user_email"`
	Items          []OrderItem `json:"items"`
	IdempotencyKey string      `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Total sums the snapshot prices, never the live catalog.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (o *Order) OwnedBy(userID string) bool {
	return o.UserID == userID
}
