package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	UserID      string          `json:"user_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OwnedBy compares owner ids as strings.
func (p *Product) OwnedBy(userID string) bool {
	return p.UserID != "" && p.UserID == userID
}

// ProductInput is the submitted product form.
type ProductInput struct {
	Title       string `json:"title" validate:"required,min=3"`
	Price       string `json:"price" validate:"required,positive_decimal"`
	Description string `json:"description" validate:"min=5,max=400"`
}

func (in ProductInput) Echo() map[string]string {
	return map[string]string{
		"title":       in.Title,
		"price":       in.Price,
		"description": in.Description,
	}
}

// Page describes one page of a listing.
type Page struct {
	CurrentPage  int   `json:"current_page"`
	HasNext      bool  `json:"has_next"`
	HasPrevious  bool  `json:"has_previous"`
	NextPage     int   `json:"next_page,omitempty"`
	PreviousPage int   `json:"previous_page,omitempty"`
	LastPage     int   `json:"last_page"`
	Total        int64 `json:"total"`
}

func NewPage(current, size int, total int64) Page {
	if size <= 0 {
		size = 1
	}
	last := int((total + int64(size) - 1) / int64(size))
	if last < 1 {
		last = 1
	}
	p := Page{
		CurrentPage: current,
		HasNext:     int64(current)*int64(size) < total,
		HasPrevious: current > 1,
		LastPage:    last,
		Total:       total,
	}
	if p.HasNext {
		p.NextPage = current + 1
	}
	if p.HasPrevious {
		p.PreviousPage = current - 1
	}
	return p
}

type ProductPage struct {
	Products []*Product `json:"products"`
	Page     Page       `json:"page"`
}
