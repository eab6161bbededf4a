package http

import (
	"context"
	"io"
	"sync"

	"github.com/fjod/go_shop/internal/domain"
)

type mockAuth struct {
	m         sync.Mutex
	users     map[string]*domain.User // by session token
	loggedIn  *domain.Session
	err       error
	logoutErr error
	logouts   []string
	signedUp  *domain.User
}

func (a *mockAuth) Authenticate(_ context.Context, token string) (*domain.User, error) {
	a.m.Lock()
	defer a.m.Unlock()
	u, ok := a.users[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (a *mockAuth) Signup(_ context.Context, email, _, _ string) (*domain.User, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.signedUp = &domain.User{ID: "new-user", Email: email}
	return a.signedUp, nil
}

func (a *mockAuth) Login(context.Context, string, string) (*domain.Session, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.loggedIn, nil
}

func (a *mockAuth) Logout(_ context.Context, token string) error {
	a.m.Lock()
	defer a.m.Unlock()
	a.logouts = append(a.logouts, token)
	return a.logoutErr
}

func (a *mockAuth) RequestPasswordReset(context.Context, string) error { return a.err }

func (a *mockAuth) ResetPassword(context.Context, string, string, string) error { return a.err }

type mockCatalog struct {
	page       *domain.ProductPage
	product    *domain.Product
	err        error
	gotImage   bool
	gotInput   domain.ProductInput
	gotOwnerID string
}

func (c *mockCatalog) ListProducts(context.Context, int) (*domain.ProductPage, error) {
	return c.page, c.err
}

func (c *mockCatalog) GetProduct(context.Context, string) (*domain.Product, error) {
	return c.product, c.err
}

func (c *mockCatalog) ListOwnedProducts(context.Context, string) ([]*domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	return []*domain.Product{c.product}, nil
}

func (c *mockCatalog) CreateProduct(_ context.Context, ownerID string, in domain.ProductInput, image io.Reader) (*domain.Product, error) {
	c.gotOwnerID = ownerID
	c.gotInput = in
	c.gotImage = image != nil
	return c.product, c.err
}

func (c *mockCatalog) UpdateProduct(_ context.Context, ownerID, _ string, in domain.ProductInput, image io.Reader) (*domain.Product, error) {
	c.gotOwnerID = ownerID
	c.gotInput = in
	c.gotImage = image != nil
	return c.product, c.err
}

func (c *mockCatalog) DeleteProduct(_ context.Context, ownerID, _ string) error {
	c.gotOwnerID = ownerID
	return c.err
}

type mockCarts struct {
	view   *domain.CartView
	err    error
	getErr error
	added  []string
}

func (c *mockCarts) GetCart(context.Context, string) (*domain.CartView, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.view, nil
}

func (c *mockCarts) AddToCart(_ context.Context, _, productID string) error {
	if c.err != nil {
		return c.err
	}
	c.added = append(c.added, productID)
	return nil
}

func (c *mockCarts) RemoveFromCart(context.Context, string, string) error { return c.err }

func (c *mockCarts) ClearCart(context.Context, string) error { return c.err }

type mockOrders struct {
	order  *domain.Order
	orders []*domain.Order
	err    error
	gotKey string
}

func (o *mockOrders) PlaceOrder(_ context.Context, _, key string) (*domain.Order, error) {
	o.gotKey = key
	return o.order, o.err
}

func (o *mockOrders) ListOrders(context.Context, string) ([]*domain.Order, error) {
	return o.orders, o.err
}

func (o *mockOrders) RenderInvoice(_ context.Context, _, _ string, w io.Writer) (*domain.Order, error) {
	if o.err != nil {
		return nil, o.err
	}
	_, _ = w.Write([]byte("%PDF-1.3 fake"))
	return o.order, nil
}

type mockLimiter struct {
	m      sync.Mutex
	limit  int
	counts map[string]int
	err    error
}

func (l *mockLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.m.Lock()
	defer l.m.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[key]++
	return l.counts[key] <= l.limit, nil
}
