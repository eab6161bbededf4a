package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/events"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/google/uuid"
)

// memoryUsers implements both UserRepository and CartRepository over one map,
// like the users collection with its embedded cart.
type memoryUsers struct {
	m        sync.RWMutex
	users    map[string]*domain.User
	nextID   int
	err      error
	clearErr error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]*domain.User{}}
}

func (r *memoryUsers) add(email string) *domain.User {
	r.m.Lock()
	defer r.m.Unlock()
	r.nextID++
	u := &domain.User{ID: fmt.Sprintf("user-%d", r.nextID), Email: email, Cart: domain.ClearCart()}
	r.users[u.ID] = u
	return u
}

func (r *memoryUsers) setCart(userID string, cart domain.Cart) {
	r.m.Lock()
	defer r.m.Unlock()
	r.users[userID].Cart = cart
}

func (r *memoryUsers) cart(userID string) domain.Cart {
	r.m.RLock()
	defer r.m.RUnlock()
	return r.users[userID].Cart
}

func (r *memoryUsers) count() int {
	r.m.RLock()
	defer r.m.RUnlock()
	return len(r.users)
}

func (r *memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.nextID++
	user.ID = fmt.Sprintf("user-%d", r.nextID)
	user.Cart = domain.ClearCart()
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memoryUsers) GetByResetToken(_ context.Context, token string) (*domain.User, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	for _, u := range r.users {
		if token != "" && u.ResetToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memoryUsers) SetResetToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	r.m.Lock()
	defer r.m.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.ResetToken = token
	u.ResetTokenExpiration = &expiresAt
	return nil
}

func (r *memoryUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	r.m.Lock()
	defer r.m.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.ResetToken = ""
	u.ResetTokenExpiration = nil
	return nil
}

func (r *memoryUsers) GetCart(_ context.Context, userID string) (domain.Cart, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	if r.err != nil {
		return domain.Cart{}, r.err
	}
	u, ok := r.users[userID]
	if !ok {
		return domain.Cart{}, repository.ErrUserNotFound
	}
	return u.Cart, nil
}

func (r *memoryUsers) AddItem(_ context.Context, userID, productID string) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Cart = domain.AddToCart(u.Cart, productID)
	return nil
}

func (r *memoryUsers) RemoveItem(_ context.Context, userID, productID string) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Cart = domain.RemoveFromCart(u.Cart, productID)
	return nil
}

func (r *memoryUsers) ClearCart(_ context.Context, userID string) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.clearErr != nil {
		return r.clearErr
	}
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Cart = domain.ClearCart()
	return nil
}

func (r *memoryUsers) RemoveItems(_ context.Context, userID string, items []domain.CartItem) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.clearErr != nil {
		return r.clearErr
	}
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Cart = domain.SubtractItems(u.Cart, items)
	return nil
}

type mockProducts struct {
	m        sync.RWMutex
	products map[string]*domain.Product
	nextID   int
	err      error
	getCalls int
}

func newMockProducts(products ...*domain.Product) *mockProducts {
	mp := &mockProducts{products: map[string]*domain.Product{}}
	for _, p := range products {
		mp.products[p.ID] = p
	}
	return mp
}

func (m *mockProducts) Create(_ context.Context, p *domain.Product) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.nextID++
	p.ID = fmt.Sprintf("product-%d", m.nextID)
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *mockProducts) GetByID(_ context.Context, id string) (*domain.Product, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.getCalls++
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProducts) GetByIDs(_ context.Context, ids []string) (map[string]*domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	found := map[string]*domain.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			cp := *p
			found[id] = &cp
		}
	}
	return found, nil
}

func (m *mockProducts) List(_ context.Context, offset, limit int64) ([]*domain.Product, int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	all := make([]*domain.Product, 0, len(m.products))
	for i := 1; i <= m.nextID; i++ {
		if p, ok := m.products[fmt.Sprintf("product-%d", i)]; ok {
			all = append(all, p)
		}
	}
	total := int64(len(all))
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockProducts) ListByOwner(_ context.Context, ownerID string) ([]*domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var owned []*domain.Product
	for _, p := range m.products {
		if p.UserID == ownerID {
			owned = append(owned, p)
		}
	}
	return owned, m.err
}

func (m *mockProducts) Update(_ context.Context, p *domain.Product) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	existing, ok := m.products[p.ID]
	if !ok || existing.UserID != p.UserID {
		return repository.ErrProductNotFound
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *mockProducts) Delete(_ context.Context, id, ownerID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	existing, ok := m.products[id]
	if !ok || existing.UserID != ownerID {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProducts) remove(id string) {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.products, id)
}

type mockCache struct {
	m        sync.RWMutex
	products map[string]*domain.Product
	err      error
	deleted  []string
}

func newMockCache() *mockCache {
	return &mockCache{products: map[string]*domain.Product{}}
}

func (c *mockCache) Get(_ context.Context, id string) (*domain.Product, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return p, nil
}

func (c *mockCache) Set(_ context.Context, p *domain.Product) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.products[p.ID] = p
	return c.err
}

func (c *mockCache) Delete(_ context.Context, id string) error {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.products, id)
	c.deleted = append(c.deleted, id)
	return c.err
}

func (c *mockCache) has(id string) bool {
	c.m.RLock()
	defer c.m.RUnlock()
	_, ok := c.products[id]
	return ok
}

type mockImages struct {
	m       sync.Mutex
	saved   []string
	removed []string
	err     error
}

func (i *mockImages) Save(r io.Reader) (string, error) {
	i.m.Lock()
	defer i.m.Unlock()
	if i.err != nil {
		return "", i.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	url := fmt.Sprintf("/images/%d.png", len(i.saved)+1)
	i.saved = append(i.saved, url)
	return url, nil
}

func (i *mockImages) Remove(url string) error {
	i.m.Lock()
	defer i.m.Unlock()
	i.removed = append(i.removed, url)
	return nil
}

type mockOrders struct {
	m         sync.RWMutex
	orders    []*domain.Order
	createErr error
}

func (o *mockOrders) CreateOrder(_ context.Context, order *domain.Order) error {
	o.m.Lock()
	defer o.m.Unlock()
	if o.createErr != nil {
		return o.createErr
	}
	for _, existing := range o.orders {
		if order.IdempotencyKey != "" && existing.UserID == order.UserID && existing.IdempotencyKey == order.IdempotencyKey {
			return repository.ErrDuplicateOrder
		}
	}
	o.orders = append(o.orders, order)
	return nil
}

func (o *mockOrders) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o.m.RLock()
	defer o.m.RUnlock()
	for _, order := range o.orders {
		if order.ID == id {
			return order, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (o *mockOrders) GetOrderByIdempotencyKey(_ context.Context, userID, key string) (*domain.Order, error) {
	o.m.RLock()
	defer o.m.RUnlock()
	for _, order := range o.orders {
		if order.UserID == userID && order.IdempotencyKey == key {
			return order, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (o *mockOrders) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	o.m.RLock()
	defer o.m.RUnlock()
	var result []*domain.Order
	for i := len(o.orders) - 1; i >= 0; i-- {
		if o.orders[i].UserID == userID {
			result = append(result, o.orders[i])
		}
	}
	return result, nil
}

func (o *mockOrders) count() int {
	o.m.RLock()
	defer o.m.RUnlock()
	return len(o.orders)
}

type mockPublisher struct {
	m      sync.Mutex
	events []events.Event
	err    error
}

func (p *mockPublisher) Publish(_ context.Context, evt events.Event) error {
	p.m.Lock()
	defer p.m.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *mockPublisher) Close() error { return nil }

func (p *mockPublisher) types() []string {
	p.m.Lock()
	defer p.m.Unlock()
	var types []string
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type mockSessions struct {
	m        sync.Mutex
	sessions map[string]*domain.Session
	next     int
}

func newMockSessions() *mockSessions {
	return &mockSessions{sessions: map[string]*domain.Session{}}
}

func (s *mockSessions) Create(_ context.Context, userID string) (*domain.Session, error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.next++
	sess := &domain.Session{Token: fmt.Sprintf("token-%d", s.next), UserID: userID, IsLoggedIn: true}
	s.sessions[sess.Token] = sess
	return sess, nil
}

func (s *mockSessions) Get(_ context.Context, token string) (*domain.Session, error) {
	s.m.Lock()
	defer s.m.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

func (s *mockSessions) Delete(_ context.Context, token string) error {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.sessions, token)
	return nil
}
