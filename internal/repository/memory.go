package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// MemoryCartStore keeps carts in process memory. It backs anonymous carts when
// Redis is not configured; carts are keyed by user id, or by session id for
// anonymous carts.
type MemoryCartStore struct {
	mu    sync.RWMutex
	carts map[string]models.Cart
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string]models.Cart)}
}

func cartKey(cart *models.Cart) string {
	if cart.UserID != "" {
		return cart.UserID
	}
	return cart.SessionID
}

func (s *MemoryCartStore) Load(_ context.Context, key string) (*models.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cart, ok := s.carts[key]
	if !ok {
		return nil, ErrNotFound
	}
	cart.Lines = append([]models.CartLine(nil), cart.Lines...)
	return &cart, nil
}

func (s *MemoryCartStore) Save(_ context.Context, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	stored := *cart
	stored.Lines = append([]models.CartLine(nil), cart.Lines...)
	s.carts[cartKey(cart)] = stored
	return nil
}

func (s *MemoryCartStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, key)
	return nil
}

// MemoryProductStore is an in-process product catalog used by tests.
type MemoryProductStore struct {
	mu       sync.RWMutex
	products map[string]models.Product
	lastID   int64
}

func NewMemoryProductStore(products ...models.Product) *MemoryProductStore {
	s := &MemoryProductStore{products: make(map[string]models.Product)}
	for _, p := range products {
		s.Put(p)
	}
	return s
}

// Put inserts or replaces a product.
func (s *MemoryProductStore) Put(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *MemoryProductStore) Get(_ context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok || p.IsDeleted {
		return nil, ErrNotFound
	}
	p.InStock = p.Stock > 0
	return &p, nil
}

func (s *MemoryProductStore) GetMany(ctx context.Context, ids []string) (map[string]models.Product, error) {
	out := make(map[string]models.Product, len(ids))
	for _, id := range ids {
		if p, err := s.Get(ctx, id); err == nil {
			out[id] = *p
		}
	}
	return out, nil
}

func (s *MemoryProductStore) DecrementStock(_ context.Context, id string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.IsDeleted || p.Stock < qty {
		return ErrStockConflict
	}
	p.Stock -= qty
	s.products[id] = p
	return nil
}

func (s *MemoryProductStore) IncrementStock(_ context.Context, id string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Stock += qty
	s.products[id] = p
	return nil
}

// MemoryOrderStore is an in-process order collection used by tests.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders []models.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{}
}

func (s *MemoryOrderStore) Insert(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orders {
		if existing.Number == order.Number {
			return ErrDuplicate
		}
	}
	order.ID = primitive.NewObjectID()
	s.orders = append(s.orders, copyOrder(*order))
	return nil
}

func (s *MemoryOrderStore) Find(_ context.Context, ref string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref = strings.TrimSpace(ref)
	for _, order := range s.orders {
		if order.ID.Hex() == ref || strings.EqualFold(order.Code, ref) {
			found := copyOrder(order)
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryOrderStore) List(_ context.Context, f OrderFilter) ([]models.Order, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]models.Order, 0)
	for _, order := range s.orders {
		if f.UserID != "" && !order.OwnedBy(f.UserID) {
			continue
		}
		if f.Status != "" && order.Status != f.Status {
			continue
		}
		matched = append(matched, copyOrder(order))
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Number > matched[j].Number
	})

	total := int64(len(matched))
	if f.Limit > 0 {
		start := f.skip()
		if start > total {
			start = total
		}
		end := start + f.Limit
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (s *MemoryOrderStore) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to models.OrderStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID != id {
			continue
		}
		if s.orders[i].Status != from {
			return ErrStatusConflict
		}
		s.orders[i].Status = to
		s.orders[i].UpdatedAt = at
		return nil
	}
	return ErrStatusConflict
}

func (s *MemoryOrderStore) UpdatePaymentStatus(_ context.Context, id primitive.ObjectID, from, to models.PaymentStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID != id {
			continue
		}
		if s.orders[i].PaymentStatus != from {
			return ErrStatusConflict
		}
		s.orders[i].PaymentStatus = to
		s.orders[i].UpdatedAt = at
		return nil
	}
	return ErrStatusConflict
}

func copyOrder(order models.Order) models.Order {
	order.Items = append([]models.OrderItem(nil), order.Items...)
	if order.UserID != nil {
		userID := *order.UserID
		order.UserID = &userID
	}
	return order
}

// MemorySequence counts per name in process memory. Test double.
type MemorySequence struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemorySequence() *MemorySequence {
	return &MemorySequence{values: make(map[string]int64)}
}

func (s *MemorySequence) Next(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name]++
	return s.values[name], nil
}
