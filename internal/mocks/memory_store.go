package mocks

import (
	"context"
	"sort"
	"sync"

	"checkout-service/internal/domain"
)

// MemoryStore is an in-process stand-in for the MySQL repositories with the
// same atomicity: conditional stock decrement, unique order numbers and
// version-checked updates. Reads hand out copies.
type MemoryStore struct {
	mu       sync.Mutex
	products map[uint64]domain.Product
	carts    map[uint64][]domain.CartItem
	orders   map[uint64]*domain.Order
	nextID   uint64

	// FailCreate, when set, is returned by the next Create call.
	FailCreate error
	// FailClear, when set, is returned by every cart Clear call.
	FailClear error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: map[uint64]domain.Product{},
		carts:    map[uint64][]domain.CartItem{},
		orders:   map[uint64]*domain.Order{},
	}
}

func (s *MemoryStore) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *MemoryStore) Stock(id uint64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].StockQuantity
}

func (s *MemoryStore) AddToCart(userID, productID uint64, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.carts[userID] = append(s.carts[userID], domain.CartItem{ID: s.nextID, UserID: userID, ProductID: productID, Quantity: qty})
}

func (s *MemoryStore) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *MemoryStore) GetProduct(_ context.Context, id uint64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) DecrementStock(_ context.Context, id uint64, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.StockQuantity < quantity {
		return &domain.InsufficientStockError{ProductID: id, Requested: quantity, Available: p.StockQuantity}
	}
	p.StockQuantity -= quantity
	s.products[id] = p
	return nil
}

func (s *MemoryStore) IncrementStock(_ context.Context, id uint64, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.StockQuantity += quantity
	s.products[id] = p
	return nil
}

func (s *MemoryStore) GetItems(_ context.Context, userID uint64) ([]domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CartItem(nil), s.carts[userID]...), nil
}

func (s *MemoryStore) Clear(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailClear != nil {
		return s.FailClear
	}
	delete(s.carts, userID)
	return nil
}

func (s *MemoryStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailCreate; err != nil {
		s.FailCreate = nil
		return err
	}
	for _, o := range s.orders {
		if o.OrderNumber == order.OrderNumber {
			return domain.ErrDuplicateOrderNumber
		}
	}
	s.nextID++
	order.ID = s.nextID
	for i := range order.LineItems {
		s.nextID++
		order.LineItems[i].ID = s.nextID
		order.LineItems[i].OrderID = order.ID
	}
	if order.Version == 0 {
		order.Version = 1
	}
	s.orders[order.ID] = order.Clone()
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uint64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryStore) FindByOrderNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderNumber == orderNumber {
			return o.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryStore) FindByUserID(_ context.Context, userID uint64) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.sorted() {
		if o.UserID == userID {
			out = append(out, *o.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) FindAll(_ context.Context, offset, limit int) ([]domain.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sorted()
	total := int64(len(all))
	if offset >= len(all) {
		return []domain.Order{}, total, nil
	}
	end := min(offset+limit, len(all))
	out := make([]domain.Order, 0, end-offset)
	for _, o := range all[offset:end] {
		out = append(out, *o.Clone())
	}
	return out, total, nil
}

func (s *MemoryStore) Update(_ context.Context, order *domain.Order, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[order.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	order.Version = expectedVersion + 1
	s.orders[order.ID] = order.Clone()
	return nil
}

// sorted returns orders newest first, matching the SQL repository.
func (s *MemoryStore) sorted() []*domain.Order {
	out := make([]*domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}
