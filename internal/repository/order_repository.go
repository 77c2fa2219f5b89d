package repository

import (
	"context"

	"checkout-service/internal/domain"
)

// OrderRepository persists orders with a unique order number and optimistic
// versioning. Lookups return domain.ErrNotFound for missing rows.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	FindByUserID(ctx context.Context, userID uint64) ([]domain.Order, error)
	FindAll(ctx context.Context, offset, limit int) ([]domain.Order, int64, error)
	// Update writes the mutable fields only when the stored version still
	// equals expectedVersion and bumps it, else it returns domain.ErrVersionConflict.
	Update(ctx context.Context, order *domain.Order, expectedVersion int64) error
}

// ProductRepository is the catalog read side plus the stock ledger's storage.
type ProductRepository interface {
	GetProduct(ctx context.Context, id uint64) (*domain.Product, error)
	// DecrementStock subtracts quantity only if the available stock is at
	// least quantity, in one atomic step.
	DecrementStock(ctx context.Context, id uint64, quantity int64) error
	IncrementStock(ctx context.Context, id uint64, quantity int64) error
}

type CartRepository interface {
	GetItems(ctx context.Context, userID uint64) ([]domain.CartItem, error)
	Clear(ctx context.Context, userID uint64) error
}
