package services

import (
	"fmt"

	"checkout-service/internal/domain"
)

type OrderFactory struct {
	numbers *OrderNumberGenerator
	clock   Clock
}

func NewOrderFactory(numbers *OrderNumberGenerator, clock Clock) *OrderFactory {
	return &OrderFactory{numbers: numbers, clock: clock}
}

// Create builds a Pending order from a priced snapshot. Every payment method
// starts with a Pending payment; only a verified confirmation or webhook moves
// it to Completed.
func (f *OrderFactory) Create(userID uint64, snap *domain.CartSnapshot, method domain.PaymentMethod, addr domain.Address) (*domain.Order, error) {
	if snap == nil || len(snap.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidInput, method)
	}

	items := make([]domain.LineItem, 0, len(snap.Items))
	for _, it := range snap.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %d must be positive", domain.ErrInvalidInput, it.ProductID)
		}
		if it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: negative price for product %d", domain.ErrInvalidInput, it.ProductID)
		}
		items = append(items, domain.LineItem{
			ProductID:           it.ProductID,
			Quantity:            it.Quantity,
			UnitPriceAtPurchase: it.UnitPrice,
		})
	}

	now := f.clock.Now()
	return &domain.Order{
		OrderNumber:     f.numbers.Next(),
		UserID:          userID,
		LineItems:       items,
		TotalAmount:     domain.ComputeTotal(items),
		Status:          domain.StatusPending,
		PaymentMethod:   method,
		PaymentStatus:   domain.PaymentPending,
		ShippingAddress: addr,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Renumber assigns a fresh order number after a uniqueness conflict.
func (f *OrderFactory) Renumber(o *domain.Order) {
	o.OrderNumber = f.numbers.Next()
}
