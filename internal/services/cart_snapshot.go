package services

import (
	"context"
	"fmt"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"golang.org/x/sync/errgroup"
)

const catalogFanOut = 8

type CartSnapshotter struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	clock    Clock
}

func NewCartSnapshotter(carts repository.CartRepository, products repository.ProductRepository, clock Clock) *CartSnapshotter {
	return &CartSnapshotter{carts: carts, products: products, clock: clock}
}

// Snapshot prices the user's cart against the current catalog. Items keep
// their cart order.
func (s *CartSnapshotter) Snapshot(ctx context.Context, userID uint64) (*domain.CartSnapshot, error) {
	items, err := s.carts.GetItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %d must be positive", domain.ErrInvalidInput, it.ProductID)
		}
	}

	priced := make([]domain.SnapshotItem, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogFanOut)
	for i, it := range items {
		g.Go(func() error {
			p, err := s.products.GetProduct(gctx, it.ProductID)
			if err != nil {
				return fmt.Errorf("price product %d: %w", it.ProductID, err)
			}
			priced[i] = domain.SnapshotItem{
				ProductID: it.ProductID,
				Name:      p.Name,
				Quantity:  it.Quantity,
				UnitPrice: p.Price,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.CartSnapshot{
		UserID:     userID,
		Items:      priced,
		CapturedAt: s.clock.Now(),
	}, nil
}

func (s *CartSnapshotter) Clear(ctx context.Context, userID uint64) error {
	return s.carts.Clear(ctx, userID)
}
