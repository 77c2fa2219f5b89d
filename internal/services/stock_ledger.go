package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"
)

// StockLedger is the only writer of product stock during checkout. Reserve
// never lets stock go negative, even under concurrent callers.
type StockLedger struct {
	products repository.ProductRepository
}

func NewStockLedger(products repository.ProductRepository) *StockLedger {
	return &StockLedger{products: products}
}

func (l *StockLedger) Reserve(ctx context.Context, productID uint64, quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: reserve quantity must be positive", domain.ErrInvalidInput)
	}
	return l.products.DecrementStock(ctx, productID, quantity)
}

func (l *StockLedger) Release(ctx context.Context, productID uint64, quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: release quantity must be positive", domain.ErrInvalidInput)
	}
	return l.products.IncrementStock(ctx, productID, quantity)
}

// ReleaseLines returns every line's quantity to stock. It keeps going past
// failures and reports all of them.
func (l *StockLedger) ReleaseLines(ctx context.Context, orderNumber string, lines []domain.LineItem) error {
	var errs []error
	for _, li := range lines {
		if err := l.Release(ctx, li.ProductID, li.Quantity); err != nil {
			slog.ErrorContext(ctx, "CRITICAL: stock release failed, manual reconciliation needed",
				"order_number", orderNumber, "product_id", li.ProductID, "quantity", li.Quantity, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
