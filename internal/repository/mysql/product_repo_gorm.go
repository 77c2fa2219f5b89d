package mysql

import (
	"context"
	"fmt"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"gorm.io/gorm"
)

type productRepo struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) repository.ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) GetProduct(ctx context.Context, id uint64) (*domain.Product, error) {
	var p domain.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// DecrementStock folds the floor check into the UPDATE so concurrent
// reservations on the same row serialize on the row lock.
func (r *productRepo) DecrementStock(ctx context.Context, id uint64, quantity int64) error {
	res := r.db.WithContext(ctx).Model(&domain.Product{}).
		Where("id = ? AND stock_quantity >= ?", id, quantity).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("decrement stock for product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	p, err := r.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	return &domain.InsufficientStockError{ProductID: id, Requested: quantity, Available: p.StockQuantity}
}

func (r *productRepo) IncrementStock(ctx context.Context, id uint64, quantity int64) error {
	res := r.db.WithContext(ctx).Model(&domain.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("increment stock for product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
