package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra/cache"
	"checkout-service/internal/repository"
)

const maxPageSize = 100

type OrderPage struct {
	Orders []domain.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Size   int            `json:"size"`
}

// OrderService serves order lookups and the owner and admin actions on an
// existing order. Every state change goes through the OrderStateMachine.
type OrderService struct {
	repo  repository.OrderRepository
	state *OrderStateMachine
	cache cache.OrderCacheInterface
}

func NewOrderService(r repository.OrderRepository, state *OrderStateMachine) *OrderService {
	return &OrderService{
		repo:  r,
		state: state,
	}
}

func (u *OrderService) SetCache(c cache.OrderCacheInterface) {
	u.cache = c
}

func (u *OrderService) GetOrderByID(ctx context.Context, p domain.Principal, id uint64) (*domain.Order, error) {
	o, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(o.UserID) {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

// GetOrderByNumber reads through the order cache.
func (u *OrderService) GetOrderByNumber(ctx context.Context, p domain.Principal, orderNumber string) (*domain.Order, error) {
	var o *domain.Order
	if u.cache != nil {
		if cached, ok := u.cache.GetOrder(ctx, orderNumber); ok {
			o = cached
		}
	}
	if o == nil {
		found, err := u.repo.FindByOrderNumber(ctx, orderNumber)
		if err != nil {
			return nil, err
		}
		o = found
		if u.cache != nil {
			u.cache.SetOrder(ctx, o)
		}
	}
	if !p.CanAccess(o.UserID) {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

func (u *OrderService) ListMyOrders(ctx context.Context, p domain.Principal) ([]domain.Order, error) {
	if p.UserID == 0 {
		return nil, domain.ErrForbidden
	}
	return u.repo.FindByUserID(ctx, p.UserID)
}

// ListAllOrders pages through every order, newest first. page starts at 0.
func (u *OrderService) ListAllOrders(ctx context.Context, p domain.Principal, page, size int) (*OrderPage, error) {
	if !p.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > maxPageSize {
		size = 20
	}
	orders, total, err := u.repo.FindAll(ctx, page*size, size)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Orders: orders, Total: total, Page: page, Size: size}, nil
}

func (u *OrderService) UpdateStatus(ctx context.Context, p domain.Principal, id uint64, t domain.Transition) (*domain.Order, error) {
	if !p.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if t.Status == "" && t.Payment == "" {
		return nil, fmt.Errorf("%w: no status given", domain.ErrInvalidInput)
	}
	if (t.Status != "" && !t.Status.Valid()) || (t.Payment != "" && !t.Payment.Valid()) {
		return nil, fmt.Errorf("%w: unknown status", domain.ErrInvalidInput)
	}
	return u.state.Transition(ctx, id, t)
}

// UpdateTracking records the carrier tracking number. Cancelled orders keep
// whatever they had.
func (u *OrderService) UpdateTracking(ctx context.Context, p domain.Principal, id uint64, trackingNumber string) (*domain.Order, error) {
	if !p.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, fmt.Errorf("%w: tracking number is required", domain.ErrInvalidInput)
	}
	o, _, err := u.state.ApplyByID(ctx, id, func(o *domain.Order, now time.Time) (bool, error) {
		if o.Status == domain.StatusCancelled {
			return false, &domain.IllegalTransitionError{Field: "tracking", From: string(o.Status), To: "TRACKED"}
		}
		if o.TrackingNumber == trackingNumber {
			return false, nil
		}
		o.TrackingNumber = trackingNumber
		o.UpdatedAt = now
		return true, nil
	})
	return o, err
}

// CancelOrder cancels an order for its owner or an admin and returns its
// stock to the catalog.
func (u *OrderService) CancelOrder(ctx context.Context, p domain.Principal, id uint64) (*domain.Order, error) {
	o, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(o.UserID) {
		return nil, domain.ErrForbidden
	}
	return u.state.Transition(ctx, id, domain.Transition{Status: domain.StatusCancelled})
}
