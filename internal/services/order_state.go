package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra/cache"
	"checkout-service/internal/infra/metrics"
	rabbit "checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxVersionRetries = 3

var tracer = otel.Tracer("checkout-service/services")

// Mutation changes a fresh copy of an order. It returns false when the order
// already is in the requested state, in which case nothing is written.
type Mutation func(o *domain.Order, now time.Time) (bool, error)

// Transitioning is the Mutation for a plain graph transition.
func Transitioning(t domain.Transition) Mutation {
	return func(o *domain.Order, now time.Time) (bool, error) {
		return o.Apply(t, now)
	}
}

// OrderStateMachine serializes order updates through the repository's version
// check. Every committed change invalidates the cache and emits an event;
// a move into Cancelled also returns the reserved stock.
type OrderStateMachine struct {
	orders    repository.OrderRepository
	ledger    *StockLedger
	publisher rabbit.PublisherInterface
	cache     cache.OrderCacheInterface
	metrics   *metrics.CheckoutMetrics
	clock     Clock
}

func NewOrderStateMachine(orders repository.OrderRepository, ledger *StockLedger, pub rabbit.PublisherInterface, clock Clock) *OrderStateMachine {
	return &OrderStateMachine{orders: orders, ledger: ledger, publisher: pub, clock: clock}
}

func (sm *OrderStateMachine) SetCache(c cache.OrderCacheInterface) {
	sm.cache = c
}

func (sm *OrderStateMachine) SetMetrics(m *metrics.CheckoutMetrics) {
	sm.metrics = m
}

func (sm *OrderStateMachine) Transition(ctx context.Context, orderID uint64, t domain.Transition) (*domain.Order, error) {
	o, _, err := sm.ApplyByID(ctx, orderID, Transitioning(t))
	return o, err
}

func (sm *OrderStateMachine) ApplyByID(ctx context.Context, orderID uint64, m Mutation) (*domain.Order, bool, error) {
	return sm.apply(ctx, func(ctx context.Context) (*domain.Order, error) {
		return sm.orders.FindByID(ctx, orderID)
	}, m)
}

func (sm *OrderStateMachine) ApplyByNumber(ctx context.Context, orderNumber string, m Mutation) (*domain.Order, bool, error) {
	return sm.apply(ctx, func(ctx context.Context) (*domain.Order, error) {
		return sm.orders.FindByOrderNumber(ctx, orderNumber)
	}, m)
}

func (sm *OrderStateMachine) apply(ctx context.Context, load func(context.Context) (*domain.Order, error), m Mutation) (*domain.Order, bool, error) {
	ctx, span := tracer.Start(ctx, "OrderStateMachine.apply")
	defer span.End()

	for attempt := 1; attempt <= maxVersionRetries; attempt++ {
		current, err := load(ctx)
		if err != nil {
			span.RecordError(err)
			return nil, false, err
		}
		span.SetAttributes(attribute.String("order.number", current.OrderNumber))

		next := current.Clone()
		changed, err := m(next, sm.clock.Now())
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return current, false, nil
		}

		err = sm.orders.Update(ctx, next, current.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			slog.DebugContext(ctx, "order version conflict, retrying",
				"order_number", current.OrderNumber, "attempt", attempt)
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "update failed")
			return nil, false, fmt.Errorf("update order %s: %w", current.OrderNumber, err)
		}

		sm.afterCommit(ctx, current, next)
		return next, true, nil
	}

	span.SetStatus(codes.Error, "version conflict")
	return nil, false, domain.ErrVersionConflict
}

func (sm *OrderStateMachine) afterCommit(ctx context.Context, prev, next *domain.Order) {
	if sm.cache != nil {
		sm.cache.InvalidateOrder(ctx, next.OrderNumber, next.Version)
	}

	if next.Status == domain.StatusCancelled && prev.Status != domain.StatusCancelled {
		// The cancellation is already durable; release with a context that
		// survives the caller going away.
		_ = sm.ledger.ReleaseLines(context.WithoutCancel(ctx), next.OrderNumber, next.LineItems)
	}

	if prev.Status == next.Status && prev.PaymentStatus == next.PaymentStatus {
		return
	}
	if prev.Status != next.Status {
		sm.metrics.Transition(string(prev.Status), string(next.Status))
	}

	slog.InfoContext(ctx, "order transitioned",
		"order_number", next.OrderNumber,
		"from_status", prev.Status, "to_status", next.Status,
		"from_payment", prev.PaymentStatus, "to_payment", next.PaymentStatus)

	evt := domain.OrderTransitionedEvent{
		OrderID:           next.ID,
		OrderNumber:       next.OrderNumber,
		FromStatus:        prev.Status,
		ToStatus:          next.Status,
		FromPaymentStatus: prev.PaymentStatus,
		ToPaymentStatus:   next.PaymentStatus,
		UpdatedAt:         next.UpdatedAt,
	}
	publishAsync(ctx, sm.publisher, evt.RoutingKey(), evt)
}

// publishAsync emits a best-effort event. Delivery failures are logged and
// never fail the committed operation.
func publishAsync(ctx context.Context, pub rabbit.PublisherInterface, routingKey string, data any) {
	if pub == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := pub.Publish(ctx, routingKey, data); err != nil {
			slog.WarnContext(ctx, "failed to publish event", "routing_key", routingKey, "error", err)
		}
	}()
}
