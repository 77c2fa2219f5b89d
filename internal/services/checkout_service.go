package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
	"checkout-service/internal/infra/cache"
	"checkout-service/internal/infra/metrics"
	rabbit "checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxOrderNumberAttempts = 3

type CheckoutDeps struct {
	Snapshots *CartSnapshotter
	Ledger    *StockLedger
	Factory   *OrderFactory
	State     *OrderStateMachine
	Orders    repository.OrderRepository
	Gateway   infra.PaymentGatewayInterface
	Publisher rabbit.PublisherInterface
	Guard     cache.DeliveryGuardInterface
	Metrics   *metrics.CheckoutMetrics
	Currency  string
}

// CheckoutService turns a cart into an order and drives the order through
// payment confirmation.
type CheckoutService struct {
	snapshots *CartSnapshotter
	ledger    *StockLedger
	factory   *OrderFactory
	state     *OrderStateMachine
	orders    repository.OrderRepository
	gateway   infra.PaymentGatewayInterface
	publisher rabbit.PublisherInterface
	guard     cache.DeliveryGuardInterface
	metrics   *metrics.CheckoutMetrics
	currency  string
}

func NewCheckoutService(d CheckoutDeps) *CheckoutService {
	return &CheckoutService{
		snapshots: d.Snapshots,
		ledger:    d.Ledger,
		factory:   d.Factory,
		state:     d.State,
		orders:    d.Orders,
		gateway:   d.Gateway,
		publisher: d.Publisher,
		guard:     d.Guard,
		metrics:   d.Metrics,
		currency:  d.Currency,
	}
}

// PlaceOrder snapshots the cart, reserves stock for every line, persists the
// order and clears the cart. A failed reservation or write releases whatever
// this call had already reserved.
func (s *CheckoutService) PlaceOrder(ctx context.Context, p domain.Principal, method domain.PaymentMethod, addr domain.Address) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.PlaceOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", int64(p.UserID)), attribute.String("payment.method", string(method)))

	order, err := s.placeOrder(ctx, p, method, addr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.CheckoutFailed(failureReason(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("order.number", order.OrderNumber))
	return order, nil
}

func (s *CheckoutService) placeOrder(ctx context.Context, p domain.Principal, method domain.PaymentMethod, addr domain.Address) (*domain.Order, error) {
	if p.UserID == 0 {
		return nil, domain.ErrForbidden
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidInput, method)
	}

	snap, err := s.snapshots.Snapshot(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	order, err := s.factory.Create(p.UserID, snap, method, addr)
	if err != nil {
		return nil, err
	}

	if err := s.reserveAll(ctx, order); err != nil {
		return nil, err
	}

	if err := s.create(ctx, order); err != nil {
		_ = s.ledger.ReleaseLines(context.WithoutCancel(ctx), order.OrderNumber, order.LineItems)
		return nil, err
	}

	// The order is the source of truth from here on; a stale cart is harmless.
	if err := s.snapshots.Clear(ctx, p.UserID); err != nil {
		slog.WarnContext(ctx, "failed to clear cart after checkout",
			"order_number", order.OrderNumber, "user_id", p.UserID, "error", err)
	}

	s.metrics.OrderPlaced(string(order.PaymentMethod))
	slog.InfoContext(ctx, "order placed",
		"order_number", order.OrderNumber, "user_id", order.UserID,
		"total", order.TotalAmount.StringFixed(2), "items", len(order.LineItems))

	publishAsync(ctx, s.publisher, domain.EventOrderCreated, domain.OrderCreatedEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
		CreatedAt:     order.CreatedAt,
	})
	return order, nil
}

// reserveAll takes stock for every line or for none of them.
func (s *CheckoutService) reserveAll(ctx context.Context, order *domain.Order) error {
	for i, li := range order.LineItems {
		if err := s.ledger.Reserve(ctx, li.ProductID, li.Quantity); err != nil {
			rollbackCtx := context.WithoutCancel(ctx)
			for j := i - 1; j >= 0; j-- {
				prev := order.LineItems[j]
				if rerr := s.ledger.Release(rollbackCtx, prev.ProductID, prev.Quantity); rerr != nil {
					slog.ErrorContext(ctx, "CRITICAL: reservation rollback failed",
						"product_id", prev.ProductID, "quantity", prev.Quantity, "error", rerr)
				}
			}
			return err
		}
	}
	return nil
}

func (s *CheckoutService) create(ctx context.Context, order *domain.Order) error {
	var err error
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		err = s.orders.Create(ctx, order)
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
			return err
		}
		slog.WarnContext(ctx, "order number collision, regenerating", "order_number", order.OrderNumber, "attempt", attempt)
		s.factory.Renumber(order)
	}
	return err
}

// CreatePaymentIntent registers the order with the gateway and records the
// gateway order id. Repeated calls return the intent already on the order.
func (s *CheckoutService) CreatePaymentIntent(ctx context.Context, p domain.Principal, orderID uint64) (*domain.PaymentIntent, error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.CreatePaymentIntent")
	defer span.End()

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p.UserID == 0 || order.UserID != p.UserID {
		return nil, domain.ErrForbidden
	}
	if order.PaymentMethod == domain.MethodCashOnDelivery {
		return nil, fmt.Errorf("%w: cash on delivery orders are not paid online", domain.ErrInvalidInput)
	}
	if order.Status != domain.StatusPending || order.PaymentStatus != domain.PaymentPending {
		return nil, &domain.IllegalTransitionError{Field: "payment", From: string(order.PaymentStatus), To: "INTENT"}
	}
	if order.GatewayOrderID != "" {
		return s.intentFor(order), nil
	}

	intent, err := s.gateway.CreateIntent(ctx, order.OrderNumber, order.TotalAmount, s.currency)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway")
		slog.WarnContext(ctx, "payment intent creation failed", "order_number", order.OrderNumber, "error", err)
		return nil, err
	}

	updated, _, err := s.state.ApplyByID(ctx, order.ID, func(o *domain.Order, now time.Time) (bool, error) {
		if o.GatewayOrderID != "" {
			return false, nil
		}
		if o.Status != domain.StatusPending || o.PaymentStatus != domain.PaymentPending {
			return false, &domain.IllegalTransitionError{Field: "payment", From: string(o.PaymentStatus), To: "INTENT"}
		}
		o.GatewayOrderID = intent.GatewayOrderID
		o.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	out := s.intentFor(updated)
	out.KeyID = intent.KeyID
	return out, nil
}

func (s *CheckoutService) intentFor(o *domain.Order) *domain.PaymentIntent {
	return &domain.PaymentIntent{
		GatewayOrderID: o.GatewayOrderID,
		Amount:         domain.MinorUnits(o.TotalAmount),
		Currency:       s.currency,
		OrderNumber:    o.OrderNumber,
	}
}

// ConfirmPayment applies a client-side payment confirmation after checking
// the gateway signature. Confirming an already confirmed order is a no-op.
func (s *CheckoutService) ConfirmPayment(ctx context.Context, orderNumber, gatewayOrderID, gatewayPaymentID, signature string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.ConfirmPayment")
	defer span.End()
	span.SetAttributes(attribute.String("order.number", orderNumber))

	ok := s.gateway.VerifyClientConfirmation(gatewayOrderID, gatewayPaymentID, signature)
	s.metrics.Verification("client", ok)
	if !ok {
		slog.WarnContext(ctx, "client payment signature rejected",
			"order_number", orderNumber, "gateway_order_id", gatewayOrderID)
		span.SetStatus(codes.Error, "signature")
		return nil, domain.ErrPaymentVerificationFailed
	}

	order, _, err := s.state.ApplyByNumber(ctx, orderNumber, confirmPaid(gatewayOrderID, gatewayPaymentID, 0))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return order, nil
}

// confirmPaid moves a Pending order to Confirmed and Completed in one write.
// A non-zero amount must equal the order total in minor units.
func confirmPaid(gatewayOrderID, gatewayPaymentID string, amount int64) Mutation {
	return func(o *domain.Order, now time.Time) (bool, error) {
		if o.GatewayOrderID == "" || o.GatewayOrderID != gatewayOrderID {
			return false, fmt.Errorf("%w: gateway order %q does not belong to order %s",
				domain.ErrPaymentVerificationFailed, gatewayOrderID, o.OrderNumber)
		}
		if amount != 0 && amount != domain.MinorUnits(o.TotalAmount) {
			return false, fmt.Errorf("%w: paid amount %d does not match order total", domain.ErrPaymentVerificationFailed, amount)
		}
		if o.IsConfirmedAndPaid() {
			return false, nil
		}
		changed, err := o.Apply(domain.ConfirmPaid, now)
		if err != nil || !changed {
			return changed, err
		}
		o.GatewayPaymentID = gatewayPaymentID
		return true, nil
	}
}

func paymentFailed(gatewayOrderID string) Mutation {
	return func(o *domain.Order, now time.Time) (bool, error) {
		if o.GatewayOrderID == "" || o.GatewayOrderID != gatewayOrderID {
			return false, fmt.Errorf("%w: gateway order %q does not belong to order %s",
				domain.ErrPaymentVerificationFailed, gatewayOrderID, o.OrderNumber)
		}
		// A failed attempt after a later successful one changes nothing.
		if o.PaymentStatus != domain.PaymentPending {
			return false, nil
		}
		return o.Apply(domain.Transition{Payment: domain.PaymentFailed}, now)
	}
}

// HandleWebhook authenticates a gateway delivery over the raw bytes, then
// applies it at most once per delivery. Redeliveries and events for orders
// that already moved on are acknowledged without error.
func (s *CheckoutService) HandleWebhook(ctx context.Context, raw []byte, signature, eventID string) error {
	ctx, span := tracer.Start(ctx, "CheckoutService.HandleWebhook")
	defer span.End()

	ok := s.gateway.VerifyWebhook(raw, signature)
	s.metrics.Verification("webhook", ok)
	if !ok {
		slog.WarnContext(ctx, "webhook signature rejected", "bytes", len(raw))
		span.SetStatus(codes.Error, "signature")
		return domain.ErrInvalidSignature
	}

	key := deliveryKey(eventID, raw)
	claimed := false
	if s.guard != nil {
		ok, err := s.guard.Claim(ctx, key)
		switch {
		case err != nil:
			// Without the guard the transition itself is still idempotent.
			slog.WarnContext(ctx, "webhook dedupe unavailable", "delivery", key, "error", err)
		case !ok:
			slog.InfoContext(ctx, "duplicate webhook delivery ignored", "delivery", key)
			return nil
		default:
			claimed = true
		}
	}

	// The claim is short-lived and only made permanent once the delivery is
	// applied; any other exit, a panic included, gives it back.
	applied := false
	if claimed {
		defer func() {
			rctx := context.WithoutCancel(ctx)
			if applied {
				s.guard.Complete(rctx, key)
				return
			}
			s.guard.Release(rctx, key)
		}()
	}

	if err := s.applyWebhook(ctx, raw); err != nil {
		span.RecordError(err)
		return err
	}
	applied = true
	return nil
}

func (s *CheckoutService) applyWebhook(ctx context.Context, raw []byte) error {
	evt, err := parseWebhook(raw)
	if err != nil {
		return err
	}

	var m Mutation
	switch evt.Name {
	case EventPaymentCaptured, EventOrderPaid:
		m = confirmPaid(evt.GatewayOrderID, evt.GatewayPaymentID, evt.Amount)
	case EventPaymentFailed:
		m = paymentFailed(evt.GatewayOrderID)
	default:
		slog.DebugContext(ctx, "webhook event ignored", "event", evt.Name)
		return nil
	}

	if evt.OrderNumber == "" {
		slog.WarnContext(ctx, "webhook without order reference acknowledged", "event", evt.Name, "gateway_order_id", evt.GatewayOrderID)
		return nil
	}

	_, changed, err := s.state.ApplyByNumber(ctx, evt.OrderNumber, m)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		slog.WarnContext(ctx, "webhook for unknown order acknowledged", "event", evt.Name, "order_number", evt.OrderNumber)
		return nil
	case errors.Is(err, domain.ErrIllegalTransition):
		slog.WarnContext(ctx, "webhook could not be applied to order state", "event", evt.Name, "order_number", evt.OrderNumber, "error", err)
		return nil
	case errors.Is(err, domain.ErrPaymentVerificationFailed):
		slog.WarnContext(ctx, "webhook does not match order", "event", evt.Name, "order_number", evt.OrderNumber, "error", err)
		return err
	case err != nil:
		return err
	}

	slog.InfoContext(ctx, "webhook processed", "event", evt.Name, "order_number", evt.OrderNumber, "changed", changed)
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
