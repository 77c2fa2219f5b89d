package services

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"checkout-service/internal/config"
	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
	"checkout-service/internal/mocks"
	"checkout-service/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	TestUserID        = uint64(42)
	TestOtherUserID   = uint64(43)
	TestAdminID       = uint64(1)
	TestKeySecret     = "key-secret"
	TestWebhookSecret = "webhook-secret"
	TestGatewayOrder  = "order_GW123"
	TestGatewayPay    = "pay_GW456"
)

var (
	testUser  = domain.Principal{UserID: TestUserID, Role: domain.RoleUser}
	testOther = domain.Principal{UserID: TestOtherUserID, Role: domain.RoleUser}
	testAdmin = domain.Principal{UserID: TestAdminID, Role: domain.RoleAdmin}
	testAddr  = domain.Address{FullName: "Asha Rao", Line1: "12 MG Road", City: "Pune", PostalCode: "411001", Country: "IN"}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPublisher collects events published from background goroutines.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return nil
}

func (p *recordingPublisher) Count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == routingKey {
			n++
		}
	}
	return n
}

// signingGateway verifies with real HMAC secrets and delegates intent
// creation to a mock.
type signingGateway struct {
	*infra.PaymentGateway
	intents *mocks.MockPaymentGateway
}

func (g signingGateway) CreateIntent(ctx context.Context, orderNumber string, amount decimal.Decimal, currency string) (*domain.PaymentIntent, error) {
	return g.intents.CreateIntent(ctx, orderNumber, amount, currency)
}

type harness struct {
	store     *mocks.MemoryStore
	clock     *fakeClock
	publisher *recordingPublisher
	intents   *mocks.MockPaymentGateway
	state     *OrderStateMachine
	checkout  *CheckoutService
	orders    *OrderService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     mocks.NewMemoryStore(),
		clock:     newFakeClock(),
		publisher: &recordingPublisher{},
		intents:   &mocks.MockPaymentGateway{},
	}
	h.build(h.store)
	return h
}

// build wires the services over orders, which may wrap the memory store.
func (h *harness) build(orders repository.OrderRepository) {
	gw := signingGateway{
		PaymentGateway: infra.NewPaymentGateway(config.Gateway{
			KeyID:         "rzp_test",
			KeySecret:     TestKeySecret,
			WebhookSecret: TestWebhookSecret,
			Currency:      "INR",
		}),
		intents: h.intents,
	}
	ledger := NewStockLedger(h.store)
	h.state = NewOrderStateMachine(orders, ledger, h.publisher, h.clock)
	h.checkout = NewCheckoutService(CheckoutDeps{
		Snapshots: NewCartSnapshotter(h.store, h.store, h.clock),
		Ledger:    ledger,
		Factory:   NewOrderFactory(NewOrderNumberGenerator(h.clock, 0), h.clock),
		State:     h.state,
		Orders:    orders,
		Gateway:   gw,
		Publisher: h.publisher,
		Currency:  "INR",
	})
	h.orders = NewOrderService(orders, h.state)
}

func (h *harness) product(id uint64, price string, stock int64) {
	h.store.PutProduct(domain.Product{ID: id, Name: "Product", Price: decimal.RequireFromString(price), StockQuantity: stock})
}

// placeCardOrder places a CARD order and attaches TestGatewayOrder to it.
func (h *harness) placeCardOrder(t *testing.T) *domain.Order {
	t.Helper()
	h.product(7, "50.00", 5)
	h.store.AddToCart(TestUserID, 7, 2)
	o, err := h.checkout.PlaceOrder(context.Background(), testUser, domain.MethodCard, testAddr)
	require.NoError(t, err)

	o, _, err = h.state.ApplyByID(context.Background(), o.ID, func(o *domain.Order, now time.Time) (bool, error) {
		o.GatewayOrderID = TestGatewayOrder
		return true, nil
	})
	require.NoError(t, err)
	return o
}

func capturedPayload(t *testing.T, event, orderNumber, gatewayOrderID string, amount int64) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"event": event,
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{
					"id":       TestGatewayPay,
					"order_id": gatewayOrderID,
					"amount":   amount,
					"notes":    map[string]string{"order_number": orderNumber},
				},
			},
		},
	})
	require.NoError(t, err)
	return b
}

// memoryGuard mirrors the Redis delivery guard: a claim is refused while the
// delivery is held or completed.
type memoryGuard struct {
	mu   sync.Mutex
	held map[string]bool
	done map[string]bool
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{held: map[string]bool{}, done: map[string]bool{}}
}

func (g *memoryGuard) Claim(_ context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[id] || g.done[id] {
		return false, nil
	}
	g.held[id] = true
	return true, nil
}

func (g *memoryGuard) Complete(_ context.Context, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, id)
	g.done[id] = true
}

func (g *memoryGuard) Release(_ context.Context, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, id)
}

func (g *memoryGuard) Completed(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done[id]
}

// panickingRepo panics on the next lookup by number while armed.
type panickingRepo struct {
	*mocks.MemoryStore
	armed atomic.Bool
}

func (r *panickingRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	if r.armed.CompareAndSwap(true, false) {
		panic("connection reset during lookup")
	}
	return r.MemoryStore.FindByOrderNumber(ctx, orderNumber)
}
