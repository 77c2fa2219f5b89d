package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated = "order.created"
)

type OrderCreatedEvent struct {
	OrderID       uint64          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	UserID        uint64          `json:"userId"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type OrderTransitionedEvent struct {
	OrderID           uint64        `json:"orderId"`
	OrderNumber       string        `json:"orderNumber"`
	FromStatus        OrderStatus   `json:"fromStatus"`
	ToStatus          OrderStatus   `json:"toStatus"`
	FromPaymentStatus PaymentStatus `json:"fromPaymentStatus"`
	ToPaymentStatus   PaymentStatus `json:"toPaymentStatus"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// RoutingKey picks order.<status> when the order status moved and
// payment.<status> when only the payment dimension did.
func (e OrderTransitionedEvent) RoutingKey() string {
	if e.FromStatus != e.ToStatus {
		return "order." + strings.ToLower(string(e.ToStatus))
	}
	return "payment." + strings.ToLower(string(e.ToPaymentStatus))
}
