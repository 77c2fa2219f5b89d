package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	MethodCard           PaymentMethod = "CARD"
	MethodUPI            PaymentMethod = "UPI"
	MethodNetBanking     PaymentMethod = "NET_BANKING"
	MethodCashOnDelivery PaymentMethod = "COD"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodUPI, MethodNetBanking, MethodCashOnDelivery:
		return true
	}
	return false
}

// Address is stored by value on the order so later address book edits never
// reach a placed order.
type Address struct {
	FullName   string `json:"fullName" gorm:"size:128"`
	Phone      string `json:"phone" gorm:"size:32"`
	Line1      string `json:"line1" gorm:"size:255"`
	Line2      string `json:"line2,omitempty" gorm:"size:255"`
	City       string `json:"city" gorm:"size:128"`
	State      string `json:"state" gorm:"size:128"`
	PostalCode string `json:"postalCode" gorm:"size:32"`
	Country    string `json:"country" gorm:"size:64"`
}

type LineItem struct {
	ID                  uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID             uint64          `json:"-" gorm:"not null;index"`
	ProductID           uint64          `json:"productId" gorm:"not null;index"`
	Quantity            int64           `json:"quantity" gorm:"not null"`
	UnitPriceAtPurchase decimal.Decimal `json:"unitPriceAtPurchase" gorm:"type:decimal(12,2);not null"`
}

func (LineItem) TableName() string { return "order_items" }

func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPriceAtPurchase.Mul(decimal.NewFromInt(l.Quantity))
}

type Order struct {
	ID                uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderNumber       string          `json:"orderNumber" gorm:"size:32;not null;uniqueIndex"`
	UserID            uint64          `json:"userId" gorm:"not null;index"`
	LineItems         []LineItem      `json:"lineItems" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	TotalAmount       decimal.Decimal `json:"totalAmount" gorm:"type:decimal(12,2);not null"`
	Status            OrderStatus     `json:"status" gorm:"size:16;not null;index"`
	PaymentMethod     PaymentMethod   `json:"paymentMethod" gorm:"size:16;not null"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus" gorm:"size:16;not null"`
	ShippingAddress   Address         `json:"shippingAddress" gorm:"embedded;embeddedPrefix:shipping_"`
	GatewayOrderID    string          `json:"gatewayOrderId,omitempty" gorm:"size:64;index"`
	GatewayPaymentID  string          `json:"gatewayPaymentId,omitempty" gorm:"size:64"`
	TrackingNumber    string          `json:"trackingNumber,omitempty" gorm:"size:64"`
	EstimatedDelivery *time.Time      `json:"estimatedDelivery,omitempty"`
	Version           int64           `json:"version" gorm:"not null;default:1"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// ComputeTotal sums quantity x unit price over the line items.
func ComputeTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Clone returns a deep copy so callers can mutate a candidate without touching
// the persisted view.
func (o *Order) Clone() *Order {
	cp := *o
	cp.LineItems = append([]LineItem(nil), o.LineItems...)
	if o.EstimatedDelivery != nil {
		t := *o.EstimatedDelivery
		cp.EstimatedDelivery = &t
	}
	return &cp
}

// MinorUnits converts an amount into the smallest currency unit (paise, cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
