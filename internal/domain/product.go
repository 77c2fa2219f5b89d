package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the slice of the catalog row that checkout reads and the stock
// ledger mutates.
type Product struct {
	ID            uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Name          string          `json:"name" gorm:"size:255;not null"`
	Price         decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	StockQuantity int64           `json:"stockQuantity" gorm:"not null;default:0"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type CartItem struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `json:"userId" gorm:"not null;index"`
	ProductID uint64    `json:"productId" gorm:"not null"`
	Quantity  int64     `json:"quantity" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}

type SnapshotItem struct {
	ProductID uint64          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// CartSnapshot is a priced copy of a cart taken at one instant. Prices come
// from the catalog, never from the client.
type CartSnapshot struct {
	UserID     uint64         `json:"userId"`
	Items      []SnapshotItem `json:"items"`
	CapturedAt time.Time      `json:"capturedAt"`
}

// PaymentIntent correlates an order with a pending charge on the gateway.
type PaymentIntent struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	OrderNumber    string `json:"orderNumber"`
	KeyID          string `json:"keyId,omitempty"`
}
