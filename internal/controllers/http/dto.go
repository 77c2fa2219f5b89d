package http

import "checkout-service/internal/domain"

type AddressRequest struct {
	FullName   string `json:"fullName" binding:"required,max=128"`
	Phone      string `json:"phone" binding:"required,max=32"`
	Line1      string `json:"line1" binding:"required,max=255"`
	Line2      string `json:"line2" binding:"max=255"`
	City       string `json:"city" binding:"required,max=128"`
	State      string `json:"state" binding:"max=128"`
	PostalCode string `json:"postalCode" binding:"required,max=32"`
	Country    string `json:"country" binding:"required,max=64"`
}

func (a AddressRequest) toDomain() domain.Address {
	return domain.Address{
		FullName:   a.FullName,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type CreateOrderRequest struct {
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod" binding:"required,oneof=CARD UPI NET_BANKING COD"`
	ShippingAddress AddressRequest       `json:"shippingAddress" binding:"required"`
}

type UpdateStatusRequest struct {
	Status        domain.OrderStatus   `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
}

type UpdateTrackingRequest struct {
	TrackingNumber string `json:"trackingNumber" binding:"required,max=64"`
}

type CreatePaymentRequest struct {
	OrderID uint64 `json:"orderId" binding:"required"`
}

// VerifyPaymentRequest carries the fields the gateway's checkout widget
// hands back to the client.
type VerifyPaymentRequest struct {
	OrderNumber      string `json:"order_number" binding:"required"`
	GatewayOrderID   string `json:"razorpay_order_id" binding:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature        string `json:"razorpay_signature" binding:"required"`
}

type VerifyPaymentResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Order   *domain.Order `json:"order,omitempty"`
}
