package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"checkout-service/internal/domain"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
)

const maxWebhookBytes = 1 << 20

type CheckoutAPI interface {
	PlaceOrder(ctx context.Context, p domain.Principal, method domain.PaymentMethod, addr domain.Address) (*domain.Order, error)
	CreatePaymentIntent(ctx context.Context, p domain.Principal, orderID uint64) (*domain.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, orderNumber, gatewayOrderID, gatewayPaymentID, signature string) (*domain.Order, error)
	HandleWebhook(ctx context.Context, raw []byte, signature, eventID string) error
}

type OrderAPI interface {
	GetOrderByID(ctx context.Context, p domain.Principal, id uint64) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, p domain.Principal, orderNumber string) (*domain.Order, error)
	ListMyOrders(ctx context.Context, p domain.Principal) ([]domain.Order, error)
	ListAllOrders(ctx context.Context, p domain.Principal, page, size int) (*services.OrderPage, error)
	UpdateStatus(ctx context.Context, p domain.Principal, id uint64, t domain.Transition) (*domain.Order, error)
	UpdateTracking(ctx context.Context, p domain.Principal, id uint64, trackingNumber string) (*domain.Order, error)
	CancelOrder(ctx context.Context, p domain.Principal, id uint64) (*domain.Order, error)
}

var (
	_ CheckoutAPI = (*services.CheckoutService)(nil)
	_ OrderAPI    = (*services.OrderService)(nil)
)

type Handler struct {
	checkout CheckoutAPI
	orders   OrderAPI
}

func NewHandler(checkout CheckoutAPI, orders OrderAPI) *Handler {
	return &Handler{checkout: checkout, orders: orders}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.POST("/api/payment/webhook", h.Webhook)

	api := r.Group("/api", Identity())

	orders := api.Group("/orders")
	orders.POST("", h.CreateOrder)
	orders.GET("", h.ListMyOrders)
	orders.GET("/admin/all", h.ListAllOrders)
	orders.GET("/order-number/:orderNumber", h.GetOrderByNumber)
	orders.GET("/:id", h.GetOrder)
	orders.POST("/:id/cancel", h.CancelOrder)
	orders.PUT("/:id/status", h.UpdateStatus)
	orders.PUT("/:id/tracking", h.UpdateTracking)

	payment := api.Group("/payment")
	payment.POST("/create-order", h.CreatePayment)
	payment.POST("/verify", h.VerifyPayment)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.checkout.PlaceOrder(c.Request.Context(), principal(c), req.PaymentMethod, req.ShippingAddress.toDomain())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) ListMyOrders(c *gin.Context) {
	orders, err := h.orders.ListMyOrders(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) ListAllOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	out, err := h.orders.ListAllOrders(c.Request.Context(), principal(c), page, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := h.orders.GetOrderByID(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) GetOrderByNumber(c *gin.Context) {
	order, err := h.orders.GetOrderByNumber(c.Request.Context(), principal(c), c.Param("orderNumber"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := h.orders.CancelOrder(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), principal(c), id,
		domain.Transition{Status: req.Status, Payment: req.PaymentStatus})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) UpdateTracking(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req UpdateTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.UpdateTracking(c.Request.Context(), principal(c), id, req.TrackingNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intent, err := h.checkout.CreatePaymentIntent(c.Request.Context(), principal(c), req.OrderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, VerifyPaymentResponse{Message: err.Error()})
		return
	}

	order, err := h.checkout.ConfirmPayment(c.Request.Context(), req.OrderNumber, req.GatewayOrderID, req.GatewayPaymentID, req.Signature)
	switch {
	case errors.Is(err, domain.ErrPaymentVerificationFailed):
		c.JSON(http.StatusBadRequest, VerifyPaymentResponse{Message: "Payment verification failed"})
	case err != nil:
		status := statusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = "internal server error"
		}
		c.JSON(status, VerifyPaymentResponse{Message: msg})
	default:
		c.JSON(http.StatusOK, VerifyPaymentResponse{Success: true, Message: "Payment verified successfully", Order: order})
	}
}

// Webhook reads the body as raw bytes; the signature covers exactly what the
// gateway sent.
func (h *Handler) Webhook(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"status": "error"})
		return
	}

	signature := c.GetHeader("X-Razorpay-Signature")
	if signature == "" {
		signature = c.GetHeader("X-Signature")
	}
	eventID := c.GetHeader("X-Razorpay-Event-Id")
	if eventID == "" {
		eventID = c.GetHeader("X-Event-Id")
	}

	err = h.checkout.HandleWebhook(c.Request.Context(), raw, signature, eventID)
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid signature"})
	case err != nil:
		c.JSON(statusFor(err), gin.H{"status": "error"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

func orderID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return 0, false
	}
	return id, true
}
