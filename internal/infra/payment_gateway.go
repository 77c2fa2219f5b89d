package infra

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"checkout-service/internal/config"
	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type PaymentGateway struct {
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	httpClient    *http.Client
}

func NewPaymentGateway(cfg config.Gateway) *PaymentGateway {
	return &PaymentGateway{
		baseURL:       cfg.BaseURL,
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
	}
}

// CreateIntent registers a gateway order for orderNumber. The order number is
// both the receipt and the idempotency key, so a retried call maps to the same
// remote order.
func (g *PaymentGateway) CreateIntent(ctx context.Context, orderNumber string, amount decimal.Decimal, currency string) (*domain.PaymentIntent, error) {
	minor := domain.MinorUnits(amount)
	body, err := json.Marshal(createOrderRequest{
		Amount:   minor,
		Currency: currency,
		Receipt:  orderNumber,
		Notes:    map[string]string{"order_number": orderNumber},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", orderNumber)
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: gateway returned status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gateway rejected order %s: status %d: %s", orderNumber, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrGatewayUnavailable, err)
	}
	if out.ID == "" {
		return nil, errors.New("gateway response missing order id")
	}
	if out.Amount != minor {
		return nil, fmt.Errorf("gateway echoed amount %d for order %s, expected %d", out.Amount, orderNumber, minor)
	}

	return &domain.PaymentIntent{
		GatewayOrderID: out.ID,
		Amount:         out.Amount,
		Currency:       out.Currency,
		OrderNumber:    orderNumber,
		KeyID:          g.keyID,
	}, nil
}

func (g *PaymentGateway) VerifyClientConfirmation(gatewayOrderID, gatewayPaymentID, clientSignature string) bool {
	if gatewayOrderID == "" || gatewayPaymentID == "" {
		return false
	}
	return verifyHex(g.keySecret, []byte(gatewayOrderID+"|"+gatewayPaymentID), clientSignature)
}

// VerifyWebhook authenticates the raw body bytes as received, before any JSON
// decoding happens.
func (g *PaymentGateway) VerifyWebhook(rawPayload []byte, headerSignature string) bool {
	if len(rawPayload) == 0 {
		return false
	}
	return verifyHex(g.webhookSecret, rawPayload, headerSignature)
}

func verifyHex(secret string, message []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(provided) != sha256.Size {
		return false
	}
	return hmac.Equal(mac(secret, message), provided)
}

func mac(secret string, message []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(message)
	return h.Sum(nil)
}

// SignClientConfirmation produces the signature the gateway hands the client
// after a successful checkout.
func SignClientConfirmation(secret, gatewayOrderID, gatewayPaymentID string) string {
	return hex.EncodeToString(mac(secret, []byte(gatewayOrderID+"|"+gatewayPaymentID)))
}

// SignPayload produces the webhook signature header value for payload.
func SignPayload(secret string, payload []byte) string {
	return hex.EncodeToString(mac(secret, payload))
}
