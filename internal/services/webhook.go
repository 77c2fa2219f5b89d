package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"checkout-service/internal/domain"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity gatewayOrderEntity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID      string          `json:"id"`
	OrderID string          `json:"order_id"`
	Amount  int64           `json:"amount"`
	Notes   json.RawMessage `json:"notes"`
}

type gatewayOrderEntity struct {
	ID         string `json:"id"`
	Receipt    string `json:"receipt"`
	AmountPaid int64  `json:"amount_paid"`
}

// webhookEvent is the part of a delivery the checkout flow acts on.
type webhookEvent struct {
	Name             string
	OrderNumber      string
	GatewayOrderID   string
	GatewayPaymentID string
	Amount           int64
}

func parseWebhook(raw []byte) (*webhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook payload: %v", domain.ErrInvalidInput, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: webhook payload has no event", domain.ErrInvalidInput)
	}

	evt := &webhookEvent{Name: env.Event}
	if p := env.Payload.Payment; p != nil {
		evt.GatewayPaymentID = p.Entity.ID
		evt.GatewayOrderID = p.Entity.OrderID
		evt.Amount = p.Entity.Amount
		evt.OrderNumber = noteOrderNumber(p.Entity.Notes)
	}
	if o := env.Payload.Order; o != nil {
		if evt.GatewayOrderID == "" {
			evt.GatewayOrderID = o.Entity.ID
		}
		if evt.OrderNumber == "" {
			evt.OrderNumber = o.Entity.Receipt
		}
		if evt.Amount == 0 {
			evt.Amount = o.Entity.AmountPaid
		}
	}
	return evt, nil
}

// noteOrderNumber reads notes.order_number. The gateway sends an empty JSON
// array instead of an object when there are no notes.
func noteOrderNumber(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var notes map[string]any
	if err := json.Unmarshal(raw, &notes); err != nil {
		return ""
	}
	s, _ := notes["order_number"].(string)
	return s
}

// deliveryKey identifies a webhook delivery by a digest of the exact bytes,
// prefixed with the gateway's event id when it sends one. The event id header
// is not signed, so it never names a delivery on its own.
func deliveryKey(eventID string, raw []byte) string {
	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])
	if eventID == "" {
		return digest
	}
	return eventID + ":" + digest
}
