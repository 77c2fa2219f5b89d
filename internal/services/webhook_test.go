package services

import (
	"testing"

	"checkout-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhook(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		expected    *webhookEvent
		expectedErr error
	}{
		{
			name: "payment captured with notes",
			raw:  `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","amount":15997,"notes":{"order_number":"JW-1"}}}}}`,
			expected: &webhookEvent{
				Name: "payment.captured", OrderNumber: "JW-1", GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", Amount: 15997,
			},
		},
		{
			name: "empty notes array falls back to order receipt",
			raw:  `{"event":"order.paid","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","amount":500,"notes":[]}},"order":{"entity":{"id":"order_1","receipt":"JW-2","amount_paid":500}}}}`,
			expected: &webhookEvent{
				Name: "order.paid", OrderNumber: "JW-2", GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", Amount: 500,
			},
		},
		{
			name:     "order entity only",
			raw:      `{"event":"order.paid","payload":{"order":{"entity":{"id":"order_9","receipt":"JW-9","amount_paid":100}}}}`,
			expected: &webhookEvent{Name: "order.paid", OrderNumber: "JW-9", GatewayOrderID: "order_9", Amount: 100},
		},
		{
			name:        "not json",
			raw:         `event=payment.captured`,
			expectedErr: domain.ErrInvalidInput,
		},
		{
			name:        "missing event",
			raw:         `{"payload":{}}`,
			expectedErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := parseWebhook([]byte(tt.raw))
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, evt)
		})
	}
}

func TestDeliveryKey(t *testing.T) {
	digest := deliveryKey("", []byte("x"))
	assert.Equal(t, "evt_1:"+digest, deliveryKey("evt_1", []byte("x")))
	assert.NotEqual(t, deliveryKey("evt_1", []byte("x")), deliveryKey("evt_1", []byte("y")),
		"an unsigned event id must not suppress a different body")
	assert.Len(t, deliveryKey("", []byte("x")), 64)
	assert.Equal(t, deliveryKey("", []byte("x")), deliveryKey("", []byte("x")))
	assert.NotEqual(t, deliveryKey("", []byte("x")), deliveryKey("", []byte("y")))
}
