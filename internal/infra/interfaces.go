package infra

import (
	"context"

	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

// PaymentGatewayInterface creates remote payment intents and authenticates
// the gateway's callbacks. Verification never trusts caller-supplied outcome
// fields and returns false on any malformed input.
type PaymentGatewayInterface interface {
	CreateIntent(ctx context.Context, orderNumber string, amount decimal.Decimal, currency string) (*domain.PaymentIntent, error)
	VerifyClientConfirmation(gatewayOrderID, gatewayPaymentID, clientSignature string) bool
	VerifyWebhook(rawPayload []byte, headerSignature string) bool
}

var _ PaymentGatewayInterface = (*PaymentGateway)(nil)
