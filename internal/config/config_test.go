package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envOf(map[string]string{
		"PAYMENT_KEY_SECRET":     "secret",
		"PAYMENT_WEBHOOK_SECRET": "whsec",
		"REDIS_HOST":             "redis",
	}))

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "order.exchange", cfg.OrderExchange)
	assert.Equal(t, "INR", cfg.Gateway.Currency)
	assert.Equal(t, 5*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, "root:@tcp(localhost:3306)/checkout?charset=utf8mb4&parseTime=True&loc=UTC", cfg.MySQL.DSN())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secrets", env: map[string]string{}},
		{name: "bad timeout", env: map[string]string{
			"PAYMENT_KEY_SECRET":     "secret",
			"PAYMENT_WEBHOOK_SECRET": "whsec",
			"GATEWAY_TIMEOUT_MS":     "soon",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(envOf(tt.env))
			assert.Error(t, err)
		})
	}
}
