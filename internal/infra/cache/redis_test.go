package cache

import (
	"context"
	"testing"

	"checkout-service/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestRedisCache_DisabledClientIsAMiss(t *testing.T) {
	ctx := context.Background()
	c := NewRedisCache(nil, "checkout")

	c.SetOrder(ctx, &domain.Order{OrderNumber: "JW-1"})
	o, ok := c.GetOrder(ctx, "JW-1")
	assert.False(t, ok)
	assert.Nil(t, o)

	claimed, err := c.Claim(ctx, "evt_1")
	assert.NoError(t, err)
	assert.True(t, claimed)

	c.InvalidateOrder(ctx, "JW-1", 2)
	c.Complete(ctx, "evt_1")
	c.Release(ctx, "evt_1")
}

func TestRedisCache_GenerateKey(t *testing.T) {
	c := NewRedisCache(nil, "checkout")
	assert.Equal(t, "checkout:order:JW-20260102030405-0001", c.GenerateKey("order", "JW-20260102030405-0001"))
}
