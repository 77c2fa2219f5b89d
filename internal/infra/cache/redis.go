package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"checkout-service/internal/domain"

	"github.com/go-redis/redis/v8"
)

const (
	orderTTL = 10 * time.Second
	// floorTTL outlives any read-through that started before an invalidation.
	floorTTL    = time.Minute
	claimTTL    = time.Minute
	deliveryTTL = 24 * time.Hour
)

// OrderCacheInterface is the read-through cache for order lookups by number.
// SetOrder never stores a row older than the last invalidated version.
type OrderCacheInterface interface {
	GetOrder(ctx context.Context, orderNumber string) (*domain.Order, bool)
	SetOrder(ctx context.Context, order *domain.Order)
	InvalidateOrder(ctx context.Context, orderNumber string, version int64)
}

// DeliveryGuardInterface remembers webhook deliveries. Claim takes a
// short-lived hold and returns false when the delivery is held or done;
// Complete keeps it for the dedupe window and Release gives it back.
type DeliveryGuardInterface interface {
	Claim(ctx context.Context, deliveryID string) (bool, error)
	Complete(ctx context.Context, deliveryID string)
	Release(ctx context.Context, deliveryID string)
}

var (
	_ OrderCacheInterface    = (*RedisCache)(nil)
	_ DeliveryGuardInterface = (*RedisCache)(nil)
)

// setIfNotStale writes KEYS[1] unless ARGV[2] (the row version) is below the
// floor in KEYS[2].
var setIfNotStale = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[2]) or '0')
if tonumber(ARGV[2]) < floor then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisCache is safe to use with a nil client; every call degrades to a miss.
type RedisCache struct {
	client      *redis.Client
	serviceName string
}

func NewRedisCache(client *redis.Client, serviceName string) *RedisCache {
	return &RedisCache{client: client, serviceName: serviceName}
}

func (r *RedisCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.serviceName, operation, key)
}

func (r *RedisCache) GetOrder(ctx context.Context, orderNumber string) (*domain.Order, bool) {
	if r == nil || r.client == nil {
		return nil, false
	}
	b, err := r.client.Get(ctx, r.GenerateKey("order", orderNumber)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.WarnContext(ctx, "order cache read failed", "order_number", orderNumber, "error", err)
		}
		return nil, false
	}
	var o domain.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, false
	}
	return &o, true
}

func (r *RedisCache) SetOrder(ctx context.Context, order *domain.Order) {
	if r == nil || r.client == nil || order == nil {
		return
	}
	data, err := json.Marshal(order)
	if err != nil {
		return
	}
	keys := []string{r.GenerateKey("order", order.OrderNumber), r.GenerateKey("order-floor", order.OrderNumber)}
	if err := setIfNotStale.Run(ctx, r.client, keys, data, order.Version, orderTTL.Milliseconds()).Err(); err != nil {
		slog.WarnContext(ctx, "order cache write failed", "order_number", order.OrderNumber, "error", err)
	}
}

// InvalidateOrder drops the cached row and records version as the oldest
// one the cache may hold from now on.
func (r *RedisCache) InvalidateOrder(ctx context.Context, orderNumber string, version int64) {
	if r == nil || r.client == nil {
		return
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.GenerateKey("order-floor", orderNumber), version, floorTTL)
		pipe.Del(ctx, r.GenerateKey("order", orderNumber))
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "order cache invalidation failed", "order_number", orderNumber, "error", err)
	}
}

func (r *RedisCache) Claim(ctx context.Context, deliveryID string) (bool, error) {
	if r == nil || r.client == nil {
		return true, nil
	}
	return r.client.SetNX(ctx, r.GenerateKey("webhook", deliveryID), time.Now().UTC().Unix(), claimTTL).Result()
}

func (r *RedisCache) Complete(ctx context.Context, deliveryID string) {
	if r == nil || r.client == nil {
		return
	}
	if err := r.client.Expire(ctx, r.GenerateKey("webhook", deliveryID), deliveryTTL).Err(); err != nil {
		slog.WarnContext(ctx, "webhook delivery not recorded", "delivery", deliveryID, "error", err)
	}
}

func (r *RedisCache) Release(ctx context.Context, deliveryID string) {
	if r == nil || r.client == nil {
		return
	}
	r.client.Del(ctx, r.GenerateKey("webhook", deliveryID))
}
