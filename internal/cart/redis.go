package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-order-engine.git/internal/orders"
	"github.com/ariefcatur/go-order-engine.git/internal/redisx"
)

// RedisClient: cart service nyimpen cart final sebagai blob JSON di redis
// (cart:{id} -> [{product_id, qty, price_cents}]). Kita cuma baca & hapus.
type RedisClient struct {
	RDB *redis.Client
}

func (c *RedisClient) Finalize(ctx context.Context, cartID string) ([]orders.ItemPrice, error) {
	key := fmt.Sprintf(redisx.KeyCart, cartID)
	raw, err := c.RDB.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}

	var lines []orders.ItemPrice
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", cartID, err)
	}
	return lines, nil
}

func (c *RedisClient) Clear(ctx context.Context, cartID string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(redisx.KeyCart, cartID)).Err()
}
