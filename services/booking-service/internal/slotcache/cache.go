package slotcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "slots"

// Cache keeps raw slot lists for a short time so that polling clients do not
// hit the slot procedure on every refresh. Entries carry the merchant's
// version number; Invalidate bumps it, which orphans every older entry until
// its TTL runs out.
//
// A nil *Cache, or one without a client, is a permanent miss.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Cache{rdb: rdb, ttl: ttl, prefix: defaultPrefix}
}

func (c *Cache) enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *Cache) versionKey(merchantID string) string {
	return c.prefix + ":ver:" + merchantID
}

func (c *Cache) version(ctx context.Context, merchantID string) (int64, error) {
	v, err := c.rdb.Get(ctx, c.versionKey(merchantID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (c *Cache) key(ctx context.Context, q model.SlotQuery) (string, error) {
	ver, err := c.version(ctx, q.MerchantID)
	if err != nil {
		return "", fmt.Errorf("slot cache version: %w", err)
	}
	staff := q.StaffID
	if staff == "" {
		staff = "*"
	}
	return fmt.Sprintf("%s:%s:v%d:%s:%s:%d", c.prefix, q.MerchantID, ver, availability.FormatDate(q.Date), staff, q.DurationMinutes), nil
}

// Get returns the cached list and whether there was a hit.
func (c *Cache) Get(ctx context.Context, q model.SlotQuery) ([]availability.Slot, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	key, err := c.key(ctx, q)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("slot cache get: %w", err)
	}
	var slots []availability.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, fmt.Errorf("slot cache decode: %w", err)
	}
	return slots, true, nil
}

func (c *Cache) Set(ctx context.Context, q model.SlotQuery, slots []availability.Slot) error {
	if !c.enabled() {
		return nil
	}
	key, err := c.key(ctx, q)
	if err != nil {
		return err
	}
	if slots == nil {
		slots = []availability.Slot{}
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("slot cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("slot cache set: %w", err)
	}
	return nil
}

// Invalidate drops every cached list of the merchant.
func (c *Cache) Invalidate(ctx context.Context, merchantID string) error {
	if !c.enabled() {
		return nil
	}
	if err := c.rdb.Incr(ctx, c.versionKey(merchantID)).Err(); err != nil {
		return fmt.Errorf("slot cache invalidate: %w", err)
	}
	return nil
}

// ReadyCheck pings redis for /readyz.
func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
