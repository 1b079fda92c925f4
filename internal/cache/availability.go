// Package cache holds the Redis read-through cache for seat availability.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Shivanand-hulikatti/eventbooking/internal/config"
	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "eventbooking:availability:"

// NewClient connects to Redis and pings it once.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return cli, nil
}

// Availability caches model.Availability snapshots. Both counters are stored
// in one value, so a hit is always a consistent pair. A nil *Availability is a
// valid, disabled cache.
//
// Every Invalidate bumps a per-event generation. A reader that missed passes
// the generation it saw to Set, and the write is dropped if an invalidation
// happened in between, so a snapshot read before a booking committed cannot
// be cached after it.
type Availability struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewAvailability returns a cache that keeps snapshots for ttl.
func NewAvailability(client redis.Cmdable, ttl time.Duration) *Availability {
	return &Availability{client: client, ttl: ttl}
}

// The hash tag keeps both keys of an event in one cluster slot.
func key(eventID int64) string {
	return keyPrefix + "{" + strconv.FormatInt(eventID, 10) + "}"
}

func genKey(eventID int64) string {
	return key(eventID) + ":gen"
}

var setIfGeneration = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if (cur or '0') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Get returns the cached snapshot. ok is false on a miss, and gen is then the
// generation to hand back to Set.
func (c *Availability) Get(ctx context.Context, eventID int64) (a model.Availability, gen int64, ok bool, err error) {
	if c == nil {
		return model.Availability{}, 0, false, nil
	}
	vals, err := c.client.MGet(ctx, key(eventID), genKey(eventID)).Result()
	if err != nil {
		return model.Availability{}, 0, false, fmt.Errorf("cache get: %w", err)
	}

	if raw, isStr := vals[1].(string); isStr {
		if gen, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return model.Availability{}, 0, false, fmt.Errorf("cache generation: %w", err)
		}
	}

	raw, isStr := vals[0].(string)
	if !isStr {
		return model.Availability{}, gen, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return model.Availability{}, gen, false, fmt.Errorf("cache decode: %w", err)
	}
	return a, gen, true, nil
}

// Set stores a unless the event was invalidated after gen was read.
func (c *Availability) Set(ctx context.Context, a model.Availability, gen int64) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	err = setIfGeneration.Run(ctx, c.client,
		[]string{key(a.EventID), genKey(a.EventID)},
		strconv.FormatInt(gen, 10), string(data), c.ttl.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot after the counter moved.
func (c *Availability) Invalidate(ctx context.Context, eventID int64) error {
	if c == nil {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(eventID))
		pipe.Del(ctx, key(eventID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
