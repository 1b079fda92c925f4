package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "eventbooking:availability:{42}", key(42))
	assert.Equal(t, "eventbooking:availability:{42}:gen", genKey(42))
}

func TestNilCacheIsDisabled(t *testing.T) {
	var c *Availability
	ctx := context.Background()

	_, _, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Set(ctx, model.Availability{EventID: 1}, 0))
	assert.NoError(t, c.Invalidate(ctx, 1))
}

func TestUnreachableRedisReturnsErrors(t *testing.T) {
	cli := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = cli.Close() })

	c := NewAvailability(cli, time.Second)
	ctx := context.Background()

	_, _, ok, err := c.Get(ctx, 1)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Set(ctx, model.Availability{EventID: 1, AvailableSeats: 1, TotalSeats: 2}, 0))
	assert.Error(t, c.Invalidate(ctx, 1))
}
