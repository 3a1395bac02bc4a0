// Package sequence provides a Redis-backed request number allocator, used when the
// counter lives outside the database.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis key holding the component request counter
const DefaultKey = "crs:sequence:component_request"

var errNoClient = errors.New("redis client not initialized")

// raiseScript sets KEYS[1] to ARGV[1] unless it already holds a larger value and
// returns the resulting counter. A missing key counts as 0.
const raiseScript = `
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if cur < floor then
	redis.call('SET', KEYS[1], floor)
	return floor
end
return cur
`

type counterClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisAllocator hands out request numbers with INCR, which is atomic on the server
type RedisAllocator struct {
	client counterClient
	key    string
}

// NewRedisAllocator creates an allocator on key (DefaultKey when empty)
func NewRedisAllocator(client *redis.Client, key string) *RedisAllocator {
	if client == nil {
		return newRedisAllocator(nil, key)
	}
	return newRedisAllocator(client, key)
}

func newRedisAllocator(client counterClient, key string) *RedisAllocator {
	if key == "" {
		key = DefaultKey
	}
	return &RedisAllocator{client: client, key: key}
}

// NextRequestNumber increments the counter and returns the new value
func (a *RedisAllocator) NextRequestNumber(ctx context.Context) (int64, error) {
	if a.client == nil {
		return 0, errNoClient
	}
	n, err := a.client.Incr(ctx, a.key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", a.key, err)
	}
	return n, nil
}

// EnsureAtLeast raises the counter to floor if it is lower and returns the counter
// afterwards. Call it at startup with the highest stored request number so a reset
// or freshly introduced counter never reissues an existing id.
func (a *RedisAllocator) EnsureAtLeast(ctx context.Context, floor int64) (int64, error) {
	if a.client == nil {
		return 0, errNoClient
	}
	n, err := a.client.Eval(ctx, raiseScript, []string{a.key}, floor).Int64()
	if err != nil {
		return 0, fmt.Errorf("raise %s to %d: %w", a.key, floor, err)
	}
	return n, nil
}
