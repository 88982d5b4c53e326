// Package redis implements the rate limiter stores on Redis so limits are
// shared by every instance.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bastion/internal/ratelimit/models"
)

const (
	counterPrefix  = "rl:count:"
	blockPrefix    = "rl:block:"
	overridePrefix = "rl:override:"
)

// incrementScript starts the window on the first hit and returns the count
// with the remaining window in milliseconds.
var incrementScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {c, ttl}
`)

// decrementScript refunds one hit without going below zero. DECR keeps the
// key's expiry.
var decrementScript = redis.NewScript(`
local c = tonumber(redis.call('GET', KEYS[1]) or '0')
if c > 0 then
	redis.call('DECR', KEYS[1])
end
return 0
`)

// CounterStore implements ports.CounterStore with one atomic script call per
// increment.
type CounterStore struct {
	client redis.UniversalClient
	clock  func() time.Time
}

func NewCounterStore(client redis.UniversalClient) *CounterStore {
	return &CounterStore{client: client, clock: time.Now}
}

func (s *CounterStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{counterPrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("increment rate limit counter: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("increment rate limit counter: unexpected reply %v", res)
	}
	return int(res[0]), s.clock().Add(time.Duration(res[1]) * time.Millisecond), nil
}

func (s *CounterStore) Decrement(ctx context.Context, key string) error {
	if err := decrementScript.Run(ctx, s.client, []string{counterPrefix + key}).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("decrement rate limit counter: %w", err)
	}
	return nil
}

func (s *CounterStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, counterPrefix+key).Err()
}

// Check satisfies the dependency health probe.
func (s *CounterStore) Check(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// BlockStore keeps blocks as JSON values that expire with the block.
type BlockStore struct {
	client redis.UniversalClient
	clock  func() time.Time
}

func NewBlockStore(client redis.UniversalClient) *BlockStore {
	return &BlockStore{client: client, clock: time.Now}
}

func (s *BlockStore) Block(ctx context.Context, b models.Block) error {
	ttl := b.ExpiresAt.Sub(s.clock())
	if ttl <= 0 {
		return nil
	}
	return setJSON(ctx, s.client, blockPrefix+b.IP, b, ttl)
}

func (s *BlockStore) Unblock(ctx context.Context, ip string) error {
	return s.client.Del(ctx, blockPrefix+ip).Err()
}

func (s *BlockStore) Get(ctx context.Context, ip string) (*models.Block, error) {
	var b models.Block
	found, err := getJSON(ctx, s.client, blockPrefix+ip, &b)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

// OverrideStore keeps adaptive overrides as JSON values.
type OverrideStore struct {
	client redis.UniversalClient
	clock  func() time.Time
}

func NewOverrideStore(client redis.UniversalClient) *OverrideStore {
	return &OverrideStore{client: client, clock: time.Now}
}

func (s *OverrideStore) Set(ctx context.Context, key string, o models.Override) error {
	ttl := o.ExpiresAt.Sub(s.clock())
	if ttl <= 0 {
		return nil
	}
	return setJSON(ctx, s.client, overridePrefix+key, o, ttl)
}

func (s *OverrideStore) Get(ctx context.Context, key string) (*models.Override, error) {
	var o models.Override
	found, err := getJSON(ctx, s.client, overridePrefix+key, &o)
	if err != nil || !found {
		return nil, err
	}
	return &o, nil
}

func setJSON(ctx context.Context, c redis.Cmdable, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl).Err()
}

func getJSON(ctx context.Context, c redis.Cmdable, key string, dst any) (bool, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
