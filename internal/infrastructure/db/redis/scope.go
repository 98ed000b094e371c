package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sewerwatch/portal/internal/core/ports"
)

// casScript swaps KEYS[1] from ARGV[1] to ARGV[2], keeping its TTL.
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'KEEPTTL')
return 1
`)

// cadScript deletes KEYS[1] and the remaining KEYS while KEYS[1] equals ARGV[1].
var cadScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
	return 0
end
redis.call('DEL', unpack(KEYS))
return 1
`)

// Scope stores credentials under a key prefix.
// Key format: session:<prefix>:<namespace>:<token|user>
//
// A durable scope keeps keys for ttl after they were written. A sliding
// scope renews ttl on every read, so it only expires when idle.
type Scope struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	sliding bool
}

var _ ports.Scope = (*Scope)(nil)

// NewDurableScope keeps keys for ttl after each write.
func NewDurableScope(client *redis.Client, ttl time.Duration) *Scope {
	return &Scope{client: client, prefix: "session:durable:", ttl: ttl}
}

// NewSlidingScope expires keys after ttl without reads.
func NewSlidingScope(client *redis.Client, ttl time.Duration) *Scope {
	return &Scope{client: client, prefix: "session:ephemeral:", ttl: ttl, sliding: true}
}

func (s *Scope) key(k string) string { return s.prefix + k }

func (s *Scope) Get(ctx context.Context, key string) (string, bool, error) {
	var cmd *redis.StringCmd
	if s.sliding && s.ttl > 0 {
		cmd = s.client.GetEx(ctx, s.key(key), s.ttl)
	} else {
		cmd = s.client.Get(ctx, s.key(key))
	}
	v, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (s *Scope) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Scope) CompareAndSwap(ctx context.Context, key, old, value string) (bool, error) {
	n, err := casScript.Run(ctx, s.client, []string{s.key(key)}, old, value).Int()
	if err != nil {
		return false, fmt.Errorf("redis compare-and-swap: %w", err)
	}
	return n == 1, nil
}

func (s *Scope) CompareAndDelete(ctx context.Context, key, old string, also ...string) (bool, error) {
	keys := make([]string, 0, len(also)+1)
	keys = append(keys, s.key(key))
	for _, k := range also {
		keys = append(keys, s.key(k))
	}
	n, err := cadScript.Run(ctx, s.client, keys, old).Int()
	if err != nil {
		return false, fmt.Errorf("redis compare-and-delete: %w", err)
	}
	return n == 1, nil
}

func (s *Scope) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
