package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupeTTL bounds how long a delivered message suppresses repeats.
const DefaultDedupeTTL = 24 * time.Hour

// Deduper records which messages were already handed to a Sender.
type Deduper interface {
	// Claim returns true if key was not claimed before. It is atomic.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key so a failed delivery can be attempted again.
	Release(ctx context.Context, key string) error
}

// RedisDeduper claims keys with SET NX so concurrent runs on different
// hosts share one view.
type RedisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDeduper connects to Redis at addr.
func NewRedisDeduper(addr, password string, db int, ttl time.Duration) *RedisDeduper {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisDeduperFromClient(rdb, ttl)
}

func NewRedisDeduperFromClient(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDeduper{client: client, prefix: "golive:notify:", ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+key, time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("notify: redis claim: %w", err)
	}
	return ok, nil
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.prefix+key).Err(); err != nil {
		return fmt.Errorf("notify: redis release: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (d *RedisDeduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *RedisDeduper) Close() error {
	return d.client.Close()
}

// MemoryDeduper is a process-local Deduper.
type MemoryDeduper struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	ttl   time.Duration
	clock func() time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &MemoryDeduper{seen: make(map[string]time.Time), ttl: ttl, clock: time.Now}
}

func (d *MemoryDeduper) Claim(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock()
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	d.seen[key] = now.Add(d.ttl)
	return true, nil
}

func (d *MemoryDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
	return nil
}
