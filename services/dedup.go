package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper answers "was this key seen within the window?" and records it
// atomically. Used to suppress duplicate realtime notification pushes.
type Deduper interface {
	Seen(key string) bool
}

type memoryDeduper struct {
	mu     sync.Mutex
	ttl    time.Duration
	lastAt map[string]time.Time
}

// NewMemoryDeduper keeps the window in process memory. Suitable for a
// single instance; multi-instance deployments should use the redis
// variant so the window spans the fleet.
func NewMemoryDeduper(ttl time.Duration) Deduper {
	return &memoryDeduper{
		ttl:    ttl,
		lastAt: make(map[string]time.Time),
	}
}

func (d *memoryDeduper) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if at, ok := d.lastAt[key]; ok && now.Sub(at) < d.ttl {
		return true
	}
	d.lastAt[key] = now

	// Lazy eviction keeps the map bounded without a sweeper goroutine.
	for k, at := range d.lastAt {
		if now.Sub(at) >= d.ttl {
			delete(d.lastAt, k)
		}
	}
	return false
}

type redisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) Deduper {
	return &redisDeduper{client: client, ttl: ttl}
}

// Seen claims the key with SET NX so concurrent instances agree on a
// single winner. On redis failure the push goes through; a duplicate
// beats a dropped notification.
func (d *redisDeduper) Seen(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	claimed, err := d.client.SetNX(ctx, "dedup:"+key, 1, d.ttl).Result()
	if err != nil {
		log.Printf("dedup check failed for %s: %v", key, err)
		return false
	}
	return !claimed
}
