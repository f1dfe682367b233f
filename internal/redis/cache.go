package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/playback"
)

const KeyStatusAll = "queue-status:all"

func StatusKey(branchID int) string  { return fmt.Sprintf("queue-status:branch:%d", branchID) }
func CatalogKey(branchID int) string { return fmt.Sprintf("catalog:branch:%d", branchID) }

var cacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "branchcast_cache_lookups_total", Help: "Rendered body cache lookups"},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(cacheLookups)
}

// Cache keeps rendered JSON bodies for the polling endpoints. Every method is
// best-effort: Redis failures are logged and treated as misses.
//
// Each key carries a generation counter and bodies are stored per generation.
// Invalidation bumps the counter, so a body rendered before an invalidation
// is written under a generation no later Get will read.
type Cache struct {
	kv  KV
	ttl time.Duration
}

func NewCache(kv KV, ttl time.Duration) *Cache {
	return &Cache{kv: kv, ttl: ttl}
}

func genKey(key string) string { return "gen:" + key }

func bodyKey(key string, gen int64) string { return fmt.Sprintf("%s@%d", key, gen) }

// generation returns the current generation of key, or -1 when it cannot be
// read.
func (c *Cache) generation(ctx context.Context, key string) int64 {
	gen, err := c.kv.Get(ctx, genKey(key)).Int64()
	switch {
	case err == nil:
		return gen
	case errors.Is(err, redis.Nil):
		return 0
	default:
		log.Warn().Err(err).Str("key", key).Msg("[redis] cache generation read failed")
		return -1
	}
}

// Get returns the body cached for key and the generation it was looked up
// under. The generation is passed back to Put on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, int64, bool) {
	gen := c.generation(ctx, key)
	if gen < 0 {
		cacheLookups.WithLabelValues("error").Inc()
		return nil, gen, false
	}
	body, err := c.kv.Get(ctx, bodyKey(key, gen)).Bytes()
	switch {
	case err == nil:
		cacheLookups.WithLabelValues("hit").Inc()
		log.Debug().Str("key", key).Int64("gen", gen).Msg("[redis] cache hit")
		return body, gen, true
	case errors.Is(err, redis.Nil):
		cacheLookups.WithLabelValues("miss").Inc()
	default:
		cacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("key", key).Msg("[redis] cache read failed")
	}
	return nil, gen, false
}

// Put stores body under generation gen of key. A negative gen is dropped.
func (c *Cache) Put(ctx context.Context, key string, gen int64, body []byte) {
	if gen < 0 {
		return
	}
	Set(ctx, c.kv, bodyKey(key, gen), body, c.ttl)
}

// Invalidate moves every key to a new generation. Bodies of older
// generations are left to expire.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if err := c.bump(ctx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("[redis] cache invalidation failed")
	}
}

func (c *Cache) bump(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := c.kv.Incr(ctx, genKey(key)).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Notify invalidates every body the event may have made stale.
func (c *Cache) Notify(ctx context.Context, ev playback.Event) error {
	keys := []string{KeyStatusAll, StatusKey(ev.BranchID)}
	if ev.Kind == playback.EventCatalog || ev.Kind == playback.EventVideo || ev.Kind == playback.EventBranch {
		keys = append(keys, CatalogKey(ev.BranchID))
	}
	return c.bump(ctx, keys...)
}
