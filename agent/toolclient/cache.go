package toolclient

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

const cacheShardCount = 16

// lookup outcomes, used as metric labels too
const (
	cacheHit     = "hit"
	cacheMiss    = "miss"
	cacheExpired = "expired"
)

type cacheEntry struct {
	payload   map[string]any
	expiresAt time.Time
}

type cacheShard struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// ttlCache is a sharded map with lazy expiry: entries are only evicted when a
// read finds them stale. There is no background sweeper and no single-flight,
// so concurrent misses for the same key may each reach the transport.
type ttlCache struct {
	shards [cacheShardCount]*cacheShard
	ttl    time.Duration
	now    func() time.Time
}

func newTTLCache(ttl time.Duration, now func() time.Time) *ttlCache {
	c := &ttlCache{
		ttl: ttl,
		now: now,
	}
	for i := range c.shards {
		c.shards[i] = &cacheShard{entries: make(map[string]cacheEntry)}
	}
	return c
}

func (c *ttlCache) enabled() bool {
	return c != nil && c.ttl > 0
}

// get returns the cached payload and the lookup outcome.
func (c *ttlCache) get(key string) (map[string]any, string) {
	if !c.enabled() {
		return nil, cacheMiss
	}

	shard := c.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[key]
	if !ok {
		return nil, cacheMiss
	}
	if !c.now().Before(entry.expiresAt) {
		delete(shard.entries, key)
		return nil, cacheExpired
	}
	return entry.payload, cacheHit
}

func (c *ttlCache) put(key string, payload map[string]any) {
	if !c.enabled() {
		return
	}

	shard := c.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	shard.entries[key] = cacheEntry{
		payload:   payload,
		expiresAt: c.now().Add(c.ttl),
	}
}

func (c *ttlCache) shard(key string) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%cacheShardCount]
}

// cacheKey canonicalizes (tool, args) so that argument maps with the same
// content produce the same key regardless of insertion order. encoding/json
// marshals map keys sorted, at every nesting level.
func cacheKey(tool string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	canonical, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("canonicalize tool arguments: %w", err)
	}
	return tool + "\n" + string(canonical), nil
}
