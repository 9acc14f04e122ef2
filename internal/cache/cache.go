package cache

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Cache is an in-memory TTL cache for upstream responses. A disabled cache
// never stores anything, so every Get misses.
type Cache struct {
	store   *ristretto.Cache
	ttl     time.Duration
	enabled bool
}

func New(ttl time.Duration, enabled bool) (*Cache, error) {
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 26,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Cache{store: store, ttl: ttl, enabled: enabled}, nil
}

// Key derives a stable cache key from a source, a method and its parameters.
func Key(source, method string, params interface{}) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return fmt.Sprintf("%s_%s_%x", source, method, hash)
}

func (c *Cache) Get(key string) (interface{}, bool) {
	if c == nil || !c.enabled {
		return nil, false
	}
	return c.store.Get(key)
}

// Set stores value with the cache TTL. Writes are buffered; the value is
// visible to Get once Wait returns.
func (c *Cache) Set(key string, value interface{}) {
	if c == nil || !c.enabled {
		return
	}
	c.store.SetWithTTL(key, value, 1, c.ttl)
}

// Wait blocks until buffered writes are applied.
func (c *Cache) Wait() {
	if c == nil {
		return
	}
	c.store.Wait()
}

func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.store.Clear()
}

func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.store.Close()
}
