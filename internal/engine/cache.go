package engine

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"k8s.io/klog/v2"

	"github.com/piwi3910/PanelCut/internal/model"
)

// cacheEntry is one stored result with its insertion time.
type cacheEntry struct {
	result    model.OptimizationResult
	timestamp time.Time
}

// Cache keeps results of recent runs keyed by their inputs. It is safe for
// concurrent use. Entries older than the TTL are treated as missing; when
// full, the oldest entry is evicted.
type Cache struct {
	mu         sync.RWMutex
	entries    map[uint64]*cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewCache creates a cache holding at most maxEntries results for ttl each.
// A zero ttl never expires; a non-positive maxEntries means unbounded.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		entries:    make(map[uint64]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *Cache) expired(e *cacheEntry) bool {
	if c.ttl == 0 {
		return false
	}
	return c.now().Sub(e.timestamp) > c.ttl
}

// Get returns a copy of the cached result for key.
func (c *Cache) Get(key uint64) (model.OptimizationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		return model.OptimizationResult{}, false
	}
	klog.V(4).Infof("Result cache hit for key %016x", key)
	return e.result.Clone(), true
}

// Put stores a copy of result under key.
func (c *Cache) Put(key uint64, result model.OptimizationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = &cacheEntry{result: result.Clone(), timestamp: c.now()}
}

// evictLocked drops expired entries, or the oldest one if none have expired.
func (c *Cache) evictLocked() {
	var oldestKey uint64
	var oldest time.Time
	removed := 0
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			removed++
			continue
		}
		if oldest.IsZero() || e.timestamp.Before(oldest) {
			oldest, oldestKey = e.timestamp, k
		}
	}
	if removed == 0 && !oldest.IsZero() {
		delete(c.entries, oldestKey)
		removed++
	}
	klog.V(4).Infof("Evicted %d result cache entries", removed)
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*cacheEntry)
}

// CacheKey hashes everything that determines a run's output: the piece set,
// the panel inventory, strategy, kerf and edge trim.
func CacheKey(req Request, trim float64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = d.Write(buf[:])
	}
	writeString := func(s string) {
		writeInt(len(s))
		_, _ = d.WriteString(s)
	}

	writeInt(len(req.Pieces))
	for _, p := range req.Pieces {
		writeString(p.ID)
		writeString(p.Label)
		writeFloat(p.Width)
		writeFloat(p.Height)
		writeInt(p.Quantity)
		writeInt(int(p.Grain))
		writeString(p.Material)
	}
	writeInt(len(req.Panels))
	for _, p := range req.Panels {
		writeString(p.ID)
		writeString(p.Label)
		writeFloat(p.Width)
		writeFloat(p.Height)
		writeString(p.Material)
		writeFloat(p.PricePerArea)
		writeInt(p.StockQuantity)
		writeInt(int(p.Grain))
	}
	writeString(string(req.Strategy))
	writeFloat(req.KerfWidth)
	writeFloat(trim)
	return d.Sum64()
}
