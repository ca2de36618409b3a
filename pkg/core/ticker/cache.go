// Package ticker resolves trading symbols for indexed companies by scraping
// their filing detail pages, remembering both hits and confirmed misses.
package ticker

import (
	"sync"

	"github.com/Reggles44/sec-map/pkg/core/store"
)

// State is what the cache knows about a CIK.
type State int

const (
	// Unknown means resolution was never attempted (or never concluded).
	Unknown State = iota
	// Known means a ticker was found.
	Known
	// Missing means every candidate filing was inspected without finding
	// a ticker. It is terminal: builds do not try again until the cache
	// file is cleared by hand.
	Missing
)

func (s State) String() string {
	switch s {
	case Known:
		return "known"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// Cache maps CIK to ticker. On disk a JSON null marks Missing and a
// missing key marks Unknown:
//
//	{"1403161": "V", "1000001": null}
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*string)}
}

// Get returns the cached ticker and its state.
func (c *Cache) Get(cik string) (string, State) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entries[cik]
	switch {
	case !ok:
		return "", Unknown
	case t == nil:
		return "", Missing
	default:
		return *t, Known
	}
}

// Put records a resolved ticker.
func (c *Cache) Put(cik, ticker string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cik] = &ticker
}

// PutNotFound records the terminal not-found sentinel.
func (c *Cache) PutNotFound(cik string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cik] = nil
}

// Len returns the number of cached CIKs, hits and misses alike.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns a copy of the cache contents.
func (c *Cache) Snapshot() map[string]*string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*string, len(c.entries))
	for cik, t := range c.entries {
		if t == nil {
			out[cik] = nil
			continue
		}
		v := *t
		out[cik] = &v
	}
	return out
}

// Save writes the cache to path atomically.
func (c *Cache) Save(path string) error {
	return store.WriteJSON(path, c.Snapshot())
}

// LoadCache reads a cache from path. A missing file yields an empty cache.
func LoadCache(path string) (*Cache, error) {
	c := NewCache()
	if _, _, err := store.ReadJSON(path, &c.entries); err != nil {
		return nil, err
	}
	if c.entries == nil {
		c.entries = make(map[string]*string)
	}
	return c, nil
}
