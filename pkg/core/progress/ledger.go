// Package progress records which quarterly manifests have been fully
// ingested so later builds can skip them.
package progress

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Reggles44/sec-map/pkg/core/store"
)

// Key returns the ledger key for a quarter, e.g. "2022-1".
func Key(year, quarter int) string {
	return fmt.Sprintf("%d-%d", year, quarter)
}

// Ledger maps quarter keys to a completion flag. Safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	complete map[string]bool
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{complete: make(map[string]bool)}
}

// IsComplete reports whether key has been fully ingested.
func (l *Ledger) IsComplete(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.complete[key]
}

// MarkComplete flags key as ingested. Only call this once the manifest
// has been fetched and every record merged into the index.
func (l *Ledger) MarkComplete(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.complete[key] = true
}

// Reset forgets every completed quarter.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.complete = make(map[string]bool)
}

// Keys returns the completed quarter keys, sorted.
func (l *Ledger) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.complete))
	for k, done := range l.complete {
		if done {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the ledger contents.
func (l *Ledger) Snapshot() map[string]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]bool, len(l.complete))
	for k, v := range l.complete {
		out[k] = v
	}
	return out
}

// Save writes the ledger to path atomically.
func (l *Ledger) Save(path string) error {
	return store.WriteJSON(path, l.Snapshot())
}

// Load reads a ledger from path. A missing file yields an empty ledger.
func Load(path string) (*Ledger, error) {
	l := New()
	if _, _, err := store.ReadJSON(path, &l.complete); err != nil {
		return nil, err
	}
	if l.complete == nil {
		l.complete = make(map[string]bool)
	}
	return l, nil
}
