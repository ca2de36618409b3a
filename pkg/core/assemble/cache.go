package assemble

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedAssembler memoizes successful assemblies. Filings are immutable
// once accepted by EDGAR, so entries never go stale; misses are not cached
// because they are usually transient fetch failures.
type CachedAssembler struct {
	next  Assembler
	cache *lru.Cache[string, *Statement]
}

// NewCachedAssembler wraps next with an LRU of the given size. A size of
// zero or less disables caching.
func NewCachedAssembler(next Assembler, size int) Assembler {
	if size <= 0 {
		return next
	}
	cache, err := lru.New[string, *Statement](size)
	if err != nil {
		return next
	}
	return &CachedAssembler{next: next, cache: cache}
}

// Assemble implements Assembler.
func (c *CachedAssembler) Assemble(ctx context.Context, cik, accessionID string) (*Statement, bool) {
	key := cik + "/" + accessionID
	if st, ok := c.cache.Get(key); ok {
		return st, true
	}
	st, ok := c.next.Assemble(ctx, cik, accessionID)
	if ok {
		c.cache.Add(key, st)
	}
	return st, ok
}

// Len reports the number of cached statements.
func (c *CachedAssembler) Len() int {
	return c.cache.Len()
}
