package index

import "sync"

// Cache holds the current Index and rebuilds it lazily after invalidation.
// Readers always get a complete, immutable snapshot; a rebuild swaps the
// whole pointer.
type Cache struct {
	mu      sync.Mutex
	scanner *Scanner
	current *Index
}

func NewCache(scanner *Scanner) *Cache {
	return &Cache{scanner: scanner}
}

// GetOrBuild returns the cached index, building one first if no valid
// snapshot exists. Concurrent callers during a rebuild block and then share
// the same result.
func (c *Cache) GetOrBuild() *Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		c.current = c.scanner.Build()
	}
	return c.current
}

// Invalidate drops the cached snapshot; the next GetOrBuild rescans. Called
// after every mirror pass.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}
