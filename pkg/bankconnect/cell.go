package bankconnect

import "sync"

// cell is one lazily resolved value. It is either unresolved or holds a value;
// the version increases on every store.
type cell[T any] struct {
	mu       sync.RWMutex
	resolved bool
	value    T
	version  uint64
}

func (c *cell[T]) get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.resolved
}

func (c *cell[T]) set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.resolved = true
	c.version++
}

func (c *cell[T]) loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolved
}

func (c *cell[T]) currentVersion() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
