package accel

import "sync"

// cacheKey identifies a device copy by the host object owning the array and
// the array's role. Holding the owner in the key keeps it reachable, so a
// key cannot be reused by another object while the cache is alive.
type cacheKey struct {
	owner any
	kind  string
}

// bufferCache keeps device copies of host arrays that stay constant for a
// run, such as net index arrays and object sizes, so repeated kernel
// launches upload only positions and exponentials. The cached arrays of an
// owner must not be modified while the engine is alive.
type bufferCache[B any] struct {
	mu      sync.Mutex
	entries map[cacheKey]B
	release func(B)

	hits   uint64
	misses uint64
}

func newBufferCache[B any](release func(B)) *bufferCache[B] {
	return &bufferCache[B]{entries: make(map[cacheKey]B), release: release}
}

// get returns the buffer for key, calling upload on a miss.
func (c *bufferCache[B]) get(key cacheKey, upload func() B) B {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.entries[key]; ok {
		c.hits++
		return b
	}
	c.misses++
	b := upload()
	c.entries[key] = b
	return b
}

// clear releases every cached buffer.
func (c *bufferCache[B]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, b := range c.entries {
		c.release(b)
		delete(c.entries, k)
	}
}

// stats returns hit and miss counts and the number of cached buffers.
func (c *bufferCache[B]) stats() (hits, misses uint64, cached int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.entries)
}
