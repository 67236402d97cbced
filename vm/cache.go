package vm

import "sync"

// cacheKey identifies one parametric instantiation of a user function.
type cacheKey struct {
	fn       *UserFunction
	bindings string
}

// defaultBytecodeCache is the append-only map implementation of
// BytecodeCache: a session grows this map monotonically and never evicts,
// matching the design note that cached instantiations live for the whole
// session rather than being reclaimed.
type defaultBytecodeCache struct {
	mu      sync.Mutex
	entries map[cacheKey]*BytecodeFunction
}

// NewBytecodeCache constructs an empty, concurrency-safe BytecodeCache.
func NewBytecodeCache() BytecodeCache {
	return &defaultBytecodeCache{entries: make(map[cacheKey]*BytecodeFunction)}
}

func (c *defaultBytecodeCache) GetOrCreate(fn *UserFunction, bindings SymbolicBindings, build func() (*BytecodeFunction, error)) (*BytecodeFunction, error) {
	key := cacheKey{fn: fn, bindings: bindings.Key()}

	c.mu.Lock()
	if bf, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return bf, nil
	}
	c.mu.Unlock()

	bf, err := build()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing, nil
	}
	c.entries[key] = bf
	return bf, nil
}
