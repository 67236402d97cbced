package vm

import "sync"

// bytecodeSizeBucket rounds a requested capacity up to the nearest power of
// two >= minBytecodeBucket, mirroring the block-size rounding a pooling
// allocator uses to keep its free-list count small.
const minBytecodeBucket = 16

func bytecodeSizeBucket(n int) int {
	bucket := minBytecodeBucket
	for bucket < n {
		bucket *= 2
	}
	return bucket
}

// BytecodeArena recycles the []Bytecode backing slices synthesized builtins
// like map allocate on every call, pooled by size bucket so that a tight
// loop invoking map repeatedly on same-length arrays doesn't pressure the
// allocator once warmed up. It does not own lifetime beyond lending
// buffers out: callers that want bytecode to persist append-owned (a
// Frame's own synthesized list, the BytecodeCache) rather than returning it
// to this arena.
type BytecodeArena struct {
	mu      sync.Mutex
	buckets map[int]*sync.Pool
}

func NewBytecodeArena() *BytecodeArena {
	return &BytecodeArena{buckets: make(map[int]*sync.Pool)}
}

func (a *BytecodeArena) poolFor(bucket int) *sync.Pool {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.buckets[bucket]
	if !ok {
		p = &sync.Pool{New: func() interface{} {
			return make([]Bytecode, 0, bucket)
		}}
		a.buckets[bucket] = p
	}
	return p
}

// Get returns a zero-length []Bytecode with capacity for at least n
// instructions, reused from the pool when one is available.
func (a *BytecodeArena) Get(n int) []Bytecode {
	bucket := bytecodeSizeBucket(n)
	buf := a.poolFor(bucket).Get().([]Bytecode)
	return buf[:0]
}

// Put returns buf to the arena for reuse once the caller is done appending
// to it and has copied out anything it needs to keep. Buffers handed to a
// Frame or a BytecodeCache must not be returned here.
func (a *BytecodeArena) Put(buf []Bytecode) {
	bucket := bytecodeSizeBucket(cap(buf))
	a.poolFor(bucket).Put(buf[:0]) //nolint:staticcheck // deliberate slice reuse
}
