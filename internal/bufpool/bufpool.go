// Package bufpool provides a tiered sync.Pool-backed buffer cache, so the
// connection's liveness probe doesn't allocate a fresh byte slice on every
// call. Response reads allocate their own buffers and do not use it.
package bufpool

import "sync"

const (
	SmallSize  = 4 << 10   // 4 KiB - header reads, liveness probes
	MediumSize = 64 << 10  // 64 KiB - metadata and file-info bodies
	LargeSize  = 1 << 20   // 1 MiB - small file bodies
)

// Pool hands out []byte slices sized to the nearest tier at or above the
// requested size. Slices larger than LargeSize are allocated directly and
// never pooled, since caching arbitrarily large buffers would just leak
// memory back to the pool.
type Pool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

// New constructs a ready-to-use Pool.
func New() *Pool {
	p := &Pool{}
	p.small.New = func() any { return make([]byte, SmallSize) }
	p.medium.New = func() any { return make([]byte, MediumSize) }
	p.large.New = func() any { return make([]byte, LargeSize) }
	return p
}

// Get returns a buffer of at least size bytes. The returned slice's length
// equals the chosen tier's size, not the requested size; callers slice it
// down themselves.
func (p *Pool) Get(size int) []byte {
	switch {
	case size <= SmallSize:
		return p.small.Get().([]byte)
	case size <= MediumSize:
		return p.medium.Get().([]byte)
	case size <= LargeSize:
		return p.large.Get().([]byte)
	default:
		return make([]byte, size)
	}
}

// Put returns buf to the tier matching its length. Buffers of a size that
// doesn't match any tier exactly are dropped rather than pooled.
func (p *Pool) Put(buf []byte) {
	switch len(buf) {
	case SmallSize:
		p.small.Put(buf) //nolint:staticcheck // slice header reuse is intentional
	case MediumSize:
		p.medium.Put(buf)
	case LargeSize:
		p.large.Put(buf)
	}
}

var global = New()

// Get and Put are package-level convenience wrappers around a shared Pool,
// for call sites that don't need an isolated instance.
func Get(size int) []byte { return global.Get(size) }
func Put(buf []byte)      { global.Put(buf) }
