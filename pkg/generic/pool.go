package generic

import "sync"

type Pool[T any] struct {
	pool sync.Pool
}

func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

func NewHotPool[T any](generate func() T, hotSize int) *Pool[T] {
	p := NewPool[T](generate)
	for i := 0; i < hotSize; i++ {
		p.pool.Put(generate())
	}
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	p.pool.Put(value)
}

// BoundedPool is a LIFO free list with a hard capacity. Unlike Pool it never
// allocates: Acquire reports false when the free list is empty and the caller
// allocates itself, and Release drops the value once maxSize entries are
// already held. Not safe for concurrent use; the engine touches it from the
// frame thread only.
type BoundedPool[T any] struct {
	free    []T
	maxSize int
}

func NewBoundedPool[T any](maxSize int) *BoundedPool[T] {
	if maxSize < 0 {
		maxSize = 0
	}
	return &BoundedPool[T]{
		free:    make([]T, 0, maxSize),
		maxSize: maxSize,
	}
}

// Acquire pops the most recently released value. The second return is false
// when the free list is empty, which is a normal outcome, not a failure.
func (p *BoundedPool[T]) Acquire() (T, bool) {
	if len(p.free) == 0 {
		var zero T
		return zero, false
	}
	last := len(p.free) - 1
	v := p.free[last]
	var zero T
	p.free[last] = zero // release the reference
	p.free = p.free[:last]
	return v, true
}

// Release pushes v back onto the free list. Beyond maxSize the value is
// silently dropped so the pool never grows unbounded.
func (p *BoundedPool[T]) Release(v T) {
	if len(p.free) >= p.maxSize {
		return
	}
	p.free = append(p.free, v)
}

// Clear drops all free entries.
func (p *BoundedPool[T]) Clear() {
	var zero T
	for i := range p.free {
		p.free[i] = zero
	}
	p.free = p.free[:0]
}

// Len returns the number of values currently held.
func (p *BoundedPool[T]) Len() int { return len(p.free) }

// Cap returns the configured maximum size.
func (p *BoundedPool[T]) Cap() int { return p.maxSize }
