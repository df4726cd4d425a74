package ecs

import (
	"errors"
	"math"
	"sync"
)

// ErrExhausted is returned once a pool has handed out its largest value.
var ErrExhausted = errors.New("identifier pool exhausted")

// ID is the constraint every typed identifier satisfies: a distinct named
// uint64 type with a pure successor.
type ID[T any] interface {
	~uint64
	Next() T
}

// Pool hands out strictly increasing identifiers of one kind. Values are
// never recycled: destroying an entity does not return its id to the pool.
type Pool[T ID[T]] struct {
	mu        sync.Mutex
	next      T
	exhausted bool
}

// NewPool returns a pool whose first allocation is the zero value.
func NewPool[T ID[T]]() *Pool[T] {
	return &Pool[T]{}
}

// NewPoolFrom returns a pool resuming at next, typically a counter restored
// from storage.
func NewPoolFrom[T ID[T]](next T) *Pool[T] {
	return &Pool[T]{next: next}
}

// NewExhaustedPool returns a pool that has already handed out every value,
// used when restoring the counter of an exhausted pool.
func NewExhaustedPool[T ID[T]]() *Pool[T] {
	return &Pool[T]{next: ^T(0), exhausted: true}
}

// Allocate returns the current counter and advances it.
func (p *Pool[T]) Allocate() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exhausted {
		var zero T
		return zero, ErrExhausted
	}
	id := p.next
	if uint64(id) == math.MaxUint64 {
		p.exhausted = true
		return id, nil
	}
	p.next = id.Next()
	return id, nil
}

// Peek reports the value the next Allocate would return. ok is false when
// the pool is exhausted.
func (p *Pool[T]) Peek() (next T, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next, !p.exhausted
}
