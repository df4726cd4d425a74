package ecs

import "fmt"

// Ref is an optional reference to an entity of another subsystem. The zero
// Ref is unset; an id of value 0 is a real reference when set.
type Ref[T ID[T]] struct {
	id  T
	set bool
}

func Some[T ID[T]](id T) Ref[T] { return Ref[T]{id: id, set: true} }
func None[T ID[T]]() Ref[T]     { return Ref[T]{} }

func (r Ref[T]) Get() (T, bool) { return r.id, r.set }
func (r Ref[T]) IsSet() bool    { return r.set }

func (r Ref[T]) String() string {
	if !r.set {
		return "none"
	}
	return fmt.Sprint(uint64(r.id))
}
