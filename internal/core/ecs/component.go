package ecs

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable[K comparable] interface {
	Remove(id K)
}

// Store is a generic typed map store keyed by an entity id.
type Store[K comparable, T any] struct {
	data map[K]*T
}

func NewStore[K comparable, T any]() *Store[K, T] {
	return &Store[K, T]{
		data: make(map[K]*T, 64),
	}
}

func (s *Store[K, T]) Set(id K, c *T) {
	s.data[id] = c
}

func (s *Store[K, T]) Get(id K) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *Store[K, T]) Remove(id K) {
	delete(s.data, id)
}

func (s *Store[K, T]) Has(id K) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[K, T]) Len() int {
	return len(s.data)
}

// Each visits entries in no particular order.
func (s *Store[K, T]) Each(fn func(K, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}
