package ecs

import "errors"

var (
	ErrAlive   = errors.New("entity already alive")
	ErrRetired = errors.New("entity id was retired")
)

// World owns the id pool and component registry for one entity kind, plus a
// deferred destruction queue flushed once per tick.
type World[K ID[K]] struct {
	pool         *Pool[K]
	registry     *Registry[K]
	alive        map[K]struct{}
	retired      map[K]struct{}
	destroyQueue []K
}

func NewWorld[K ID[K]](pool *Pool[K]) *World[K] {
	if pool == nil {
		pool = NewPool[K]()
	}
	return &World[K]{
		pool:         pool,
		registry:     NewRegistry[K](),
		alive:        make(map[K]struct{}, 64),
		retired:      make(map[K]struct{}),
		destroyQueue: make([]K, 0, 16),
	}
}

func (w *World[K]) Pool() *Pool[K]         { return w.pool }
func (w *World[K]) Registry() *Registry[K] { return w.registry }

// CreateEntity allocates a fresh id and marks it alive.
func (w *World[K]) CreateEntity() (K, error) {
	id, err := w.pool.Allocate()
	if err != nil {
		return id, err
	}
	w.alive[id] = struct{}{}
	return id, nil
}

// Adopt marks an id allocated in an earlier run as alive. The caller is
// responsible for having resumed the pool past it. An id destroyed by this
// world can never be adopted again.
func (w *World[K]) Adopt(id K) error {
	if _, ok := w.alive[id]; ok {
		return ErrAlive
	}
	if _, ok := w.retired[id]; ok {
		return ErrRetired
	}
	w.alive[id] = struct{}{}
	return nil
}

func (w *World[K]) Alive(id K) bool {
	_, ok := w.alive[id]
	return ok
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World[K]) MarkForDestruction(id K) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// FlushDestroyQueue destroys all queued entities, clears their components and
// returns the ids that were actually alive.
func (w *World[K]) FlushDestroyQueue() []K {
	var destroyed []K
	for _, id := range w.destroyQueue {
		if _, ok := w.alive[id]; !ok {
			continue // already destroyed (stale reference)
		}
		w.registry.RemoveAll(id)
		delete(w.alive, id)
		w.retired[id] = struct{}{}
		destroyed = append(destroyed, id)
	}
	w.destroyQueue = w.destroyQueue[:0]
	return destroyed
}
