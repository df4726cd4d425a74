package world

import (
	"errors"
	"fmt"
	"slices"

	"github.com/geoworld/engine/internal/core/ecs"
	"github.com/geoworld/engine/internal/core/event"
	"github.com/geoworld/engine/internal/geometry"
	"go.uber.org/zap"
)

var (
	ErrDuplicate   = errors.New("geometry id already registered")
	ErrUnallocated = errors.New("geometry id was never allocated by the pool")
	ErrRetired     = errors.New("geometry id was retired")
)

// Meta is descriptive data attached to a geometry entity.
type Meta struct {
	Name   string
	Source string // file or script the geometry was built from
}

type record struct {
	geom geometry.Geometry
}

// State is the authoritative geometry registry. Every geometry id in it was
// minted by the state's pool and is attached to one geometry value for its
// whole lifetime. Accessed only from the world loop goroutine.
type State struct {
	ents  *ecs.World[geometry.ID]
	geoms *ecs.Store[geometry.ID, record]
	metas *ecs.Store[geometry.ID, Meta]
	bus   *event.Bus
	log   *zap.Logger

	dirty   map[geometry.ID]struct{}
	retired []geometry.ID
}

// NewState creates an empty registry drawing ids from pool. A nil pool starts
// a fresh one at zero.
func NewState(pool *ecs.Pool[geometry.ID], bus *event.Bus, log *zap.Logger) *State {
	if bus == nil {
		bus = event.NewBus()
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &State{
		ents:  ecs.NewWorld(pool),
		geoms: ecs.NewStore[geometry.ID, record](),
		metas: ecs.NewStore[geometry.ID, Meta](),
		bus:   bus,
		log:   log,
		dirty: make(map[geometry.ID]struct{}),
	}
	s.ents.Registry().Register(s.geoms)
	s.ents.Registry().Register(s.metas)
	return s
}

func (s *State) Pool() *ecs.Pool[geometry.ID] { return s.ents.Pool() }
func (s *State) Bus() *event.Bus              { return s.bus }

func checkGeometry(g geometry.Geometry) error {
	switch v := g.(type) {
	case nil:
		return geometry.ErrUnassigned
	case *geometry.StaticMap:
		if v == nil {
			return geometry.ErrUnassigned
		}
		return v.Validate()
	default:
		return fmt.Errorf("unsupported geometry kind %s", g.Kind())
	}
}

// Create mints a fresh id for g and publishes it. On error nothing is
// registered.
func (s *State) Create(g geometry.Geometry, meta Meta) (geometry.ID, error) {
	if err := checkGeometry(g); err != nil {
		return 0, err
	}
	id, err := s.ents.CreateEntity()
	if err != nil {
		return 0, fmt.Errorf("allocate geometry id: %w", err)
	}
	s.publish(id, g, meta)
	return id, nil
}

// Insert registers a geometry restored from storage under its original id.
// The pool must already have been resumed past id.
func (s *State) Insert(id geometry.ID, g geometry.Geometry, meta Meta) error {
	if err := checkGeometry(g); err != nil {
		return err
	}
	if next, ok := s.ents.Pool().Peek(); ok && id >= next {
		return fmt.Errorf("%s: %w", id, ErrUnallocated)
	}
	switch err := s.ents.Adopt(id); {
	case errors.Is(err, ecs.ErrAlive):
		return fmt.Errorf("%s: %w", id, ErrDuplicate)
	case errors.Is(err, ecs.ErrRetired):
		return fmt.Errorf("%s: %w", id, ErrRetired)
	case err != nil:
		return err
	}
	s.publish(id, g, meta)
	return nil
}

func (s *State) publish(id geometry.ID, g geometry.Geometry, meta Meta) {
	s.geoms.Set(id, &record{geom: g})
	s.metas.Set(id, &meta)
	s.dirty[id] = struct{}{}
	event.Emit(s.bus, event.GeometryPublished{ID: id, Kind: g.Kind(), Name: meta.Name})
	s.log.Debug("geometry published",
		zap.Uint64("id", uint64(id)),
		zap.Stringer("kind", g.Kind()),
		zap.String("name", meta.Name))
}

// Get returns the geometry registered under id.
func (s *State) Get(id geometry.ID) (geometry.Geometry, bool) {
	r, ok := s.geoms.Get(id)
	if !ok {
		return nil, false
	}
	return r.geom, true
}

// StaticMap returns the geometry under id if it is a static map.
func (s *State) StaticMap(id geometry.ID) (*geometry.StaticMap, bool) {
	g, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	m, ok := g.(*geometry.StaticMap)
	return m, ok
}

func (s *State) Meta(id geometry.ID) (Meta, bool) {
	m, ok := s.metas.Get(id)
	if !ok {
		return Meta{}, false
	}
	return *m, true
}

func (s *State) Len() int { return s.geoms.Len() }

// Each visits every registered geometry in ascending id order.
func (s *State) Each(fn func(geometry.ID, geometry.Geometry)) {
	ids := make([]geometry.ID, 0, s.geoms.Len())
	s.geoms.Each(func(id geometry.ID, _ *record) {
		ids = append(ids, id)
	})
	slices.Sort(ids)
	for _, id := range ids {
		r, _ := s.geoms.Get(id)
		fn(id, r.geom)
	}
}

// EachNamed visits geometries carrying a non-empty name, in no particular order.
func (s *State) EachNamed(fn func(geometry.ID, Meta, geometry.Geometry)) {
	ecs.Each2(s.metas, s.geoms, func(id geometry.ID, m *Meta, r *record) {
		if m.Name != "" {
			fn(id, *m, r.geom)
		}
	})
}

// Retire queues id for removal at the end of the tick.
func (s *State) Retire(id geometry.ID) {
	s.ents.MarkForDestruction(id)
}

// Flush removes every retired geometry from the registry and returns how
// many were removed. Their ids are never reused.
func (s *State) Flush() int {
	destroyed := s.ents.FlushDestroyQueue()
	for _, id := range destroyed {
		delete(s.dirty, id)
		s.retired = append(s.retired, id)
		event.Emit(s.bus, event.GeometryRetired{ID: id})
		s.log.Debug("geometry retired", zap.Uint64("id", uint64(id)))
	}
	return len(destroyed)
}

// TakeChanges returns the ids published and retired since the last call, in
// ascending order, and resets both sets.
func (s *State) TakeChanges() (published, retired []geometry.ID) {
	for id := range s.dirty {
		published = append(published, id)
	}
	slices.Sort(published)
	retired = s.retired
	slices.Sort(retired)
	s.dirty = make(map[geometry.ID]struct{})
	s.retired = nil
	return published, retired
}

// Requeue puts back changes taken for a save that failed so the next save
// retries them.
func (s *State) Requeue(published, retired []geometry.ID) {
	for _, id := range published {
		if s.geoms.Has(id) {
			s.dirty[id] = struct{}{}
		}
	}
	s.retired = append(s.retired, retired...)
}
