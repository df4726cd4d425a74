package persist

import (
	"context"

	"github.com/geoworld/engine/internal/core/ecs"
	"github.com/geoworld/engine/internal/geometry"
	"github.com/geoworld/engine/internal/world"
)

// WorldStore saves the geometry registry together with its pool counter.
type WorldStore struct {
	Geometry *GeometryRepo
	Pools    *PoolRepo
}

func NewWorldStore(db *DB) *WorldStore {
	return &WorldStore{
		Geometry: NewGeometryRepo(db),
		Pools:    NewPoolRepo(db),
	}
}

// Save stores the pool counter before the geometry, so a stored id is never
// at or past the stored counter.
func (s *WorldStore) Save(ctx context.Context, ws *world.State, published, retired []geometry.ID) error {
	if err := SavePool(ctx, s.Pools, PoolGeometry, ws.Pool()); err != nil {
		return err
	}
	return s.Geometry.SaveChanges(ctx, ws, published, retired)
}

// GeometryPool restores the stored geometry pool. fresh is used when the
// database holds no world yet.
func (s *WorldStore) GeometryPool(ctx context.Context, fresh *ecs.Pool[geometry.ID]) (*ecs.Pool[geometry.ID], error) {
	return LoadPool(ctx, s.Pools, PoolGeometry, fresh)
}
