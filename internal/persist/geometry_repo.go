package persist

import (
	"context"
	"fmt"

	"github.com/geoworld/engine/internal/collision"
	"github.com/geoworld/engine/internal/core/ecs"
	"github.com/geoworld/engine/internal/geometry"
	"github.com/geoworld/engine/internal/gfx"
	"github.com/geoworld/engine/internal/surface"
	"github.com/geoworld/engine/internal/world"
	"go.uber.org/zap"
)

// Identifiers are unsigned 64-bit; postgres BIGINT is signed. Values are
// stored bit for bit so every id round-trips exactly.
func toDB(v uint64) int64   { return int64(v) }
func fromDB(v int64) uint64 { return uint64(v) }

func refToDB[T ecs.ID[T]](r ecs.Ref[T]) *int64 {
	id, ok := r.Get()
	if !ok {
		return nil
	}
	v := toDB(uint64(id))
	return &v
}

func surfacesToDB(s geometry.Sector) []int64 {
	ids := s.Surfaces()
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = toDB(uint64(id))
	}
	return out
}

func surfacesFromDB(vals []int64) geometry.Sector {
	ids := make([]surface.ID, len(vals))
	for i, v := range vals {
		ids[i] = surface.ID(fromDB(v))
	}
	return geometry.NewSector(ids...)
}

// GeometryRow is one persisted geometry entity.
type GeometryRow struct {
	ID   geometry.ID
	Meta world.Meta
	Map  *geometry.StaticMap
}

type GeometryRepo struct {
	db *DB
}

func NewGeometryRepo(db *DB) *GeometryRepo {
	return &GeometryRepo{db: db}
}

// SaveChanges writes the published geometries of ws and deletes the retired
// ones in a single transaction.
func (r *GeometryRepo) SaveChanges(ctx context.Context, ws *world.State, published, retired []geometry.ID) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("geometry save begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, id := range retired {
		if _, err := tx.Exec(ctx, `DELETE FROM geometry WHERE id = $1`, toDB(uint64(id))); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}

	for _, id := range published {
		m, ok := ws.StaticMap(id)
		if !ok {
			continue // retired since, or not a static map
		}
		meta, _ := ws.Meta(id)
		if _, err := tx.Exec(ctx,
			`INSERT INTO geometry (id, kind, name, source, render_node, collision_mesh)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET
			   kind = EXCLUDED.kind, name = EXCLUDED.name, source = EXCLUDED.source,
			   render_node = EXCLUDED.render_node, collision_mesh = EXCLUDED.collision_mesh,
			   updated_at = now()`,
			toDB(uint64(id)), int16(m.Kind()), meta.Name, meta.Source,
			refToDB(m.RenderNode), refToDB(m.CollisionMesh),
		); err != nil {
			return fmt.Errorf("upsert %s: %w", id, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM geometry_sectors WHERE geometry_id = $1`, toDB(uint64(id))); err != nil {
			return fmt.Errorf("clear sectors %s: %w", id, err)
		}
		for i, s := range m.Sectors {
			if _, err := tx.Exec(ctx,
				`INSERT INTO geometry_sectors (geometry_id, idx, surfaces) VALUES ($1, $2, $3)`,
				toDB(uint64(id)), i, surfacesToDB(s),
			); err != nil {
				return fmt.Errorf("insert sector %d of %s: %w", i, id, err)
			}
		}
	}

	return tx.Commit(ctx)
}

// LoadAll returns every persisted static map in ascending id order with
// sectors in their stored order.
func (r *GeometryRepo) LoadAll(ctx context.Context) ([]GeometryRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, kind, name, source, render_node, collision_mesh FROM geometry ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		result []GeometryRow
		index  = make(map[int64]int)
	)
	for rows.Next() {
		var (
			id         int64
			kind       int16
			row        GeometryRow
			renderNode *int64
			mesh       *int64
		)
		if err := rows.Scan(&id, &kind, &row.Meta.Name, &row.Meta.Source, &renderNode, &mesh); err != nil {
			return nil, err
		}
		if geometry.Kind(kind) != geometry.KindStaticMap {
			return nil, fmt.Errorf("geometry %d: unsupported kind %d", fromDB(id), kind)
		}
		row.ID = geometry.ID(fromDB(id))
		row.Map = &geometry.StaticMap{}
		if renderNode != nil {
			row.Map.RenderNode = ecs.Some(gfx.NodeID(fromDB(*renderNode)))
		}
		if mesh != nil {
			row.Map.CollisionMesh = ecs.Some(collision.MeshID(fromDB(*mesh)))
		}
		index[id] = len(result)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srows, err := r.db.Pool.Query(ctx,
		`SELECT geometry_id, surfaces FROM geometry_sectors ORDER BY geometry_id, idx`,
	)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var (
			gid      int64
			surfaces []int64
		)
		if err := srows.Scan(&gid, &surfaces); err != nil {
			return nil, err
		}
		i, ok := index[gid]
		if !ok {
			continue
		}
		m := result[i].Map
		m.Sectors = append(m.Sectors, surfacesFromDB(surfaces))
	}
	return result, srows.Err()
}

// LoadInto registers every persisted geometry in ws under its stored id. The
// pool of ws must have been restored first.
func (r *GeometryRepo) LoadInto(ctx context.Context, ws *world.State) (int, error) {
	rows, err := r.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load geometry: %w", err)
	}
	for i, row := range rows {
		if err := ws.Insert(row.ID, row.Map, row.Meta); err != nil {
			return i, err
		}
	}
	// restored entries are already persisted
	ws.TakeChanges()
	r.db.log.Debug("geometry restored", zap.Int("count", len(rows)))
	return len(rows), nil
}
