//go:build integration

package persist

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/geoworld/engine/internal/config"
	"github.com/geoworld/engine/internal/core/ecs"
	"github.com/geoworld/engine/internal/core/event"
	"github.com/geoworld/engine/internal/geometry"
	"github.com/geoworld/engine/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Run with: GEOWORLD_TEST_DSN=postgres://... go test -tags integration ./internal/persist
func openTestStore(t *testing.T) *WorldStore {
	t.Helper()
	dsn := os.Getenv("GEOWORLD_TEST_DSN")
	if dsn == "" {
		t.Skip("GEOWORLD_TEST_DSN not set")
	}
	ctx := context.Background()
	db, err := NewDB(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 4, MaxIdleConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, RunMigrations(ctx, db))
	_, err = db.Pool.Exec(ctx, `TRUNCATE geometry, geometry_sectors, id_pools`)
	require.NoError(t, err)
	return NewWorldStore(db)
}

func newTestState(pool *ecs.Pool[geometry.ID]) *world.State {
	return world.NewState(pool, event.NewBus(), zap.NewNop())
}

func TestWorldStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	ws := newTestState(ecs.NewPoolFrom(geometry.ID(math.MaxUint64 - 1)))
	big, err := geometry.NewBuilder().
		RenderNode(math.MaxUint64).
		CollisionMesh(math.MaxUint64).
		Sector(math.MaxUint64, 0, 7).
		Sector().
		Sector(3).
		Build()
	require.NoError(t, err)
	bare, err := geometry.NewBuilder().RenderNode(0).Build()
	require.NoError(t, err)

	a, err := ws.Create(big, world.Meta{Name: "big", Source: "test"})
	require.NoError(t, err)
	b, err := ws.Create(bare, world.Meta{Name: "bare"})
	require.NoError(t, err)
	assert.Equal(t, geometry.ID(math.MaxUint64), b)

	published, retired := ws.TakeChanges()
	require.NoError(t, store.Save(ctx, ws, published, retired))

	pool, err := store.GeometryPool(ctx, ecs.NewPool[geometry.ID]())
	require.NoError(t, err)
	_, ok := pool.Peek()
	assert.False(t, ok, "exhausted pool must stay exhausted")

	restored := newTestState(pool)
	n, err := store.Geometry.LoadInto(ctx, restored)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, tc := range []struct {
		id   geometry.ID
		want *geometry.StaticMap
		name string
	}{{a, big, "big"}, {b, bare, "bare"}} {
		got, ok := restored.StaticMap(tc.id)
		require.True(t, ok, tc.name)
		assert.True(t, tc.want.Equal(got), tc.name)
		meta, _ := restored.Meta(tc.id)
		assert.Equal(t, tc.name, meta.Name)
	}
	_, err = restored.Create(bare.Clone(), world.Meta{})
	assert.ErrorIs(t, err, ecs.ErrExhausted)
}

func TestWorldStoreDeletesRetired(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	ws := newTestState(nil)
	m, err := geometry.NewBuilder().RenderNode(1).Sector(1).Build()
	require.NoError(t, err)
	keep, err := ws.Create(m, world.Meta{Name: "keep"})
	require.NoError(t, err)
	drop, err := ws.Create(m.Clone(), world.Meta{Name: "drop"})
	require.NoError(t, err)
	published, retired := ws.TakeChanges()
	require.NoError(t, store.Save(ctx, ws, published, retired))

	ws.Retire(drop)
	ws.Flush()
	published, retired = ws.TakeChanges()
	require.NoError(t, store.Save(ctx, ws, published, retired))

	rows, err := store.Geometry.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, keep, rows[0].ID)

	pool, err := store.GeometryPool(ctx, nil)
	require.NoError(t, err)
	next, ok := pool.Peek()
	require.True(t, ok)
	assert.Equal(t, drop+1, next)
}

func TestLoadPoolFallback(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	fallback := ecs.NewPoolFrom(geometry.ID(40))
	got, err := store.GeometryPool(ctx, fallback)
	require.NoError(t, err)
	assert.Same(t, fallback, got)

	require.NoError(t, SavePool(ctx, store.Pools, PoolGeometry, ecs.NewPoolFrom(geometry.ID(41))))
	got, err = store.GeometryPool(ctx, fallback)
	require.NoError(t, err)
	next, ok := got.Peek()
	require.True(t, ok)
	assert.Equal(t, geometry.ID(41), next)
}
