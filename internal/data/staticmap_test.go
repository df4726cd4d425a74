package data

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/geoworld/engine/internal/core/ecs"
	"github.com/geoworld/engine/internal/core/event"
	"github.com/geoworld/engine/internal/geometry"
	"github.com/geoworld/engine/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleMaps = `
maps:
  - name: hall
    render_node: 7
    collision_mesh: 3
    sectors:
      - surfaces: [1, 2, 2]
      - surfaces: [2, 1]
  - name: void
    render_node: 0
    sectors: []
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newState(pool *ecs.Pool[geometry.ID]) *world.State {
	return world.NewState(pool, event.NewBus(), zap.NewNop())
}

func TestLoadAndPublish(t *testing.T) {
	f, err := LoadMapFile(writeFile(t, "maps.yaml", sampleMaps))
	require.NoError(t, err)
	require.Len(t, f.Maps, 2)
	assert.Nil(t, f.Pool())

	ws := newState(nil)
	n, err := Publish(ws, f, "maps.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hall, ok := ws.StaticMap(0)
	require.True(t, ok)
	want, err := geometry.NewBuilder().RenderNode(7).CollisionMesh(3).Sector(1, 2, 2).Sector(2, 1).Build()
	require.NoError(t, err)
	assert.True(t, want.Equal(hall))

	void, ok := ws.StaticMap(1)
	require.True(t, ok)
	assert.Empty(t, void.Sectors)
	node, ok := void.RenderNode.Get()
	assert.True(t, ok, "render node 0 is a real reference")
	assert.EqualValues(t, 0, node)

	meta, _ := ws.Meta(0)
	assert.Equal(t, world.Meta{Name: "hall", Source: "maps.yaml"}, meta)
}

func TestPublishStopsAtInvalidMap(t *testing.T) {
	f, err := LoadMapFile(writeFile(t, "maps.yaml", `
maps:
  - name: ok
    render_node: 1
  - name: broken
    sectors:
      - surfaces: [1]
`))
	require.NoError(t, err)

	ws := newState(nil)
	n, err := Publish(ws, f, "maps.yaml")
	assert.ErrorIs(t, err, geometry.ErrNoRenderNode)
	assert.ErrorContains(t, err, "broken")
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, ws.Len())
}

func TestSnapshotRoundTrip(t *testing.T) {
	ws := newState(ecs.NewPoolFrom(geometry.ID(math.MaxUint64 - 3)))
	a, err := geometry.NewBuilder().RenderNode(math.MaxUint64).Sector(5, 4, 5).Build()
	require.NoError(t, err)
	b, err := geometry.NewBuilder().RenderNode(2).CollisionMesh(9).Build()
	require.NoError(t, err)

	idA, err := ws.Create(a, world.Meta{Name: "a"})
	require.NoError(t, err)
	idB, err := ws.Create(b, world.Meta{Name: "b"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, SaveMapFile(path, Snapshot(ws)))

	f, err := LoadMapFile(path)
	require.NoError(t, err)
	require.NotNil(t, f.NextID)
	assert.Equal(t, uint64(math.MaxUint64-1), *f.NextID)

	restored := newState(f.Pool())
	n, err := Publish(restored, f, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, ok := restored.StaticMap(idA)
	require.True(t, ok)
	assert.True(t, a.Equal(got))
	got, ok = restored.StaticMap(idB)
	require.True(t, ok)
	assert.True(t, b.Equal(got))

	// the restored pool continues where the snapshot left off
	next, err := restored.Create(b.Clone(), world.Meta{})
	require.NoError(t, err)
	assert.Equal(t, geometry.ID(math.MaxUint64-1), next)
}

func TestSnapshotExhaustedPool(t *testing.T) {
	ws := newState(ecs.NewPoolFrom(geometry.ID(math.MaxUint64)))
	m, err := geometry.NewBuilder().RenderNode(1).Build()
	require.NoError(t, err)
	_, err = ws.Create(m, world.Meta{})
	require.NoError(t, err)

	f := Snapshot(ws)
	assert.True(t, f.Exhausted)
	assert.Nil(t, f.NextID)

	_, err = f.Pool().Allocate()
	assert.ErrorIs(t, err, ecs.ErrExhausted)
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleMaps), 0o644))

	ws := newState(nil)
	n, err := LoadAll(ws, []string{filepath.Join(dir, "missing.yaml"), path})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = LoadAll(newState(nil), []string{filepath.Join(dir, "missing.yaml")})
	assert.ErrorIs(t, err, ErrNoMaps)

	bad := writeFile(t, "bad.yaml", "maps: [")
	_, err = LoadAll(newState(nil), []string{bad})
	assert.Error(t, err)
}

func TestSnapshotReloadsThroughResumedPool(t *testing.T) {
	ws := newState(nil)
	m, err := geometry.NewBuilder().RenderNode(1).Sector(1, 2).Build()
	require.NoError(t, err)
	id, err := ws.Create(m, world.Meta{Name: "x"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, SaveMapFile(path, Snapshot(ws)))

	files, err := ReadAll([]string{path})
	require.NoError(t, err)

	restored := newState(ResumePool(files, 0))
	n, err := PublishAll(restored, files)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok := restored.StaticMap(id)
	require.True(t, ok)
	assert.True(t, m.Equal(got))

	next, err := restored.Create(m.Clone(), world.Meta{})
	require.NoError(t, err)
	assert.Equal(t, id+1, next)
}

func TestResumePool(t *testing.T) {
	u := func(v uint64) *uint64 { return &v }
	tests := []struct {
		name      string
		files     []*MapFile
		first     geometry.ID
		want      geometry.ID
		exhausted bool
	}{
		{"no counters", []*MapFile{{}}, 5, 5, false},
		{"counter above first", []*MapFile{{NextID: u(9)}}, 5, 9, false},
		{"first above counter", []*MapFile{{NextID: u(2)}}, 5, 5, false},
		{"highest counter wins", []*MapFile{{NextID: u(7)}, {}, {NextID: u(12)}}, 0, 12, false},
		{"exhausted", []*MapFile{{NextID: u(3)}, {Exhausted: true}}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var files []SourceFile
			for i, f := range tt.files {
				files = append(files, SourceFile{Path: string(rune('a' + i)), File: f})
			}
			next, ok := ResumePool(files, tt.first).Peek()
			assert.Equal(t, !tt.exhausted, ok)
			if !tt.exhausted {
				assert.Equal(t, tt.want, next)
			}
		})
	}
}

func TestSnapshotSaver(t *testing.T) {
	ws := newState(nil)
	m, err := geometry.NewBuilder().RenderNode(3).Build()
	require.NoError(t, err)
	_, err = ws.Create(m, world.Meta{Name: "only"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	saver := SnapshotSaver{Path: path}
	require.NoError(t, saver.Save(context.Background(), ws, nil, nil))

	f, err := LoadMapFile(path)
	require.NoError(t, err)
	require.Len(t, f.Maps, 1)
	assert.Equal(t, "only", f.Maps[0].Name)
	require.NotNil(t, f.NextID)
	assert.Equal(t, uint64(1), *f.NextID)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
