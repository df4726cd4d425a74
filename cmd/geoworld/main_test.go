package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/geoworld/engine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const mapsYAML = `
maps:
  - name: hall
    render_node: 1
`

const snapshotYAML = `
next_id: 8
maps:
  - id: 7
    name: hall
    render_node: 1
`

func TestReadWorldFilesPrefersSnapshot(t *testing.T) {
	dir := t.TempDir()
	maps := filepath.Join(dir, "maps.yaml")
	snap := filepath.Join(dir, "snapshot.yaml")
	require.NoError(t, os.WriteFile(maps, []byte(mapsYAML), 0o644))

	cfg := config.WorldConfig{MapFiles: []string{maps}, SnapshotFile: snap}

	files, fromSnapshot, err := readWorldFiles(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, fromSnapshot)
	require.Len(t, files, 1)
	assert.Equal(t, maps, files[0].Path)

	require.NoError(t, os.WriteFile(snap, []byte(snapshotYAML), 0o644))
	files, fromSnapshot, err = readWorldFiles(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, fromSnapshot)
	require.Len(t, files, 1)
	assert.Equal(t, snap, files[0].Path)
}

func TestReadWorldFilesMissingMapsIsNotFatal(t *testing.T) {
	cfg := config.WorldConfig{MapFiles: []string{filepath.Join(t.TempDir(), "none.yaml")}}
	files, fromSnapshot, err := readWorldFiles(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, fromSnapshot)
	assert.Empty(t, files)
}

func TestReadWorldFilesBadSnapshot(t *testing.T) {
	snap := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, os.WriteFile(snap, []byte("maps: ["), 0o644))
	_, _, err := readWorldFiles(config.WorldConfig{SnapshotFile: snap}, zap.NewNop())
	assert.ErrorContains(t, err, "snapshot")
}
