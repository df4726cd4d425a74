package data

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/geoworld/engine/internal/collision"
	"github.com/geoworld/engine/internal/core/ecs"
	"github.com/geoworld/engine/internal/geometry"
	"github.com/geoworld/engine/internal/gfx"
	"github.com/geoworld/engine/internal/surface"
	"github.com/geoworld/engine/internal/world"
	"gopkg.in/yaml.v3"
)

// SectorDef is one sector of a static map definition. Surface order is kept
// exactly as written.
type SectorDef struct {
	Surfaces []uint64 `yaml:"surfaces,flow"`
}

// StaticMapDef is the on-disk form of a static map. ID is present only in
// snapshots written by SaveMapFile; hand-authored definitions omit it and get
// a fresh id on publish.
type StaticMapDef struct {
	ID            *uint64     `yaml:"id,omitempty"`
	Name          string      `yaml:"name"`
	RenderNode    *uint64     `yaml:"render_node"`
	CollisionMesh *uint64     `yaml:"collision_mesh,omitempty"`
	Sectors       []SectorDef `yaml:"sectors"`
}

// MapFile is a YAML document of static map definitions. NextID and Exhausted
// carry the geometry pool counter of a snapshot.
type MapFile struct {
	NextID    *uint64        `yaml:"next_id,omitempty"`
	Exhausted bool           `yaml:"exhausted,omitempty"`
	Maps      []StaticMapDef `yaml:"maps"`
}

// LoadMapFile loads a static map YAML file.
func LoadMapFile(path string) (*MapFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map file %s: %w", path, err)
	}
	var f MapFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse map file %s: %w", path, err)
	}
	return &f, nil
}

// SaveMapFile writes f as YAML. The file is replaced atomically so a crash
// mid-write keeps the previous snapshot.
func SaveMapFile(path string, f *MapFile) error {
	raw, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode map file: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write map file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace map file %s: %w", path, err)
	}
	return nil
}

// Pool returns the geometry pool recorded by a snapshot, or nil when the file
// carries no counter.
func (f *MapFile) Pool() *ecs.Pool[geometry.ID] {
	if f.Exhausted {
		return ecs.NewExhaustedPool[geometry.ID]()
	}
	if f.NextID == nil {
		return nil
	}
	return ecs.NewPoolFrom(geometry.ID(*f.NextID))
}

// Build converts the definition into a validated StaticMap.
func (d StaticMapDef) Build() (*geometry.StaticMap, error) {
	b := geometry.NewBuilder()
	if d.RenderNode != nil {
		b.RenderNode(gfx.NodeID(*d.RenderNode))
	}
	if d.CollisionMesh != nil {
		b.CollisionMesh(collision.MeshID(*d.CollisionMesh))
	}
	for _, s := range d.Sectors {
		ids := make([]surface.ID, len(s.Surfaces))
		for i, v := range s.Surfaces {
			ids[i] = surface.ID(v)
		}
		b.Sector(ids...)
	}
	return b.Build()
}

// DefFromStaticMap is the inverse of Build. A nil id leaves the definition
// without one.
func DefFromStaticMap(id *geometry.ID, name string, m *geometry.StaticMap) StaticMapDef {
	d := StaticMapDef{Name: name}
	if id != nil {
		v := uint64(*id)
		d.ID = &v
	}
	if node, ok := m.RenderNode.Get(); ok {
		v := uint64(node)
		d.RenderNode = &v
	}
	if mesh, ok := m.CollisionMesh.Get(); ok {
		v := uint64(mesh)
		d.CollisionMesh = &v
	}
	d.Sectors = make([]SectorDef, len(m.Sectors))
	for i, s := range m.Sectors {
		ids := s.Surfaces()
		sd := SectorDef{Surfaces: make([]uint64, len(ids))}
		for j, sid := range ids {
			sd.Surfaces[j] = uint64(sid)
		}
		d.Sectors[i] = sd
	}
	return d
}

// Publish builds every definition in f and registers it in ws. Definitions
// with an id are restored under that id; the others get a fresh one.
// Publishing stops at the first definition that fails.
func Publish(ws *world.State, f *MapFile, source string) (int, error) {
	for i, d := range f.Maps {
		m, err := d.Build()
		if err != nil {
			return i, fmt.Errorf("map %d (%q): %w", i, d.Name, err)
		}
		meta := world.Meta{Name: d.Name, Source: source}
		if d.ID != nil {
			err = ws.Insert(geometry.ID(*d.ID), m, meta)
		} else {
			_, err = ws.Create(m, meta)
		}
		if err != nil {
			return i, fmt.Errorf("map %d (%q): %w", i, d.Name, err)
		}
	}
	return len(f.Maps), nil
}

// Snapshot captures every static map in ws, with ids and the pool counter,
// in ascending id order.
func Snapshot(ws *world.State) *MapFile {
	f := &MapFile{}
	if next, ok := ws.Pool().Peek(); ok {
		v := uint64(next)
		f.NextID = &v
	} else {
		f.Exhausted = true
	}
	ws.Each(func(id geometry.ID, g geometry.Geometry) {
		m, ok := g.(*geometry.StaticMap)
		if !ok {
			return
		}
		meta, _ := ws.Meta(id)
		f.Maps = append(f.Maps, DefFromStaticMap(&id, meta.Name, m))
	})
	return f
}

// ErrNoMaps is returned by ReadAll when none of the given files exist.
var ErrNoMaps = errors.New("no map files found")

// SourceFile is a map file together with the path it was read from.
type SourceFile struct {
	Path string
	File *MapFile
}

// ReadAll loads several map files, skipping files that do not exist.
func ReadAll(paths []string) ([]SourceFile, error) {
	var files []SourceFile
	for _, p := range paths {
		f, err := LoadMapFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		files = append(files, SourceFile{Path: p, File: f})
	}
	if len(files) == 0 && len(paths) > 0 {
		return nil, ErrNoMaps
	}
	return files, nil
}

// ResumePool returns the geometry pool a world built from files must use:
// past every counter recorded in a snapshot, and never below first.
func ResumePool(files []SourceFile, first geometry.ID) *ecs.Pool[geometry.ID] {
	next := first
	for _, sf := range files {
		p := sf.File.Pool()
		if p == nil {
			continue
		}
		n, ok := p.Peek()
		if !ok {
			return p
		}
		if n > next {
			next = n
		}
	}
	return ecs.NewPoolFrom(next)
}

// PublishAll publishes every file in order and returns the number of maps
// published.
func PublishAll(ws *world.State, files []SourceFile) (int, error) {
	total := 0
	for _, sf := range files {
		n, err := Publish(ws, sf.File, sf.Path)
		total += n
		if err != nil {
			return total, fmt.Errorf("%s: %w", sf.Path, err)
		}
	}
	return total, nil
}

// LoadAll reads and publishes several definition files into ws, whose pool
// must already account for any counter the files carry (see ResumePool).
func LoadAll(ws *world.State, paths []string) (int, error) {
	files, err := ReadAll(paths)
	if err != nil {
		return 0, err
	}
	return PublishAll(ws, files)
}

// SnapshotSaver writes the whole registry to a YAML snapshot on every save.
type SnapshotSaver struct {
	Path string
}

func (s SnapshotSaver) Save(_ context.Context, ws *world.State, _, _ []geometry.ID) error {
	return SaveMapFile(s.Path, Snapshot(ws))
}
