// Package geometry describes world geometry: things that don't necessarily
// move or think, such as floors, walls and ceilings.
//
// Geometry values only hold references by id into the surface store, the
// collision system and the render graph. Resolving those ids is the job of
// the subsystem that owns each store.
package geometry

import (
	"errors"
	"strconv"

	"github.com/geoworld/engine/internal/collision"
	"github.com/geoworld/engine/internal/core/ecs"
	"github.com/geoworld/engine/internal/gfx"
	"github.com/geoworld/engine/internal/surface"
)

var (
	ErrUnassigned   = errors.New("geometry unassigned")
	ErrNoRenderNode = errors.New("static map has no render node")
)

// ID identifies a geometry entity in the world registry.
type ID uint64

func (id ID) Next() ID       { return id + 1 }
func (id ID) String() string { return "geometry#" + strconv.FormatUint(uint64(id), 10) }

// Kind enumerates geometry variants.
type Kind uint8

const (
	KindUnassigned Kind = iota
	KindStaticMap
)

func (k Kind) String() string {
	switch k {
	case KindStaticMap:
		return "static_map"
	default:
		return "unassigned"
	}
}

// Geometry is implemented by every geometry variant. A nil Geometry is the
// unassigned state and is never renderable or collidable.
type Geometry interface {
	Kind() Kind
	geometry()
}

// KindOf reports the variant of g, KindUnassigned for nil.
func KindOf(g Geometry) Kind {
	if g == nil {
		return KindUnassigned
	}
	return g.Kind()
}

// Sector groups the surfaces bounding one room or region of a static map.
// Order is significant and the same surface may appear more than once.
type Sector struct {
	surfaces []surface.ID
}

func NewSector(surfaces ...surface.ID) Sector {
	return Sector{surfaces: append([]surface.ID(nil), surfaces...)}
}

// Surfaces returns a copy of the sector's surface references in order.
func (s Sector) Surfaces() []surface.ID {
	return append([]surface.ID(nil), s.surfaces...)
}

func (s Sector) Len() int { return len(s.surfaces) }

// Add appends surface references to the sector.
func (s *Sector) Add(ids ...surface.ID) {
	s.surfaces = append(s.surfaces, ids...)
}

// Equal compares exact content and order.
func (s Sector) Equal(o Sector) bool {
	if len(s.surfaces) != len(o.surfaces) {
		return false
	}
	for i := range s.surfaces {
		if s.surfaces[i] != o.surfaces[i] {
			return false
		}
	}
	return true
}

// StaticMap is level geometry built once and then published to the registry.
// Mutating a map after publishing is the caller's responsibility.
type StaticMap struct {
	CollisionMesh ecs.Ref[collision.MeshID]
	Sectors       []Sector
	RenderNode    ecs.Ref[gfx.NodeID]
}

func (*StaticMap) Kind() Kind { return KindStaticMap }
func (*StaticMap) geometry()  {}

// Validate checks that the map carries its mandatory render node.
func (m *StaticMap) Validate() error {
	if !m.RenderNode.IsSet() {
		return ErrNoRenderNode
	}
	return nil
}

// Clone returns a deep copy of the map.
func (m *StaticMap) Clone() *StaticMap {
	c := &StaticMap{
		CollisionMesh: m.CollisionMesh,
		RenderNode:    m.RenderNode,
	}
	if m.Sectors != nil {
		c.Sectors = make([]Sector, len(m.Sectors))
		for i, s := range m.Sectors {
			c.Sectors[i] = NewSector(s.surfaces...)
		}
	}
	return c
}

func (m *StaticMap) Equal(o *StaticMap) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.CollisionMesh != o.CollisionMesh || m.RenderNode != o.RenderNode {
		return false
	}
	if len(m.Sectors) != len(o.Sectors) {
		return false
	}
	for i := range m.Sectors {
		if !m.Sectors[i].Equal(o.Sectors[i]) {
			return false
		}
	}
	return true
}

// SurfaceCount is the total number of surface references across sectors,
// duplicates included.
func (m *StaticMap) SurfaceCount() int {
	n := 0
	for _, s := range m.Sectors {
		n += s.Len()
	}
	return n
}
