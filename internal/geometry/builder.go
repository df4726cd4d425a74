package geometry

import (
	"github.com/geoworld/engine/internal/collision"
	"github.com/geoworld/engine/internal/core/ecs"
	"github.com/geoworld/engine/internal/gfx"
	"github.com/geoworld/engine/internal/surface"
)

// Builder assembles a StaticMap while it is under construction.
type Builder struct {
	m StaticMap
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Sector appends a sector with the given surfaces.
func (b *Builder) Sector(surfaces ...surface.ID) *Builder {
	b.m.Sectors = append(b.m.Sectors, NewSector(surfaces...))
	return b
}

func (b *Builder) CollisionMesh(id collision.MeshID) *Builder {
	b.m.CollisionMesh = ecs.Some(id)
	return b
}

func (b *Builder) RenderNode(id gfx.NodeID) *Builder {
	b.m.RenderNode = ecs.Some(id)
	return b
}

// Build validates and returns a copy of the accumulated map. The builder may
// keep being used afterwards without affecting the returned value.
func (b *Builder) Build() (*StaticMap, error) {
	if err := b.m.Validate(); err != nil {
		return nil, err
	}
	return b.m.Clone(), nil
}
