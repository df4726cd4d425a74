package event

import "github.com/geoworld/engine/internal/geometry"

// GeometryPublished is emitted when a geometry entity enters the registry.
type GeometryPublished struct {
	ID   geometry.ID
	Kind geometry.Kind
	Name string
}

// GeometryRetired is emitted after a geometry entity has been removed from
// the registry. Its id is never handed out again.
type GeometryRetired struct {
	ID geometry.ID
}
