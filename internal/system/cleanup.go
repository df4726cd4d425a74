package system

import (
	"time"

	coresys "github.com/geoworld/engine/internal/core/system"
	"github.com/geoworld/engine/internal/world"
)

// CleanupSystem removes retired geometry from the registry at tick end.
// Phase 3 (Cleanup).
type CleanupSystem struct {
	world *world.State
}

func NewCleanupSystem(ws *world.State) *CleanupSystem {
	return &CleanupSystem{world: ws}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.world.Flush()
}
