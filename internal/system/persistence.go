package system

import (
	"context"
	"time"

	coresys "github.com/geoworld/engine/internal/core/system"
	"github.com/geoworld/engine/internal/geometry"
	"github.com/geoworld/engine/internal/world"
	"go.uber.org/zap"
)

// Saver persists registry changes and the geometry pool counter.
type Saver interface {
	Save(ctx context.Context, ws *world.State, published, retired []geometry.ID) error
}

// PersistenceSystem periodically saves geometry published or retired since
// the last save. Phase 2 (Persist).
type PersistenceSystem struct {
	world     *world.State
	saver     Saver
	log       *zap.Logger
	tickCount int
	interval  int // save every N ticks
}

func NewPersistenceSystem(ws *world.State, saver Saver, log *zap.Logger, intervalTicks int) *PersistenceSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &PersistenceSystem{
		world:    ws,
		saver:    saver,
		log:      log,
		interval: intervalTicks,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.SaveNow()
}

// SaveNow persists pending changes immediately. Called on shutdown. Changes
// that fail to save are kept for the next attempt.
func (s *PersistenceSystem) SaveNow() bool {
	published, retired := s.world.TakeChanges()
	if len(published) == 0 && len(retired) == 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.saver.Save(ctx, s.world, published, retired); err != nil {
		s.world.Requeue(published, retired)
		s.log.Error("geometry save failed",
			zap.Int("published", len(published)),
			zap.Int("retired", len(retired)),
			zap.Error(err))
		return false
	}
	s.log.Info("geometry saved",
		zap.Int("published", len(published)),
		zap.Int("retired", len(retired)))
	return true
}
