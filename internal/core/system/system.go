package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhasePreUpdate Phase = iota // 0: deliver last tick's events
	PhaseUpdate                 // 1: world building
	PhasePersist                // 2: save geometry and pool counters
	PhaseCleanup                // 3: destroy queued entities
)

// System is the interface every world system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
