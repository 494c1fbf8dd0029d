package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain inbound command queues
	PhasePreUpdate               // 1: process last tick's events
	PhaseUpdate                  // 2: game logic (combat, AI, timers)
	PhasePostUpdate              // 3: leash checks, respawns
	PhaseOutput                  // 4: region incoming flush + network send
	PhasePersist                 // 5: batch save dirty players
	PhaseCleanup                 // 6: destroy queued entities
)

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
