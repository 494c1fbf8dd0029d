// Package system holds the per-tick systems the game loop runs in phase
// order.
package system

import (
	"time"

	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/core/sched"
	coresys "github.com/tilerealm/server/internal/core/system"
)

// EventSystem rotates the event bus and dispatches last tick's events.
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventSystem) Update(time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

// TimerSystem advances the shared scheduler one tick, firing due combat
// loops, despawn timers, and respawns.
type TimerSystem struct {
	scheduler *sched.Scheduler
}

func NewTimerSystem(scheduler *sched.Scheduler) *TimerSystem {
	return &TimerSystem{scheduler: scheduler}
}

func (s *TimerSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *TimerSystem) Update(time.Duration) {
	s.scheduler.Advance()
}
