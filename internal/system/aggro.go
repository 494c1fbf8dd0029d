package system

import (
	"time"

	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/world"
)

// aggroScanEvery throttles the scan to every Nth tick; sight checks over
// all mobs are too heavy to run at full tick rate.
const aggroScanEvery = 10

// AggroSystem makes idle aggressive mobs engage players that wander into
// sight. Low-level mobs ignore players more than twice their level.
type AggroSystem struct {
	registry *world.Registry
	radius   int32
	ticks    int
}

func NewAggroSystem(registry *world.Registry, radius int32) *AggroSystem {
	return &AggroSystem{registry: registry, radius: radius}
}

func (s *AggroSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *AggroSystem) Update(time.Duration) {
	s.ticks++
	if s.ticks%aggroScanEvery != 0 {
		return
	}
	s.registry.ForEach(world.TypeMob, func(e world.Entity) {
		m, ok := e.(*world.Mob)
		if !ok || m.IsDead() || !m.Aggressive() {
			return
		}
		c := m.Combat()
		if c == nil || c.Engaged() {
			return
		}
		x, y := m.Position()
		for _, a := range s.registry.ActorsNear(x, y, s.radius, m.Instance()) {
			if !a.IsPlayer() {
				continue
			}
			p, ok := s.registry.Player(a.Instance())
			if !ok || p.Level() > m.Level()*2 {
				continue
			}
			c.SetTarget(a)
			c.AddAttacker(a)
			c.Start()
			break
		}
	})
}
