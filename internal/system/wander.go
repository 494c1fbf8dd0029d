package system

import (
	"math/rand"
	"time"

	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/world"
)

const wanderEvery = 40 // ticks between wander rolls

// wanderChance is the per-roll probability (out of 100) that an idle mob
// takes a step.
const wanderChance = 25

// WanderSystem gives idle mobs a random one-tile shuffle near their spawn,
// paced by the template's per-tile move speed. Leash enforcement lives in
// the registry's move path, so a wandering mob can never drift out of
// bounds.
type WanderSystem struct {
	registry *world.Registry
	rng      *rand.Rand
	ticks    int

	// lastStep records the tick a mob last stepped, so slow mobs sit out
	// rolls until their step time has elapsed.
	lastStep map[int32]int
}

func NewWanderSystem(registry *world.Registry) *WanderSystem {
	return &WanderSystem{
		registry: registry,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		lastStep: make(map[int32]int),
	}
}

// SetRandSource replaces the wander RNG with a deterministic source.
func (s *WanderSystem) SetRandSource(src rand.Source) { s.rng = rand.New(src) }

func (s *WanderSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *WanderSystem) Update(dt time.Duration) {
	s.ticks++
	if s.ticks%wanderEvery != 0 {
		return
	}
	steps := [4][2]int32{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	live := 0
	s.registry.ForEach(world.TypeMob, func(e world.Entity) {
		live++
		m, ok := e.(*world.Mob)
		if !ok || m.IsDead() {
			return
		}
		if c := m.Combat(); c != nil && c.Engaged() {
			return
		}
		if dt > 0 {
			stepTicks := int(time.Duration(m.TemplateData().MoveSpeed) * time.Millisecond / dt)
			if last, stepped := s.lastStep[m.Instance()]; stepped && s.ticks-last < stepTicks {
				return
			}
		}
		if s.rng.Intn(100) >= wanderChance {
			return
		}
		x, y := m.Position()
		step := steps[s.rng.Intn(4)]
		s.registry.MoveTo(m, x+step[0], y+step[1])
		s.lastStep[m.Instance()] = s.ticks
	})
	if len(s.lastStep) > live {
		for inst := range s.lastStep {
			if _, alive := s.registry.Get(inst); !alive {
				delete(s.lastStep, inst)
			}
		}
	}
}
