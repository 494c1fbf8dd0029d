package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/persist"
	"github.com/tilerealm/server/internal/world"
)

// PersistenceSystem sweeps dirty players on an interval and batch-saves
// them off the game loop. Snapshots are taken on the loop; only the write
// happens on a worker goroutine.
type PersistenceSystem struct {
	registry *world.Registry
	repo     *persist.CharacterRepo
	log      *zap.Logger

	interval time.Duration
	elapsed  time.Duration
}

func NewPersistenceSystem(registry *world.Registry, repo *persist.CharacterRepo, interval time.Duration, log *zap.Logger) *PersistenceSystem {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &PersistenceSystem{
		registry: registry,
		repo:     repo,
		log:      log,
		interval: interval,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(dt time.Duration) {
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	s.SaveDirty()
}

// SaveDirty snapshots every dirty player and writes the batch in the
// background. Also called once during shutdown.
func (s *PersistenceSystem) SaveDirty() {
	rows := make([]*persist.CharacterRow, 0, 16)
	s.registry.ForEach(world.TypePlayer, func(e world.Entity) {
		p, ok := e.(*world.Player)
		if !ok || !p.Dirty() {
			return
		}
		x, y := p.Position()
		rows = append(rows, &persist.CharacterRow{
			Name:   p.Name(),
			Level:  p.Level(),
			Exp:    p.Exp(),
			Gold:   p.Gold(),
			HP:     p.HP(),
			MaxHP:  p.MaxHP(),
			Weapon: p.Weapon(),
			Armor:  p.Armor(),
			X:      x,
			Y:      y,
		})
		p.ClearDirty()
	})
	if len(rows) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.repo.SaveBatch(ctx, rows); err != nil {
			s.log.Error("batch save failed", zap.Int("players", len(rows)), zap.Error(err))
			return
		}
		s.log.Debug("players saved", zap.Int("count", len(rows)))
	}()
}
