package world

import (
	"github.com/tilerealm/server/internal/data"
)

// Mob is a hostile character spawned from a template. It remembers its
// spawn point for leash returns and respawning.
type Mob struct {
	Character

	tmpl *data.MobTemplate

	spawnX        int32
	spawnY        int32
	spawnDistance int32 // 0 = no leash
	respawnDelay  int   // seconds, 0 = no respawn
}

// NewMob builds a mob from its template at the given position.
func NewMob(tmpl *data.MobTemplate, x, y int32) *Mob {
	return &Mob{
		Character: Character{
			baseEntity: baseEntity{
				template: tmpl.MobID,
				instance: nextMobInstance(),
				kind:     TypeMob,
				x:        x,
				y:        y,
			},
			level:       tmpl.Level,
			hp:          tmpl.HP,
			maxHP:       tmpl.HP,
			weapon:      tmpl.Weapon,
			armor:       tmpl.Armor,
			attackRange: tmpl.AttackRange,
			attackRate:  tmpl.AttackInterval(),
		},
		tmpl:   tmpl,
		spawnX: x,
		spawnY: y,
	}
}

func (m *Mob) Template() int32              { return m.tmpl.MobID }
func (m *Mob) TemplateData() *data.MobTemplate { return m.tmpl }
func (m *Mob) Aggressive() bool             { return m.tmpl.Aggressive }
func (m *Mob) SpawnPoint() (int32, int32)   { return m.spawnX, m.spawnY }
func (m *Mob) SpawnDistance() int32         { return m.spawnDistance }
func (m *Mob) RespawnDelay() int            { return m.respawnDelay }

// SetLeash configures the leash radius and respawn delay from the spawn
// entry that produced this mob.
func (m *Mob) SetLeash(distance int32, respawnDelay int) {
	m.spawnDistance = distance
	m.respawnDelay = respawnDelay
}

// BeyondLeash reports whether the mob has wandered past its leash radius.
func (m *Mob) BeyondLeash() bool {
	if m.spawnDistance <= 0 {
		return false
	}
	dx, dy := m.x-m.spawnX, m.y-m.spawnY
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	d := dx
	if dy > d {
		d = dy
	}
	return d > m.spawnDistance
}
