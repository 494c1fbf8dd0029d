package world

import "time"

// Player is a connected character. Movement is client-driven; the server
// only validates and rebroadcasts it.
type Player struct {
	Character

	name  string
	exp   int64
	gold  int64
	dirty bool // pending persistence

	respawnX int32
	respawnY int32
}

// NewPlayer builds a player with a fresh instance id. The caller registers
// it with the registry, which binds the combat controller.
func NewPlayer(name string, level, hp, weapon, armor, x, y int32) *Player {
	p := &Player{
		Character: Character{
			baseEntity: baseEntity{
				instance: NextPlayerInstance(),
				kind:     TypePlayer,
				x:        x,
				y:        y,
			},
			level:       level,
			hp:          hp,
			maxHP:       hp,
			weapon:      weapon,
			armor:       armor,
			attackRange: 1,
			attackRate:  time.Second,
		},
		name:     name,
		respawnX: x,
		respawnY: y,
	}
	return p
}

func (p *Player) Name() string { return p.name }
func (p *Player) Exp() int64   { return p.exp }
func (p *Player) Gold() int64  { return p.gold }

// Dirty reports whether the player has unsaved state.
func (p *Player) Dirty() bool { return p.dirty }

// MarkDirty flags the player for the next persistence sweep.
func (p *Player) MarkDirty()  { p.dirty = true }
func (p *Player) ClearDirty() { p.dirty = false }

func (p *Player) AddExp(amount int32) {
	p.exp += int64(amount)
	p.dirty = true
}

func (p *Player) AddGold(amount int32) {
	p.gold += int64(amount)
	p.dirty = true
}

// SetAttackRange lets equipped ranged weapons extend reach.
func (p *Player) SetAttackRange(r int32) {
	if r < 1 {
		r = 1
	}
	p.attackRange = r
}

// Die marks the player dead in place. Players persist through death so the
// client can drive respawn.
func (p *Player) Die() {
	p.markDead()
	p.hp = 0
	p.dirty = true
}

// Respawn revives the player at its respawn point.
func (p *Player) Respawn() {
	p.dead = false
	p.hp = p.maxHP
	p.x, p.y = p.respawnX, p.respawnY
	p.dirty = true
}

// SetRespawnPoint updates where the player revives.
func (p *Player) SetRespawnPoint(x, y int32) {
	p.respawnX, p.respawnY = x, y
}
