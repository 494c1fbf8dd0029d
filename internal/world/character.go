package world

import (
	"time"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/core/sched"
)

// Character is the shared base for players and mobs: anything with hit
// points and a combat controller.
type Character struct {
	baseEntity

	level int32
	hp    int32
	maxHP int32

	weapon int32 // attack stat
	armor  int32 // defense stat

	attackRange int32
	attackRate  time.Duration

	dead       bool
	stunned    bool
	frozen     bool
	moving     bool
	invincible bool
	retaliate  bool

	combat *combat.Controller

	stunTask  sched.Handle
	stunArmed bool
}

func (c *Character) Level() int32      { return c.level }
func (c *Character) HP() int32         { return c.hp }
func (c *Character) MaxHP() int32      { return c.maxHP }
func (c *Character) Weapon() int32     { return c.weapon }
func (c *Character) Armor() int32      { return c.armor }
func (c *Character) IsDead() bool      { return c.dead }
func (c *Character) IsStunned() bool   { return c.stunned }
func (c *Character) IsFrozen() bool    { return c.frozen }
func (c *Character) IsMoving() bool    { return c.moving }
func (c *Character) IsInvincible() bool { return c.invincible }
func (c *Character) Retaliate() bool   { return c.retaliate }

func (c *Character) AttackRange() int32        { return c.attackRange }
func (c *Character) AttackRate() time.Duration { return c.attackRate }

func (c *Character) Combat() *combat.Controller { return c.combat }

func (c *Character) SetStunned(v bool)    { c.stunned = v }
func (c *Character) SetFrozen(v bool)     { c.frozen = v }
func (c *Character) SetMoving(v bool)     { c.moving = v }
func (c *Character) SetInvincible(v bool) { c.invincible = v }
func (c *Character) SetRetaliate(v bool)  { c.retaliate = v }

// ApplyDamage subtracts hit points, clamping at zero, and reports the new
// value. Marking dead is the registry's job.
func (c *Character) ApplyDamage(amount int32) int32 {
	c.hp -= amount
	if c.hp < 0 {
		c.hp = 0
	}
	return c.hp
}

// Heal restores hit points up to the maximum.
func (c *Character) Heal(amount int32) {
	c.hp += amount
	if c.hp > c.maxHP {
		c.hp = c.maxHP
	}
}

func (c *Character) markDead() { c.dead = true }

// stunnable is what the registry needs to arm and re-arm stun timers.
type stunnable interface {
	SetStunned(bool)
	stunHandle() (sched.Handle, bool)
	setStunHandle(sched.Handle)
	clearStunHandle()
}

func (c *Character) stunHandle() (sched.Handle, bool) { return c.stunTask, c.stunArmed }
func (c *Character) setStunHandle(h sched.Handle) {
	c.stunTask = h
	c.stunArmed = true
}
func (c *Character) clearStunHandle() { c.stunArmed = false }

func (c *Character) SpawnData() any {
	info := c.baseEntity.SpawnData().(SpawnInfo)
	info.HP = c.hp
	info.MaxHP = c.maxHP
	return info
}
