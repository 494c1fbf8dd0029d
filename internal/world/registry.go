package world

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/core/sched"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/region"
)

// worldOwner keys scheduler tasks that outlive any entity (respawns).
const worldOwner int32 = -1

// projectileTimeout destroys an in-flight projectile whose impact report
// never arrived.
const projectileTimeout = 5 * time.Second

// DamageRoller computes a damage roll. Script engines implement this; the
// second return is false when no formula is defined for the inputs.
type DamageRoller interface {
	Roll(attackerLevel, weapon, armor int32, isAoE bool) (int32, bool)
}

// BehaviorResolver maps a template behavior name to a combat behavior.
type BehaviorResolver interface {
	Behavior(name string) (combat.Behavior, bool)
}

// Config carries registry tunables.
type Config struct {
	Combat         combat.Config
	ItemBlinkAfter time.Duration
	ItemDespawn    time.Duration
	DropRate       float64
	GoldRate       float64
}

// PointsPayload is the Points message body.
type PointsPayload struct {
	Instance int32 `json:"instance"`
	HP       int32 `json:"hp"`
	MaxHP    int32 `json:"max_hp"`
}

// MovePayload is the Movement message body for a position update.
type MovePayload struct {
	Instance int32 `json:"instance"`
	X        int32 `json:"x"`
	Y        int32 `json:"y"`
	Teleport bool  `json:"teleport,omitempty"`
}

// FinishPayload is the Combat message body announcing an ended fight.
type FinishPayload struct {
	Instance int32 `json:"instance"`
	Finish   bool  `json:"finish"`
}

// Registry owns every live entity. It is the only component that creates or
// destroys entities; everything else holds instance ids.
//
// All methods run on the game-loop goroutine.
type Registry struct {
	grid      *SpatialGrid
	regions   *region.Manager
	bridge    *net.Bridge
	scheduler *sched.Scheduler
	bus       *event.Bus
	log       *zap.Logger
	cfg       Config

	mapGrid *data.MapGrid
	mobs    *data.MobTable
	items   *data.ItemTable
	drops   *data.DropTable

	scripts   DamageRoller
	behaviors BehaviorResolver

	rng *rand.Rand

	entities map[int32]Entity
	byType   map[Type]map[int32]Entity
}

func NewRegistry(
	grid *SpatialGrid,
	regions *region.Manager,
	bridge *net.Bridge,
	scheduler *sched.Scheduler,
	bus *event.Bus,
	mapGrid *data.MapGrid,
	mobs *data.MobTable,
	items *data.ItemTable,
	drops *data.DropTable,
	cfg Config,
	log *zap.Logger,
) *Registry {
	if cfg.DropRate <= 0 {
		cfg.DropRate = 1.0
	}
	if cfg.GoldRate <= 0 {
		cfg.GoldRate = 1.0
	}
	if cfg.ItemBlinkAfter <= 0 {
		cfg.ItemBlinkAfter = 10 * time.Second
	}
	if cfg.ItemDespawn <= 0 {
		cfg.ItemDespawn = 12 * time.Second
	}
	return &Registry{
		grid:      grid,
		regions:   regions,
		bridge:    bridge,
		scheduler: scheduler,
		bus:       bus,
		mapGrid:   mapGrid,
		mobs:      mobs,
		items:     items,
		drops:     drops,
		cfg:       cfg,
		log:       log,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		entities:  make(map[int32]Entity),
		byType:    make(map[Type]map[int32]Entity),
	}
}

// SetScripts installs the script-backed damage formula.
func (r *Registry) SetScripts(s DamageRoller) { r.scripts = s }

// SetBehaviors installs the behavior name resolver.
func (r *Registry) SetBehaviors(b BehaviorResolver) { r.behaviors = b }

// SetRandSource reseeds the drop/damage RNG. Test helper.
func (r *Registry) SetRandSource(src rand.Source) { r.rng = rand.New(src) }

// Get returns an entity by instance id.
func (r *Registry) Get(instance int32) (Entity, bool) {
	e, ok := r.entities[instance]
	return e, ok
}

// Player returns a player entity by instance id.
func (r *Registry) Player(instance int32) (*Player, bool) {
	p, ok := r.entities[instance].(*Player)
	return p, ok
}

// Count returns the number of live entities of a type.
func (r *Registry) Count(t Type) int { return len(r.byType[t]) }

// ForEach visits every live entity of a type.
func (r *Registry) ForEach(t Type, visit func(Entity)) {
	for _, e := range r.byType[t] {
		visit(e)
	}
}

// AddEntity registers an entity, places it in the spatial grid and region
// bookkeeping, and binds its combat controller. Duplicate instance ids are
// a logic error: logged and ignored.
func (r *Registry) AddEntity(e Entity) {
	inst := e.Instance()
	if _, dup := r.entities[inst]; dup {
		r.log.Warn("duplicate entity instance ignored",
			zap.Int32("instance", inst), zap.Stringer("kind", e.Kind()))
		return
	}
	r.entities[inst] = e
	byType, ok := r.byType[e.Kind()]
	if !ok {
		byType = make(map[int32]Entity)
		r.byType[e.Kind()] = byType
	}
	byType[inst] = e

	x, y := e.Position()
	if x > 0 && y > 0 {
		r.grid.Add(e, x, y)
		r.place(e)
	}

	if ch, ok := e.(interface{ Combat() *combat.Controller }); ok {
		c := ch.Combat()
		if c == nil {
			c = r.bindController(e)
		} else {
			c.Bind(r, r.regions)
		}
		if m, ok := e.(*Mob); ok && r.behaviors != nil && m.tmpl.Behavior != "" {
			if b, found := r.behaviors.Behavior(m.tmpl.Behavior); found {
				c.SetBehavior(b)
			}
		}
	}

	event.Emit(r.bus, event.EntitySpawned{Instance: inst, Template: e.Template(), X: x, Y: y})
}

func (r *Registry) bindController(e Entity) *combat.Controller {
	ch, ok := e.(combat.Actor)
	if !ok {
		return nil
	}
	c := combat.NewController(ch, r.scheduler, r.cfg.Combat, r.log)
	c.Bind(r, r.regions)
	switch v := e.(type) {
	case *Player:
		v.combat = c
	case *Mob:
		v.combat = c
	}
	return c
}

// RemoveEntity unregisters an entity from the grid, regions, and type maps,
// and cancels its timers. It sends no despawn messages; despawn-vs-destroy
// is the caller's call.
func (r *Registry) RemoveEntity(e Entity) {
	inst := e.Instance()
	if _, known := r.entities[inst]; !known {
		return
	}
	x, y := e.Position()
	r.grid.Remove(e, x, y)
	r.regions.Remove(e)
	r.scheduler.CancelOwner(inst)
	if ch, ok := e.(interface{ Combat() *combat.Controller }); ok {
		if c := ch.Combat(); c != nil {
			c.Destroy()
		}
	}
	delete(r.entities, inst)
	delete(r.byType[e.Kind()], inst)
}

// Despawn broadcasts a despawn to the entity's interest block and removes
// it from the registry.
func (r *Registry) Despawn(e Entity) {
	if key, ok := e.RegionKey(); ok {
		r.regions.PushToAdjacent(key, net.Message{Kind: net.KindDespawn, Data: e.Instance()}, 0)
	}
	r.RemoveEntity(e)
}

// place runs region bookkeeping after a position change and tells vacated
// regions to despawn the entity.
func (r *Registry) place(e Entity) {
	oldKey, wasPlaced := e.RegionKey()
	r.regions.Handle(e)
	for _, key := range e.RecentRegions() {
		r.regions.PushToRegion(key, net.Message{Kind: net.KindDespawn, Data: e.Instance()}, e.Instance())
	}
	e.SetRecentRegions(nil)

	newKey, _ := e.RegionKey()
	if p, isPlayer := e.(*Player); isPlayer && (!wasPlaced || oldKey != newKey) {
		r.regions.SendRegion(p, newKey)
		r.regions.Push(p)
	}
	if wasPlaced && oldKey != newKey {
		ox, oy := oldKey.Region.X, oldKey.Region.Y
		event.Emit(r.bus, event.RegionChanged{
			Instance: e.Instance(),
			FromX:    ox, FromY: oy,
			ToX: newKey.Region.X, ToY: newKey.Region.Y,
		})
	}
}

// MoveTo moves an actor one step, rejecting blocked or out-of-bounds tiles.
// Mob leash limits are enforced on every position update regardless of
// combat state.
func (r *Registry) MoveTo(a combat.Actor, x, y int32) {
	e, ok := r.entities[a.Instance()]
	if !ok {
		return
	}
	if r.mapGrid != nil && r.mapGrid.IsColliding(x, y) {
		return
	}
	fromX, fromY := e.Position()
	r.grid.Move(e, fromX, fromY, x, y)
	e.SetPosition(x, y)
	r.place(e)

	if key, placed := e.RegionKey(); placed {
		r.regions.PushToAdjacent(key, net.Message{
			Kind: net.KindMovement,
			Data: MovePayload{Instance: e.Instance(), X: x, Y: y},
		}, e.Instance())
	}

	if m, isMob := e.(*Mob); isMob && m.BeyondLeash() {
		r.ReturnToSpawn(m)
	}
}

// ReturnToSpawn teleports a mob back to its spawn point and drops it out of
// combat.
func (r *Registry) ReturnToSpawn(a combat.Actor) {
	m, ok := r.entities[a.Instance()].(*Mob)
	if !ok {
		return
	}
	if c := m.Combat(); c != nil {
		c.Stop()
		c.Forget()
	}
	fromX, fromY := m.Position()
	sx, sy := m.SpawnPoint()
	r.grid.Move(m, fromX, fromY, sx, sy)
	m.SetPosition(sx, sy)
	r.place(m)
	if key, placed := m.RegionKey(); placed {
		r.regions.PushToAdjacent(key, net.Message{
			Kind: net.KindMovement,
			Data: MovePayload{Instance: m.Instance(), X: sx, Y: sy, Teleport: true},
		}, 0)
	}
}

// ActorsNear returns live combatants within Chebyshev distance radius of
// (x,y), excluding one instance.
func (r *Registry) ActorsNear(x, y, radius, exclude int32) []combat.Actor {
	found := r.grid.EntitiesInRadius(x, y, radius)
	out := make([]combat.Actor, 0, len(found))
	for _, e := range found {
		if e.Instance() == exclude {
			continue
		}
		if a, ok := e.(combat.Actor); ok && !a.IsDead() {
			out = append(out, a)
		}
	}
	return out
}

// RollDamage computes a hit's damage, preferring the script formula.
func (r *Registry) RollDamage(attacker, target combat.Actor, isAoE bool) int32 {
	var level, weapon, armor int32
	if ch, ok := r.entities[attacker.Instance()].(interface {
		Level() int32
		Weapon() int32
	}); ok {
		level, weapon = ch.Level(), ch.Weapon()
	}
	if ch, ok := r.entities[target.Instance()].(interface{ Armor() int32 }); ok {
		armor = ch.Armor()
	}
	if r.scripts != nil {
		if dmg, ok := r.scripts.Roll(level, weapon, armor, isAoE); ok {
			return dmg
		}
	}
	dmg := weapon - armor
	if dmg < 1 {
		dmg = 1
	}
	if level > 0 {
		dmg += r.rng.Int31n(level + 1)
	}
	return dmg
}

// HandleDamage applies a hit: on-hit callback, hp decrement, Points
// broadcast, and death resolution. No-op when either side is missing, the
// amount is not positive, or the target is invincible.
func (r *Registry) HandleDamage(attacker, target combat.Actor, amount int32) {
	if attacker == nil || target == nil || amount <= 0 {
		return
	}
	e, known := r.entities[target.Instance()]
	if !known || target.IsDead() {
		return
	}
	ch, ok := e.(interface {
		ApplyDamage(int32) int32
		MaxHP() int32
		IsInvincible() bool
	})
	if !ok || ch.IsInvincible() {
		return
	}

	tc := target.Combat()
	if tc != nil {
		tc.OnHurt(attacker, amount)
		if !target.IsPlayer() || tc.IsRetaliating() {
			tc.Begin(attacker)
		} else {
			tc.AddAttacker(attacker)
		}
	}

	hp := ch.ApplyDamage(amount)
	if p, isPlayer := e.(*Player); isPlayer {
		p.MarkDirty()
	}
	if key, placed := e.RegionKey(); placed {
		r.regions.PushToAdjacent(key, net.Message{
			Kind: net.KindPoints,
			Data: PointsPayload{Instance: e.Instance(), HP: hp, MaxHP: ch.MaxHP()},
		}, 0)
	}

	if hp < 1 {
		r.resolveDeath(e, target, attacker, false)
	}
}

func (r *Registry) resolveDeath(e Entity, target, killer combat.Actor, ignoreDrops bool) {
	tc := target.Combat()
	if tc != nil {
		for _, a := range tc.Attackers() {
			if c := a.Combat(); c != nil {
				c.ClearTargetIf(target.Instance())
			}
		}
	}
	if key, placed := e.RegionKey(); placed {
		r.regions.PushToAdjacent(key, net.Message{
			Kind: net.KindCombat,
			Data: FinishPayload{Instance: e.Instance(), Finish: true},
		}, 0)
		r.regions.PushToAdjacent(key, net.Message{Kind: net.KindDespawn, Data: e.Instance()}, 0)
	}
	r.HandleDeath(e, killer, ignoreDrops)
}

// HandleDeath resolves a character's death. Mobs leave the registry, roll a
// drop, and queue a respawn; players stay registered and die in place.
func (r *Registry) HandleDeath(e Entity, killer combat.Actor, ignoreDrops bool) {
	switch v := e.(type) {
	case *Mob:
		x, y := v.Position()
		if c := v.Combat(); c != nil {
			c.OnDeath(killer)
		}
		v.markDead()
		r.RemoveEntity(v)
		if !ignoreDrops {
			r.rollDrop(v, x, y)
		}
		r.awardKill(v, killer)
		r.queueRespawn(v)
		r.emitKilled(v, killer, x, y)
		r.log.Debug("mob died",
			zap.Int32("instance", v.Instance()), zap.Int32("template", v.Template()))

	case *Player:
		x, y := v.Position()
		v.Die()
		r.emitKilled(v, killer, x, y)
		r.log.Info("player died", zap.String("name", v.Name()), zap.Int32("instance", v.Instance()))
	}
}

func (r *Registry) emitKilled(e Entity, killer combat.Actor, x, y int32) {
	var killerInst int32
	if killer != nil {
		killerInst = killer.Instance()
	}
	event.Emit(r.bus, event.EntityKilled{
		KillerInstance: killerInst,
		VictimInstance: e.Instance(),
		VictimTemplate: e.Template(),
		VictimIsPlayer: e.IsPlayer(),
		X:              x,
		Y:              y,
	})
}

func (r *Registry) awardKill(m *Mob, killer combat.Actor) {
	if killer == nil {
		return
	}
	if p, ok := r.entities[killer.Instance()].(*Player); ok {
		p.AddExp(m.tmpl.Exp)
	}
}

// Kill forces a character's death, bypassing attacker accounting and drops.
func (r *Registry) Kill(e Entity) {
	target, ok := e.(combat.Actor)
	if !ok || target.IsDead() {
		return
	}
	if ch, ok := e.(interface{ ApplyDamage(int32) int32 }); ok {
		if hp, has := e.(interface{ HP() int32 }); has {
			ch.ApplyDamage(hp.HP())
		}
	}
	if key, placed := e.RegionKey(); placed {
		maxHP := int32(0)
		if m, ok := e.(interface{ MaxHP() int32 }); ok {
			maxHP = m.MaxHP()
		}
		r.regions.PushToAdjacent(key, net.Message{
			Kind: net.KindPoints,
			Data: PointsPayload{Instance: e.Instance(), HP: 0, MaxHP: maxHP},
		}, 0)
	}
	r.resolveDeath(e, target, nil, true)
}

// rollDrop draws once against the mob's drop table and spawns the item at
// the death tile. Each entry owns the half-open weight range [cum,
// cum+weight) out of 1000; a draw past the allocated total drops nothing.
func (r *Registry) rollDrop(m *Mob, x, y int32) {
	entries := r.drops.Get(m.Template())
	if len(entries) == 0 {
		return
	}
	draw := r.rng.Intn(1000)
	if r.cfg.DropRate != 1.0 {
		draw = int(float64(draw) / r.cfg.DropRate)
	}
	entry, ok := data.RollDrop(entries, draw)
	if !ok {
		return
	}
	count := int32(1)
	if tmpl := r.items.Get(entry.ItemID); tmpl != nil && tmpl.IsGold() {
		// Level is defaulted to 1 at load, but entities built straight from
		// a template must not panic the loop with a zero roll bound.
		if lim := m.Level() * 5; lim > 0 {
			count = r.rng.Int31n(lim) + 1
		}
		if r.cfg.GoldRate != 1.0 {
			count = int32(float64(count) * r.cfg.GoldRate)
			if count < 1 {
				count = 1
			}
		}
	}
	r.DropItem(entry.ItemID, count, x, y)
}

// DropItem spawns a ground item that blinks after a delay and despawns if
// nobody collects it.
func (r *Registry) DropItem(itemID, count, x, y int32) *Item {
	it := NewItem(itemID, count, x, y)
	r.AddEntity(it)

	inst := it.Instance()
	r.scheduler.After(inst, r.cfg.ItemBlinkAfter, func() {
		if key, ok := it.RegionKey(); ok {
			r.regions.PushToAdjacent(key, net.Message{Kind: net.KindBlink, Data: inst}, 0)
		}
	})
	r.scheduler.After(inst, r.cfg.ItemDespawn, func() {
		if _, alive := r.entities[inst]; alive {
			r.Despawn(it)
		}
	})
	return it
}

// CollectItem gives a ground item to a player and removes it. Gold adds to
// the purse; anything else is acknowledged to the collector only.
func (r *Registry) CollectItem(p *Player, itemInstance int32) bool {
	it, ok := r.entities[itemInstance].(*Item)
	if !ok {
		return false
	}
	if tmpl := r.items.Get(it.Template()); tmpl != nil {
		switch {
		case tmpl.IsGold():
			p.AddGold(it.Count())
		case tmpl.Heal > 0:
			p.Heal(tmpl.Heal)
			p.MarkDirty()
			r.bridge.PushToPlayer(p.Instance(), net.Message{
				Kind: net.KindPoints,
				Data: PointsPayload{Instance: p.Instance(), HP: p.HP(), MaxHP: p.MaxHP()},
			})
		}
	}
	r.Despawn(it)
	return true
}

// SpawnMob creates a mob from its template and registers it.
func (r *Registry) SpawnMob(templateID, x, y int32) *Mob {
	tmpl := r.mobs.Get(templateID)
	if tmpl == nil {
		r.log.Warn("spawn of unknown mob template", zap.Int32("template", templateID))
		return nil
	}
	m := NewMob(tmpl, x, y)
	r.AddEntity(m)
	return m
}

// SpawnMobFromEntry creates a mob with its leash and respawn settings.
func (r *Registry) SpawnMobFromEntry(entry data.SpawnEntry) *Mob {
	m := r.SpawnMob(entry.MobID, entry.X, entry.Y)
	if m != nil {
		m.SetLeash(entry.SpawnDistance, entry.RespawnDelay)
	}
	return m
}

// queueRespawn re-creates a dead mob at its spawn point after its delay,
// under a fresh instance id.
func (r *Registry) queueRespawn(m *Mob) {
	if m.RespawnDelay() <= 0 {
		return
	}
	templateID := m.Template()
	sx, sy := m.SpawnPoint()
	distance, delay := m.SpawnDistance(), m.RespawnDelay()
	r.scheduler.After(worldOwner, time.Duration(delay)*time.Second, func() {
		x, y := r.freeTileNear(sx, sy)
		if fresh := r.SpawnMob(templateID, x, y); fresh != nil {
			fresh.SetLeash(distance, delay)
		}
	})
}

// freeTileNear finds the closest walkable, unoccupied tile to (x, y),
// scanning outward in Chebyshev rings. Falls back to the origin when the
// whole neighbourhood is blocked; spawning on top of something beats not
// spawning at all.
func (r *Registry) freeTileNear(x, y int32) (int32, int32) {
	for radius := int32(0); radius <= 3; radius++ {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				ax, ay := dx, dy
				if ax < 0 {
					ax = -ax
				}
				if ay < 0 {
					ay = -ay
				}
				ring := ax
				if ay > ring {
					ring = ay
				}
				if ring != radius {
					continue
				}
				tx, ty := x+dx, y+dy
				if r.mapGrid.IsColliding(tx, ty) {
					continue
				}
				if len(r.grid.EntitiesInRadius(tx, ty, 0)) > 0 {
					continue
				}
				return tx, ty
			}
		}
	}
	return x, y
}

// Stun freezes a character for the given duration. Re-stunning clears the
// previous expiry timer before arming a new one, so a stun never ends early
// and never double-fires.
func (r *Registry) Stun(a combat.Actor, d time.Duration) {
	e, ok := r.entities[a.Instance()]
	if !ok {
		return
	}
	ch, ok := e.(stunnable)
	if !ok {
		return
	}
	if h, armed := ch.stunHandle(); armed {
		r.scheduler.Cancel(h)
	}
	ch.SetStunned(true)
	h := r.scheduler.After(a.Instance(), d, func() {
		ch.SetStunned(false)
		ch.clearStunHandle()
	})
	ch.setStunHandle(h)
}

// SpawnChest registers a chest. Static chests respawn after being opened.
func (r *Registry) SpawnChest(items []int32, x, y int32, static bool) *Chest {
	c := NewChest(items, x, y, static)
	r.AddEntity(c)
	return c
}

// OpenChest pops a chest: one random item from its list drops on its tile
// and the chest despawns. Static chests come back after 30 seconds.
func (r *Registry) OpenChest(chestInstance int32) {
	c, ok := r.entities[chestInstance].(*Chest)
	if !ok || len(c.Items()) == 0 {
		return
	}
	x, y := c.Position()
	itemID := c.Items()[r.rng.Intn(len(c.Items()))]
	items, static := c.Items(), c.IsStatic()
	r.Despawn(c)
	r.DropItem(itemID, 1, x, y)
	if static {
		r.scheduler.After(worldOwner, 30*time.Second, func() {
			r.SpawnChest(items, x, y, true)
		})
	}
}

// SpawnProjectile creates an in-flight ranged attack. Damage lands on the
// impact report, or the projectile times out and is discarded.
func (r *Registry) SpawnProjectile(owner, target combat.Actor, damage int32) int32 {
	x, y := owner.Position()
	p := NewProjectile(owner.Instance(), target.Instance(), damage, x, y)
	r.AddEntity(p)

	inst := p.Instance()
	r.scheduler.After(inst, projectileTimeout, func() {
		if _, alive := r.entities[inst]; alive {
			r.RemoveEntity(p)
		}
	})
	return inst
}

// OnProjectileImpact applies a projectile's deferred damage and destroys
// it. Called from the client's impact report.
func (r *Registry) OnProjectileImpact(projectileInstance int32) {
	p, ok := r.entities[projectileInstance].(*Projectile)
	if !ok {
		return
	}
	r.RemoveEntity(p)
	owner, okO := r.entities[p.Owner()].(combat.Actor)
	target, okT := r.entities[p.Target()].(combat.Actor)
	if !okO || !okT {
		return
	}
	r.HandleDamage(owner, target, p.Damage())
}

// RemovePlayer fully disconnects a player: every region in its last-known
// adjacency set drops it, its attackers forget it, and it leaves the
// registry.
func (r *Registry) RemovePlayer(p *Player) {
	if c := p.Combat(); c != nil {
		for _, a := range c.Attackers() {
			if ac := a.Combat(); ac != nil {
				ac.ClearTargetIf(p.Instance())
				ac.RemoveAttacker(p)
			}
		}
	}
	if key, ok := p.RegionKey(); ok {
		r.regions.PushToAdjacent(key, net.Message{Kind: net.KindDespawn, Data: p.Instance()}, p.Instance())
	}
	r.regions.RemovePlayer(p)
	r.RemoveEntity(p)
}
