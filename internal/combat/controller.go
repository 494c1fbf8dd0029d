// Package combat implements the per-character combat state machine: the
// attack, follow, and check loops, attacker bookkeeping, the hit queue, and
// projectile/AoE delivery.
package combat

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/core/sched"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/region"
)

// hitTolerance absorbs scheduler jitter so a hit arriving a hair early is
// not rejected and re-delivered next loop.
const hitTolerance = 5 * time.Millisecond

// retaliateIdle is how long a player must be combat-idle before auto-engage
// on being hit becomes eligible.
const retaliateIdle = 1500 * time.Millisecond

// Actor is the controller's view of its owner and of other combatants.
type Actor interface {
	Instance() int32
	IsPlayer() bool
	IsDead() bool
	IsStunned() bool
	IsFrozen() bool
	IsMoving() bool
	Position() (x, y int32)
	RegionKey() (region.Key, bool)

	AttackRange() int32 // 1 = melee
	AttackRate() time.Duration
	Retaliate() bool

	Combat() *Controller
}

// World is the registry binding a controller needs to act. A controller
// with a nil world is inert: every operation is a defensive no-op.
type World interface {
	HandleDamage(attacker, target Actor, amount int32)
	RollDamage(attacker, target Actor, isAoE bool) int32
	ActorsNear(x, y, radius, exclude int32) []Actor
	SpawnProjectile(owner, target Actor, damage int32) int32
	MoveTo(a Actor, x, y int32)
	ReturnToSpawn(a Actor)
}

// Broadcaster scopes combat packets to the 3x3 interest block.
type Broadcaster interface {
	PushToAdjacent(key region.Key, msg net.Message, ignore int32)
}

// HitPayload is the Combat message body for a delivered hit.
type HitPayload struct {
	Attacker  int32 `json:"attacker"`
	Target    int32 `json:"target"`
	Damage    int32 `json:"damage"`
	IsAoE     bool  `json:"is_aoe,omitempty"`
	HasTerror bool  `json:"has_terror,omitempty"`
}

// ProjectilePayload is the Projectile message body for a ranged launch.
type ProjectilePayload struct {
	Projectile int32 `json:"projectile"`
	Attacker   int32 `json:"attacker"`
	Target     int32 `json:"target"`
}

// FollowPayload is the Movement message body for a follow hint.
type FollowPayload struct {
	Entity int32 `json:"entity"`
	Target int32 `json:"target"`
}

// Config carries the loop periods and timeouts.
type Config struct {
	FollowInterval time.Duration
	CheckInterval  time.Duration
	ForgetAfter    time.Duration
}

// Controller drives combat for one character. It never throws from a loop
// body: when the world binding is missing, the target is gone, or the owner
// is already dead, operations degrade to no-ops.
//
// All methods run on the game-loop goroutine.
type Controller struct {
	owner     Actor
	world     World
	bcast     Broadcaster
	scheduler *sched.Scheduler
	behavior  Behavior
	cfg       Config
	log       *zap.Logger
	rng       *rand.Rand

	// now is the wall clock, injectable for tests.
	now func() time.Time

	engaged   bool
	destroyed bool
	target    Actor
	attackers map[int32]Actor
	queue     hitQueue

	lastAction time.Time
	lastHit    time.Time

	handles []sched.Handle
}

func NewController(owner Actor, scheduler *sched.Scheduler, cfg Config, log *zap.Logger) *Controller {
	if cfg.FollowInterval <= 0 {
		cfg.FollowInterval = 400 * time.Millisecond
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Second
	}
	if cfg.ForgetAfter <= 0 {
		cfg.ForgetAfter = 7 * time.Second
	}
	return &Controller{
		owner:     owner,
		scheduler: scheduler,
		behavior:  DefaultBehavior{},
		cfg:       cfg,
		log:       log,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
		attackers: make(map[int32]Actor),
	}
}

// Bind attaches the controller to the world and broadcaster. Until bound,
// the controller cannot act.
func (c *Controller) Bind(w World, b Broadcaster) {
	c.world = w
	c.bcast = b
}

// SetBehavior installs a behavior strategy. Nil restores the default.
func (c *Controller) SetBehavior(b Behavior) {
	if b == nil {
		b = DefaultBehavior{}
	}
	c.behavior = b
}

// SetClock overrides the wall clock. Test helper.
func (c *Controller) SetClock(now func() time.Time) { c.now = now }

func (c *Controller) Engaged() bool { return c.engaged }
func (c *Controller) Target() Actor { return c.target }

// Attackers returns a snapshot of the current attacker set.
func (c *Controller) Attackers() []Actor {
	out := make([]Actor, 0, len(c.attackers))
	for _, a := range c.attackers {
		out = append(out, a)
	}
	return out
}

// SetTarget points the controller at a target without engaging.
func (c *Controller) SetTarget(t Actor) { c.target = t }

// ClearTargetIf drops the target when it matches the given instance.
func (c *Controller) ClearTargetIf(instance int32) {
	if c.target != nil && c.target.Instance() == instance {
		c.target = nil
	}
}

// Begin records an attacker and engages. This is the entry point the
// registry calls when the owner takes damage.
func (c *Controller) Begin(attacker Actor) {
	if c.destroyed || c.world == nil || c.owner.IsDead() {
		return
	}
	c.AddAttacker(attacker)
	if c.target == nil {
		c.target = attacker
	}
	c.Start()
	c.behavior.OnEngage(c, attacker)
}

// Start arms the three combat loops. Idempotent while engaged.
func (c *Controller) Start() {
	if c.engaged || c.destroyed || c.world == nil {
		return
	}
	c.engaged = true
	c.lastAction = c.now()
	owner := c.owner.Instance()
	c.handles = []sched.Handle{
		c.scheduler.Every(owner, c.owner.AttackRate(), c.attackLoop),
		c.scheduler.Every(owner, c.cfg.FollowInterval, c.followLoop),
		c.scheduler.Every(owner, c.cfg.CheckInterval, c.checkLoop),
	}
}

// Stop disengages: cancels all three loop timers and abandons queued hits.
// The attacker set and target survive; Forget clears those.
func (c *Controller) Stop() {
	if !c.engaged {
		return
	}
	c.engaged = false
	for _, h := range c.handles {
		c.scheduler.Cancel(h)
	}
	c.handles = nil
	c.queue.clear()
}

// Forget clears the attacker set and target.
func (c *Controller) Forget() {
	c.attackers = make(map[int32]Actor)
	c.target = nil
}

// Destroy stops the controller permanently. Loop bodies already scheduled
// this tick see destroyed and bail.
func (c *Controller) Destroy() {
	c.Stop()
	c.destroyed = true
	c.scheduler.CancelOwner(c.owner.Instance())
}

// AddAttacker records an attacker.
func (c *Controller) AddAttacker(a Actor) {
	if a == nil {
		return
	}
	c.attackers[a.Instance()] = a
}

// RemoveAttacker drops an attacker. A mob whose attacker set empties
// returns to its spawn point.
func (c *Controller) RemoveAttacker(a Actor) {
	if a == nil {
		return
	}
	delete(c.attackers, a.Instance())
	if len(c.attackers) == 0 && !c.owner.IsPlayer() && c.world != nil {
		c.world.ReturnToSpawn(c.owner)
	}
}

// HasAttacker reports whether the given instance is in the attacker set.
func (c *Controller) HasAttacker(instance int32) bool {
	_, ok := c.attackers[instance]
	return ok
}

// InProximity reports whether the owner can reach target with its weapon.
// Ranged characters use Chebyshev distance against their attack range;
// melee requires strict 4-directional adjacency, so diagonal does not count.
func (c *Controller) InProximity(target Actor) bool {
	if target == nil {
		return false
	}
	ox, oy := c.owner.Position()
	tx, ty := target.Position()
	dx, dy := abs32(ox-tx), abs32(oy-ty)
	if c.owner.AttackRange() > 1 {
		return max32(dx, dy) <= c.owner.AttackRange()
	}
	return (dx == 1 && dy == 0) || (dx == 0 && dy == 1)
}

// CanHit reports whether enough of the attack interval has elapsed since
// the last delivered hit.
func (c *Controller) CanHit() bool {
	return c.now().Sub(c.lastHit) >= c.owner.AttackRate()-hitTolerance
}

// IsRetaliating reports whether the owner is eligible to auto-engage an
// attacker that hits it. The caller of the damage path checks this; the
// controller itself never auto-engages.
func (c *Controller) IsRetaliating() bool {
	return c.owner.IsPlayer() &&
		c.owner.Retaliate() &&
		c.target == nil &&
		!c.owner.IsMoving() &&
		c.now().Sub(c.lastAction) > retaliateIdle
}

// OnHurt stamps activity and runs the behavior hook. Called by the registry
// after damage lands on the owner.
func (c *Controller) OnHurt(attacker Actor, damage int32) {
	if c.destroyed {
		return
	}
	c.behavior.OnHurt(c, attacker, damage)
}

// OnDeath runs the behavior death hook.
func (c *Controller) OnDeath(killer Actor) {
	if c.destroyed {
		return
	}
	c.behavior.OnDeath(c, killer)
}

func (c *Controller) attackLoop() {
	if c.destroyed || c.world == nil || c.owner.IsDead() || c.owner.IsStunned() {
		return
	}
	if c.target == nil {
		// Pending hits are not carried across disengagement.
		c.queue.clear()
		return
	}
	if c.InProximity(c.target) && !c.target.IsDead() {
		c.queue.push(Hit{Target: c.target})
	}
	if c.queue.len() > 0 {
		if h, ok := c.queue.pop(); ok {
			c.deliver(h)
		}
		c.lastAction = c.now()
	}
}

func (c *Controller) followLoop() {
	if c.destroyed || c.world == nil || c.owner.IsDead() || c.owner.IsStunned() || c.owner.IsFrozen() {
		return
	}
	if c.target == nil || c.target.IsDead() {
		return
	}

	if c.owner.IsPlayer() {
		// Player movement is client-driven; following only broadcasts a
		// hint, and only against player targets.
		if c.target.IsPlayer() {
			c.broadcastFollow()
			c.lastAction = c.now()
		}
		return
	}

	// Ranged mobs hold position and never re-path.
	if c.owner.AttackRange() > 1 {
		return
	}

	ox, oy := c.owner.Position()
	tx, ty := c.target.Position()
	if ox == tx && oy == ty {
		c.sidestep(ox, oy)
		c.lastAction = c.now()
		return
	}
	if !c.InProximity(c.target) {
		// Path back toward whoever is actually hitting us.
		if closest := c.closestAttacker(); closest != nil {
			c.target = closest
		}
	}
	c.broadcastFollow()
	c.lastAction = c.now()
}

func (c *Controller) checkLoop() {
	if c.destroyed || c.world == nil {
		return
	}
	if c.now().Sub(c.lastAction) > c.cfg.ForgetAfter {
		c.Stop()
		c.Forget()
	}
}

// deliver applies one hit, gated by CanHit. Ranged attacks become a
// projectile; damage lands when the impact report arrives. Melee damage is
// applied immediately.
func (c *Controller) deliver(h Hit) {
	if h.Target == nil || h.Target.IsDead() || !c.CanHit() {
		return
	}
	c.lastHit = c.now()

	dmg := c.world.RollDamage(c.owner, h.Target, h.IsAoE)
	if c.owner.AttackRange() > 1 && !h.IsAoE {
		projID := c.world.SpawnProjectile(c.owner, h.Target, dmg)
		if key, ok := c.owner.RegionKey(); ok {
			c.bcast.PushToAdjacent(key, net.Message{
				Kind: net.KindProjectile,
				Data: ProjectilePayload{
					Projectile: projID,
					Attacker:   c.owner.Instance(),
					Target:     h.Target.Instance(),
				},
			}, 0)
		}
		return
	}

	c.world.HandleDamage(c.owner, h.Target, dmg)
	if key, ok := c.owner.RegionKey(); ok {
		c.bcast.PushToAdjacent(key, net.Message{
			Kind: net.KindCombat,
			Data: HitPayload{
				Attacker:  c.owner.Instance(),
				Target:    h.Target.Instance(),
				Damage:    dmg,
				IsAoE:     h.IsAoE,
				HasTerror: h.HasTerror,
			},
		}, 0)
	}
}

// DealAoE hits every actor within radius tiles of the owner in one pass,
// bypassing the hit queue and the CanHit gate.
func (c *Controller) DealAoE(radius int32, hasTerror bool) {
	if c.destroyed || c.world == nil || c.owner.IsDead() {
		return
	}
	ox, oy := c.owner.Position()
	for _, a := range c.world.ActorsNear(ox, oy, radius, c.owner.Instance()) {
		if a.IsDead() {
			continue
		}
		dmg := c.world.RollDamage(c.owner, a, true)
		c.world.HandleDamage(c.owner, a, dmg)
		if key, ok := c.owner.RegionKey(); ok {
			c.bcast.PushToAdjacent(key, net.Message{
				Kind: net.KindCombat,
				Data: HitPayload{
					Attacker:  c.owner.Instance(),
					Target:    a.Instance(),
					Damage:    dmg,
					IsAoE:     true,
					HasTerror: hasTerror,
				},
			}, 0)
		}
	}
	c.lastAction = c.now()
}

func (c *Controller) broadcastFollow() {
	key, ok := c.owner.RegionKey()
	if !ok {
		return
	}
	c.bcast.PushToAdjacent(key, net.Message{
		Kind: net.KindMovement,
		Data: FollowPayload{Entity: c.owner.Instance(), Target: c.target.Instance()},
	}, 0)
}

// sidestep moves the owner off a shared tile to a random 4-adjacent one.
func (c *Controller) sidestep(x, y int32) {
	steps := [4][2]int32{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	s := steps[c.rng.Intn(4)]
	c.world.MoveTo(c.owner, x+s[0], y+s[1])
}

func (c *Controller) closestAttacker() Actor {
	ox, oy := c.owner.Position()
	var best Actor
	bestDist := int32(1<<31 - 1)
	for _, a := range c.attackers {
		if a.IsDead() {
			continue
		}
		ax, ay := a.Position()
		d := max32(abs32(ox-ax), abs32(oy-ay))
		if d < bestDist {
			bestDist = d
			best = a
		}
	}
	return best
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
