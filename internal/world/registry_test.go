package world

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/core/sched"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/region"
)

const testMobsYAML = `mobs:
  - mob_id: 1
    name: rat
    level: 1
    hp: 10
    armor: 0
    weapon: 3
    attack_range: 1
    atk_speed: 1000
    exp: 10
  - mob_id: 2
    name: archer
    level: 2
    hp: 40
    armor: 0
    weapon: 5
    attack_range: 4
    atk_speed: 1000
    exp: 20
`

const testItemsYAML = `items:
  - item_id: 100
    name: gold
    kind: gold
    stack: true
  - item_id: 101
    name: sword
    kind: weapon
    attack: 7
  - item_id: 102
    name: flask
    kind: consumable
    heal: 30
`

const testDropsYAML = `drops:
  - mob_id: 1
    items:
      - item_id: 100
        weight: 1000
`

type testConn struct {
	msgs []net.Message
}

func (c *testConn) Send(m net.Message) error {
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *testConn) Close() error { return nil }

func (c *testConn) countKind(k net.Kind) int {
	n := 0
	for _, m := range c.msgs {
		if m.Kind == k {
			n++
		}
	}
	return n
}

type testWorld struct {
	registry  *Registry
	regions   *region.Manager
	bridge    *net.Bridge
	scheduler *sched.Scheduler
}

func newTestWorld(t *testing.T) *testWorld {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mobs.yaml"), testMobsYAML)
	writeFile(t, filepath.Join(dir, "items.yaml"), testItemsYAML)
	writeFile(t, filepath.Join(dir, "drops.yaml"), testDropsYAML)

	mobs, err := data.LoadMobTable(filepath.Join(dir, "mobs.yaml"))
	require.NoError(t, err)
	items, err := data.LoadItemTable(filepath.Join(dir, "items.yaml"))
	require.NoError(t, err)
	drops, err := data.LoadDropTable(filepath.Join(dir, "drops.yaml"))
	require.NoError(t, err)

	log := zap.NewNop()
	bridge := net.NewBridge(log)
	part := region.NewPartition(10, 10, 100, 100)
	mapGrid := data.NewMapGrid(100, 100)
	regions := region.NewManager(part, mapGrid, bridge, log)
	scheduler := sched.New(50 * time.Millisecond)
	bus := event.NewBus()

	registry := NewRegistry(NewSpatialGrid(), regions, bridge, scheduler, bus,
		mapGrid, mobs, items, drops, Config{
			Combat: combat.Config{
				FollowInterval: 400 * time.Millisecond,
				CheckInterval:  time.Second,
				ForgetAfter:    7 * time.Second,
			},
		}, log)

	return &testWorld{registry: registry, regions: regions, bridge: bridge, scheduler: scheduler}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (w *testWorld) addPlayer(t *testing.T, x, y int32) (*Player, *testConn) {
	t.Helper()
	p := NewPlayer("tester", 1, 100, 10, 0, x, y)
	conn := &testConn{}
	w.bridge.Register(p.Instance(), conn)
	w.registry.AddEntity(p)
	conn.msgs = nil
	return p, conn
}

func TestAddEntityRejectsDuplicateInstance(t *testing.T) {
	w := newTestWorld(t)
	m := w.registry.SpawnMob(1, 20, 20)
	require.NotNil(t, m)

	before := w.registry.Count(TypeMob)
	w.registry.AddEntity(m)
	assert.Equal(t, before, w.registry.Count(TypeMob))
}

func TestHandleDamageGuards(t *testing.T) {
	w := newTestWorld(t)
	p, _ := w.addPlayer(t, 20, 21)
	m := w.registry.SpawnMob(1, 20, 20)

	w.registry.HandleDamage(nil, m, 5)
	assert.Equal(t, int32(10), m.HP())

	w.registry.HandleDamage(p, nil, 5)
	assert.Equal(t, int32(10), m.HP())

	w.registry.HandleDamage(p, m, 0)
	assert.Equal(t, int32(10), m.HP())

	m.SetInvincible(true)
	w.registry.HandleDamage(p, m, 5)
	assert.Equal(t, int32(10), m.HP())
}

func TestHandleDamageEngagesMobAndBroadcastsPoints(t *testing.T) {
	w := newTestWorld(t)
	p, conn := w.addPlayer(t, 20, 21)
	m := w.registry.SpawnMob(1, 20, 20)

	w.registry.HandleDamage(p, m, 4)
	w.bridge.Flush()

	assert.Equal(t, int32(6), m.HP())
	assert.True(t, m.Combat().Engaged())
	assert.True(t, m.Combat().HasAttacker(p.Instance()))
	assert.Equal(t, p.Instance(), m.Combat().Target().Instance())
	assert.Equal(t, 1, conn.countKind(net.KindPoints))
}

func TestPlayerOnlyRetaliatesWhenEnabled(t *testing.T) {
	w := newTestWorld(t)
	p, _ := w.addPlayer(t, 20, 21)
	m := w.registry.SpawnMob(1, 20, 20)

	w.registry.HandleDamage(m, p, 3)
	assert.False(t, p.Combat().Engaged())
	assert.True(t, p.Combat().HasAttacker(m.Instance()))

	p.SetRetaliate(true)
	w.registry.HandleDamage(m, p, 3)
	assert.True(t, p.Combat().Engaged())
	assert.Equal(t, m.Instance(), p.Combat().Target().Instance())
}

func TestDeathRemovesMobDropsLootAndAwardsExp(t *testing.T) {
	w := newTestWorld(t)
	p, conn := w.addPlayer(t, 20, 21)
	m := w.registry.SpawnMob(1, 20, 20)

	w.registry.HandleDamage(p, m, 10)
	w.bridge.Flush()

	_, alive := w.registry.Get(m.Instance())
	assert.False(t, alive)
	assert.Nil(t, p.Combat().Target())
	assert.Equal(t, int64(10), p.Exp())
	assert.GreaterOrEqual(t, conn.countKind(net.KindDespawn), 1)
	assert.GreaterOrEqual(t, conn.countKind(net.KindCombat), 1)

	// Mob 1 always drops gold; the count is bounded by level*5.
	require.Equal(t, 1, w.registry.Count(TypeItem))
	w.registry.ForEach(TypeItem, func(e Entity) {
		it := e.(*Item)
		assert.Equal(t, int32(100), it.Template())
		assert.GreaterOrEqual(t, it.Count(), int32(1))
		assert.LessOrEqual(t, it.Count(), m.Level()*5)
		x, y := it.Position()
		assert.Equal(t, int32(20), x)
		assert.Equal(t, int32(20), y)
	})
}

func TestKillSuppressesDrops(t *testing.T) {
	w := newTestWorld(t)
	m := w.registry.SpawnMob(1, 20, 20)

	w.registry.Kill(m)

	_, alive := w.registry.Get(m.Instance())
	assert.False(t, alive)
	assert.Equal(t, 0, w.registry.Count(TypeItem))
}

func TestPlayerDeathKeepsRegistration(t *testing.T) {
	w := newTestWorld(t)
	p, _ := w.addPlayer(t, 20, 21)
	m := w.registry.SpawnMob(1, 20, 20)

	w.registry.HandleDamage(m, p, 100)

	assert.True(t, p.IsDead())
	_, registered := w.registry.Get(p.Instance())
	assert.True(t, registered)

	p.Respawn()
	assert.False(t, p.IsDead())
	assert.Equal(t, p.MaxHP(), p.HP())
}

func TestMobReturnsToSpawnWhenAttackersEmpty(t *testing.T) {
	w := newTestWorld(t)
	p, _ := w.addPlayer(t, 20, 21)
	m := w.registry.SpawnMob(1, 20, 20)
	m.SetLeash(10, 0)

	w.registry.HandleDamage(p, m, 2)
	w.registry.MoveTo(m, 24, 20)

	m.Combat().RemoveAttacker(p)
	x, y := m.Position()
	assert.Equal(t, int32(20), x)
	assert.Equal(t, int32(20), y)
	assert.False(t, m.Combat().Engaged())
}

func TestLeashForcesReturnOnPositionUpdate(t *testing.T) {
	w := newTestWorld(t)
	m := w.registry.SpawnMob(1, 20, 20)
	m.SetLeash(3, 0)

	w.registry.MoveTo(m, 24, 20)

	x, y := m.Position()
	assert.Equal(t, int32(20), x)
	assert.Equal(t, int32(20), y)
}

func TestMoveToRejectsCollisions(t *testing.T) {
	w := newTestWorld(t)
	m := w.registry.SpawnMob(1, 20, 20)

	w.registry.MoveTo(m, -1, 20)
	x, y := m.Position()
	assert.Equal(t, int32(20), x)
	assert.Equal(t, int32(20), y)
}

func TestProjectileImpactAppliesDeferredDamage(t *testing.T) {
	w := newTestWorld(t)
	p, _ := w.addPlayer(t, 20, 24)
	m := w.registry.SpawnMob(2, 20, 20) // ranged template

	proj := w.registry.SpawnProjectile(m, p, 7)
	require.NotZero(t, proj)
	assert.Equal(t, int32(100), p.HP())

	w.registry.OnProjectileImpact(proj)
	assert.Equal(t, int32(93), p.HP())

	_, alive := w.registry.Get(proj)
	assert.False(t, alive)

	// A second impact report for the same projectile does nothing.
	w.registry.OnProjectileImpact(proj)
	assert.Equal(t, int32(93), p.HP())
}

func TestDroppedItemBlinksThenDespawns(t *testing.T) {
	w := newTestWorld(t)
	p, conn := w.addPlayer(t, 20, 21)
	_ = p

	it := w.registry.DropItem(101, 1, 20, 20)
	w.regions.FlushIncoming()
	w.bridge.Flush()
	conn.msgs = nil

	// Blink fires at 10s, despawn at 12s (tick = 50ms).
	for i := 0; i < 200; i++ {
		w.scheduler.Advance()
	}
	w.bridge.Flush()
	assert.Equal(t, 1, conn.countKind(net.KindBlink))
	_, alive := w.registry.Get(it.Instance())
	assert.True(t, alive)

	for i := 0; i < 40; i++ {
		w.scheduler.Advance()
	}
	w.bridge.Flush()
	assert.Equal(t, 1, conn.countKind(net.KindDespawn))
	_, alive = w.registry.Get(it.Instance())
	assert.False(t, alive)
}

func TestCollectItemCancelsDespawnTimers(t *testing.T) {
	w := newTestWorld(t)
	p, _ := w.addPlayer(t, 20, 21)

	it := w.registry.DropItem(100, 25, 20, 20)
	require.True(t, w.registry.CollectItem(p, it.Instance()))
	assert.Equal(t, int64(25), p.Gold())

	// Timers are gone with the item; advancing past despawn must not panic
	// or double-remove.
	for i := 0; i < 300; i++ {
		w.scheduler.Advance()
	}
	assert.Equal(t, 0, w.registry.Count(TypeItem))
}

func TestEndToEndMeleeKill(t *testing.T) {
	w := newTestWorld(t)
	p, conn := w.addPlayer(t, 20, 21)
	m := w.registry.SpawnMob(1, 20, 20)

	c := p.Combat()
	c.SetTarget(m)
	c.Start()
	require.True(t, c.Engaged())

	// Attack loop period is 1s = 20 ticks; the first swing kills a 10hp
	// mob (player weapon 10 beats armor 0).
	for i := 0; i < 20; i++ {
		w.scheduler.Advance()
	}
	w.bridge.Flush()

	_, alive := w.registry.Get(m.Instance())
	assert.False(t, alive)
	assert.GreaterOrEqual(t, conn.countKind(net.KindCombat), 1)
	assert.GreaterOrEqual(t, conn.countKind(net.KindDespawn), 1)
	assert.Equal(t, 1, w.registry.Count(TypeItem))
}

func TestGoldRollToleratesZeroLevel(t *testing.T) {
	w := newTestWorld(t)

	// A mob built straight from a template bypasses the loader's level
	// default; the gold roll must clamp instead of panicking mid-tick.
	m := NewMob(&data.MobTemplate{MobID: 1, Name: "husk", HP: 5, AttackRange: 1}, 20, 20)
	require.NotPanics(t, func() { w.registry.rollDrop(m, 20, 20) })

	require.Equal(t, 1, w.registry.Count(TypeItem))
	w.registry.ForEach(TypeItem, func(e Entity) {
		assert.Equal(t, int32(1), e.(*Item).Count())
	})
}

func TestCollectHealingItemRestoresHP(t *testing.T) {
	w := newTestWorld(t)
	p, conn := w.addPlayer(t, 20, 21)
	p.ApplyDamage(50)

	it := w.registry.DropItem(102, 1, 20, 20)
	require.True(t, w.registry.CollectItem(p, it.Instance()))
	assert.Equal(t, int32(80), p.HP())

	w.bridge.Flush()
	assert.GreaterOrEqual(t, conn.countKind(net.KindPoints), 1)
}

func TestRestunExtendsInsteadOfDoubleFiring(t *testing.T) {
	w := newTestWorld(t)
	p, _ := w.addPlayer(t, 20, 20)

	w.registry.Stun(p, 500*time.Millisecond)
	assert.True(t, p.IsStunned())

	// Re-stun halfway through. The original expiry at tick 10 must not
	// fire; only the new one at tick 15 does.
	for i := 0; i < 5; i++ {
		w.scheduler.Advance()
	}
	w.registry.Stun(p, 500*time.Millisecond)

	for i := 0; i < 9; i++ {
		w.scheduler.Advance()
	}
	assert.True(t, p.IsStunned())

	w.scheduler.Advance()
	assert.False(t, p.IsStunned())
}
