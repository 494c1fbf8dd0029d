package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/net"
)

type testEntity struct {
	id     int32
	player bool
	x, y   int32

	key    Key
	placed bool
	recent []Key
	owner  int32
}

func (e *testEntity) Instance() int32            { return e.id }
func (e *testEntity) IsPlayer() bool             { return e.player }
func (e *testEntity) Position() (int32, int32)   { return e.x, e.y }
func (e *testEntity) RegionKey() (Key, bool)     { return e.key, e.placed }
func (e *testEntity) SetRegionKey(k Key)         { e.key, e.placed = k, true }
func (e *testEntity) ClearRegion()               { e.key, e.placed = Key{}, false }
func (e *testEntity) RecentRegions() []Key       { return e.recent }
func (e *testEntity) SetRecentRegions(r []Key)   { e.recent = r }
func (e *testEntity) InstanceOwner() int32       { return e.owner }
func (e *testEntity) SetInstanceOwner(o int32)   { e.owner = o }
func (e *testEntity) SpawnData() any             { return e.id }

type captureConn struct {
	msgs []net.Message
}

func (c *captureConn) Send(m net.Message) error {
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *captureConn) Close() error { return nil }

func (c *captureConn) countKind(k net.Kind) int {
	n := 0
	for _, m := range c.msgs {
		if m.Kind == k {
			n++
		}
	}
	return n
}

func newTestManager() (*Manager, *net.Bridge) {
	bridge := net.NewBridge(zap.NewNop())
	part := NewPartition(10, 10, 100, 100)
	grid := data.NewMapGrid(100, 100)
	return NewManager(part, grid, bridge, zap.NewNop()), bridge
}

// regionsContaining returns every region key whose entity set holds the id.
func regionsContaining(m *Manager, instance int32) []Key {
	var out []Key
	for key, r := range m.regions {
		if _, ok := r.entities[instance]; ok {
			out = append(out, key)
		}
	}
	return out
}

func TestHandlePlacesEntityInAdjacencyBlock(t *testing.T) {
	m, _ := newTestManager()
	e := &testEntity{id: 1, x: 55, y: 55}

	m.Handle(e)

	key, placed := e.RegionKey()
	require.True(t, placed)
	assert.Equal(t, ID{X: 5, Y: 5}, key.Region)
	assert.Len(t, regionsContaining(m, 1), 9)
}

func TestHandleSameRegionIsIdempotent(t *testing.T) {
	m, _ := newTestManager()
	e := &testEntity{id: 1, x: 55, y: 55}

	m.Handle(e)
	e.x, e.y = 56, 56 // same region
	m.Handle(e)
	m.Handle(e)

	assert.Len(t, regionsContaining(m, 1), 9)
	assert.Empty(t, e.RecentRegions())
}

// Membership invariant: the entity appears in exactly the adjacency-set
// regions of its current region, at every step of a movement sequence.
func TestMembershipInvariantAcrossMovement(t *testing.T) {
	m, _ := newTestManager()
	e := &testEntity{id: 1, x: 5, y: 5}

	path := [][2]int32{{5, 5}, {15, 5}, {55, 55}, {95, 95}, {0, 0}}
	for _, pos := range path {
		e.x, e.y = pos[0], pos[1]
		m.Handle(e)

		key, placed := e.RegionKey()
		require.True(t, placed)
		want := make(map[Key]bool)
		m.part.ForEachAdjacent(key.Region, func(id ID) {
			want[Key{Region: id}] = true
		})
		got := regionsContaining(m, 1)
		assert.Len(t, got, len(want))
		for _, k := range got {
			assert.True(t, want[k], "unexpected membership in %v at %v", k, pos)
		}
	}
}

func TestRecentRegionsAreVacatedMinusRetained(t *testing.T) {
	m, _ := newTestManager()
	e := &testEntity{id: 1, x: 55, y: 55} // region (5,5)

	m.Handle(e)
	e.x = 65 // region (6,5), one column to the right
	m.Handle(e)

	// Old block covered columns 4-6, new covers 5-7: column 4 is vacated.
	recent := e.RecentRegions()
	assert.Len(t, recent, 3)
	for _, k := range recent {
		assert.Equal(t, int32(4), k.Region.X)
	}
}

func TestRemoveClearsAllMembership(t *testing.T) {
	m, _ := newTestManager()
	e := &testEntity{id: 1, player: true, x: 55, y: 55}

	m.Handle(e)
	m.RemovePlayer(e)

	assert.Empty(t, regionsContaining(m, 1))
	_, placed := e.RegionKey()
	assert.False(t, placed)

	// Pending incoming references are dropped too.
	for _, r := range m.regions {
		for _, inc := range r.incoming {
			assert.NotEqual(t, int32(1), inc.Instance())
		}
	}
}

func TestRemoveAfterDoubleCrossingLeavesNoIncoming(t *testing.T) {
	m, bridge := newTestManager()

	observer := &testEntity{id: 2, player: true, x: 55, y: 55}
	observerConn := &captureConn{}
	bridge.Register(2, observerConn)
	m.Handle(observer)
	m.FlushIncoming()
	bridge.Flush()
	observerConn.msgs = nil

	// A player crossing two region boundaries in one tick queues two
	// incoming entries in the regions both adjacency sets share; a
	// disconnect before the flush must scrub every one of them.
	mover := &testEntity{id: 1, player: true, x: 49, y: 55}
	m.Handle(mover)
	mover.x = 55
	m.Handle(mover)
	mover.x = 65
	m.Handle(mover)
	m.RemovePlayer(mover)

	for _, r := range m.regions {
		for _, inc := range r.incoming {
			assert.NotEqual(t, int32(1), inc.Instance())
		}
	}

	m.FlushIncoming()
	bridge.Flush()
	assert.Equal(t, 0, observerConn.countKind(net.KindSpawn))
}

func TestFlushIncomingSkipsSelfAndCoalesces(t *testing.T) {
	m, bridge := newTestManager()

	mover := &testEntity{id: 1, player: true, x: 55, y: 55}
	observer := &testEntity{id: 2, player: true, x: 52, y: 52}
	moverConn := &captureConn{}
	observerConn := &captureConn{}
	bridge.Register(1, moverConn)
	bridge.Register(2, observerConn)

	m.Handle(observer)
	m.FlushIncoming()
	bridge.Flush()
	observerConn.msgs = nil
	moverConn.msgs = nil

	m.Handle(mover)
	m.FlushIncoming()
	bridge.Flush()

	// The observer sees exactly one spawn despite overlapping adjacency;
	// the mover never receives its own spawn.
	assert.Equal(t, 1, observerConn.countKind(net.KindSpawn))
	assert.Equal(t, 0, moverConn.countKind(net.KindSpawn))
}

func TestPushToAdjacentReachesEachPlayerOnce(t *testing.T) {
	m, bridge := newTestManager()

	a := &testEntity{id: 1, player: true, x: 55, y: 55}
	b := &testEntity{id: 2, player: true, x: 45, y: 45}
	connA := &captureConn{}
	connB := &captureConn{}
	bridge.Register(1, connA)
	bridge.Register(2, connB)
	m.Handle(a)
	m.Handle(b)

	key, _ := a.RegionKey()
	m.PushToAdjacent(key, net.Message{Kind: net.KindCombat}, 1)
	bridge.Flush()

	assert.Equal(t, 1, connB.countKind(net.KindCombat))
	assert.Equal(t, 0, connA.countKind(net.KindCombat))
}

func TestEntityListExcludesSelf(t *testing.T) {
	m, _ := newTestManager()

	p := &testEntity{id: 1, player: true, x: 55, y: 55}
	other := &testEntity{id: 2, x: 56, y: 55}
	m.Handle(p)
	m.Handle(other)

	ids := m.EntityList(p)
	assert.Equal(t, []int32{2}, ids)
}

func TestInstancingRedirectsLookups(t *testing.T) {
	m, _ := newTestManager()

	p := &testEntity{id: 1, player: true, x: 55, y: 55}
	shared := &testEntity{id: 2, x: 55, y: 56}
	m.Handle(p)
	m.Handle(shared)

	m.CreateInstance(p)
	key, placed := p.RegionKey()
	require.True(t, placed)
	assert.Equal(t, int32(1), key.Owner)
	assert.Equal(t, int32(1), p.InstanceOwner())

	// The shared entity is invisible from inside the instance.
	assert.Empty(t, m.EntityList(p))

	// A mob spawned for the instance lands in the owner-keyed records.
	boss := &testEntity{id: 3, x: 55, y: 54, owner: 1}
	m.Handle(boss)
	assert.Equal(t, []int32{3}, m.EntityList(p))

	orphans := m.DeleteInstance(p)
	require.Len(t, orphans, 1)
	assert.Equal(t, int32(3), orphans[0].Instance())

	// Back on the shared grid with the shared entity visible again.
	key, _ = p.RegionKey()
	assert.Equal(t, int32(0), key.Owner)
	assert.Equal(t, []int32{2}, m.EntityList(p))

	// No instanced records survive.
	for k := range m.regions {
		assert.Equal(t, int32(0), k.Owner)
	}
}

func TestSendRegionSendsEachRegionOnce(t *testing.T) {
	m, bridge := newTestManager()
	m.grid.SetCollision(51, 51)
	m.grid.SetCollision(41, 41)

	p := &testEntity{id: 1, player: true, x: 55, y: 55}
	conn := &captureConn{}
	bridge.Register(1, conn)
	m.Handle(p)

	key, _ := p.RegionKey()
	m.SendRegion(p, key)
	bridge.Flush()
	first := conn.countKind(net.KindRegion)
	assert.Greater(t, first, 0)

	// Re-sending the same block adds nothing.
	conn.msgs = nil
	m.SendRegion(p, key)
	bridge.Flush()
	assert.Equal(t, 0, conn.countKind(net.KindRegion))
}
