package system

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/core/sched"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/region"
	"github.com/tilerealm/server/internal/world"
)

const wanderMobsYAML = `mobs:
  - mob_id: 1
    name: snail
    level: 1
    hp: 10
    weapon: 1
    move_speed: 4000
  - mob_id: 2
    name: rat
    level: 1
    hp: 10
    weapon: 1
    move_speed: 100
`

const wanderItemsYAML = `items:
  - item_id: 100
    name: gold
    kind: gold
`

const wanderDropsYAML = `drops: []
`

// zeroSource makes every chance roll pass and every step point east.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

func newWanderRegistry(t *testing.T) *world.Registry {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	mobs, err := data.LoadMobTable(write("mobs.yaml", wanderMobsYAML))
	require.NoError(t, err)
	items, err := data.LoadItemTable(write("items.yaml", wanderItemsYAML))
	require.NoError(t, err)
	drops, err := data.LoadDropTable(write("drops.yaml", wanderDropsYAML))
	require.NoError(t, err)

	log := zap.NewNop()
	bridge := net.NewBridge(log)
	mapGrid := data.NewMapGrid(100, 100)
	regions := region.NewManager(region.NewPartition(10, 10, 100, 100), mapGrid, bridge, log)
	return world.NewRegistry(world.NewSpatialGrid(), regions, bridge,
		sched.New(50*time.Millisecond), event.NewBus(), mapGrid, mobs, items, drops,
		world.Config{}, log)
}

func TestWanderPacedByTemplateMoveSpeed(t *testing.T) {
	registry := newWanderRegistry(t)
	snail := registry.SpawnMob(1, 20, 20)
	rat := registry.SpawnMob(2, 20, 40)
	require.NotNil(t, snail)
	require.NotNil(t, rat)

	s := NewWanderSystem(registry)
	s.SetRandSource(zeroSource{})

	for i := 0; i < 120; i++ {
		s.Update(50 * time.Millisecond)
	}

	// Rolls land on ticks 40, 80 and 120. The 4s-per-tile snail skips the
	// middle one (only 2s since its last step); the 100ms rat takes all
	// three.
	sx, _ := snail.Position()
	rx, _ := rat.Position()
	assert.Equal(t, int32(22), sx)
	assert.Equal(t, int32(23), rx)
}
