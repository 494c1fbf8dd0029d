package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMobListYAML = `mobs:
  - mob_id: 1
    name: rat
    hp: 10
    weapon: 2
  - mob_id: 2
    name: archer
    level: 3
    hp: 40
    weapon: 5
    attack_range: 4
    atk_speed: 1500
`

func TestLoadMobTableAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testMobListYAML), 0o644))

	table, err := LoadMobTable(path)
	require.NoError(t, err)
	require.Equal(t, 2, table.Count())

	// Omitted fields fall back to sane values; a zero level would break the
	// gold-count roll downstream.
	rat := table.Get(1)
	require.NotNil(t, rat)
	assert.Equal(t, int32(1), rat.Level)
	assert.Equal(t, int32(1), rat.AttackRange)
	assert.Equal(t, 2*time.Second, rat.AttackInterval())

	archer := table.Get(2)
	require.NotNil(t, archer)
	assert.Equal(t, int32(3), archer.Level)
	assert.Equal(t, int32(4), archer.AttackRange)
	assert.Equal(t, 1500*time.Millisecond, archer.AttackInterval())
}
