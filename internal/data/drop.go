package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DropEntry is one possible drop from a mob. Weight is parts-per-1000; the
// unallocated remainder of the table means no drop.
type DropEntry struct {
	ItemID int32 `yaml:"item_id"`
	Weight int   `yaml:"weight"`
}

type mobDropEntry struct {
	MobID int32       `yaml:"mob_id"`
	Items []DropEntry `yaml:"items"`
}

type dropListFile struct {
	Drops []mobDropEntry `yaml:"drops"`
}

// DropTable holds all mob drop data indexed by mob template ID.
type DropTable struct {
	drops map[int32][]DropEntry
}

// Get returns the drop list for a mob, or nil if none defined.
func (t *DropTable) Get(mobID int32) []DropEntry {
	return t.drops[mobID]
}

// Count returns the number of mobs with drop entries.
func (t *DropTable) Count() int {
	return len(t.drops)
}

// LoadDropTable loads mob drop data from a YAML file.
func LoadDropTable(path string) (*DropTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read drop_list: %w", err)
	}
	var f dropListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse drop_list: %w", err)
	}
	t := &DropTable{drops: make(map[int32][]DropEntry, len(f.Drops))}
	for _, entry := range f.Drops {
		t.drops[entry.MobID] = entry.Items
	}
	return t, nil
}

// RollDrop selects an entry by walking the table in order and accumulating
// weight. Each entry owns the half-open range [cum, cum+weight); draw is a
// uniform integer in [0,1000). A draw landing past the last allocated range
// means no drop.
func RollDrop(entries []DropEntry, draw int) (DropEntry, bool) {
	cum := 0
	for _, e := range entries {
		if draw >= cum && draw < cum+e.Weight {
			return e, true
		}
		cum += e.Weight
	}
	return DropEntry{}, false
}
