package data

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MobTemplate holds static data for a mob species loaded from YAML. Speeds
// are milliseconds.
type MobTemplate struct {
	MobID       int32  `yaml:"mob_id"`
	Name        string `yaml:"name"`
	Level       int32  `yaml:"level"`
	HP          int32  `yaml:"hp"`
	Armor       int32  `yaml:"armor"`
	Weapon      int32  `yaml:"weapon"`
	AttackRange int32  `yaml:"attack_range"` // 1 = melee, >1 = ranged
	AtkSpeed    int    `yaml:"atk_speed"`    // attack interval, ms
	MoveSpeed   int    `yaml:"move_speed"`   // per-tile step time, ms
	Aggressive  bool   `yaml:"aggressive"`
	Exp         int32  `yaml:"exp"`
	Behavior    string `yaml:"behavior"` // Lua behavior name, empty = default
}

// AttackInterval returns the attack period as a duration.
func (m *MobTemplate) AttackInterval() time.Duration {
	return time.Duration(m.AtkSpeed) * time.Millisecond
}

type mobListFile struct {
	Mobs []MobTemplate `yaml:"mobs"`
}

// MobTable holds all mob templates indexed by template ID.
type MobTable struct {
	templates map[int32]*MobTemplate
}

// LoadMobTable loads mob templates from a YAML file.
func LoadMobTable(path string) (*MobTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mob_list: %w", err)
	}
	var f mobListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse mob_list: %w", err)
	}
	t := &MobTable{templates: make(map[int32]*MobTemplate, len(f.Mobs))}
	for i := range f.Mobs {
		m := &f.Mobs[i]
		if m.AttackRange < 1 {
			m.AttackRange = 1
		}
		if m.AtkSpeed <= 0 {
			m.AtkSpeed = 2000
		}
		if m.Level < 1 {
			m.Level = 1
		}
		t.templates[m.MobID] = m
	}
	return t, nil
}

// Get returns a mob template by ID, or nil if not found.
func (t *MobTable) Get(mobID int32) *MobTemplate {
	return t.templates[mobID]
}

// Count returns the number of loaded templates.
func (t *MobTable) Count() int {
	return len(t.templates)
}
