package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ItemTemplate holds static data for an item type loaded from YAML.
type ItemTemplate struct {
	ItemID int32  `yaml:"item_id"`
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"` // weapon, armor, gold, potion, object
	Stack  bool   `yaml:"stack"`
	Attack int32  `yaml:"attack"`
	Armor  int32  `yaml:"armor"`
	Heal   int32  `yaml:"heal"`
}

// IsGold reports whether this item is currency (count is rolled at drop time).
func (it *ItemTemplate) IsGold() bool { return it.Kind == "gold" }

type itemListFile struct {
	Items []ItemTemplate `yaml:"items"`
}

// ItemTable holds all item templates indexed by template ID.
type ItemTable struct {
	templates map[int32]*ItemTemplate
}

// LoadItemTable loads item templates from a YAML file.
func LoadItemTable(path string) (*ItemTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read item_list: %w", err)
	}
	var f itemListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse item_list: %w", err)
	}
	t := &ItemTable{templates: make(map[int32]*ItemTemplate, len(f.Items))}
	for i := range f.Items {
		it := &f.Items[i]
		t.templates[it.ItemID] = it
	}
	return t, nil
}

// Get returns an item template by ID, or nil if not found.
func (t *ItemTable) Get(itemID int32) *ItemTemplate {
	return t.templates[itemID]
}

// Count returns the number of loaded templates.
func (t *ItemTable) Count() int {
	return len(t.templates)
}
