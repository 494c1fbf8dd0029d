package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SpawnEntry defines a static mob spawn placed at world load.
type SpawnEntry struct {
	MobID         int32 `yaml:"mob_id"`
	X             int32 `yaml:"x"`
	Y             int32 `yaml:"y"`
	Count         int   `yaml:"count"`
	SpawnDistance int32 `yaml:"spawn_distance"` // leash radius from spawn point
	RespawnDelay  int   `yaml:"respawn_delay"`  // seconds
}

type spawnListFile struct {
	Spawns []SpawnEntry `yaml:"spawns"`
}

// LoadSpawnList loads static spawn entries from a YAML file.
func LoadSpawnList(path string) ([]SpawnEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn_list: %w", err)
	}
	var f spawnListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spawn_list: %w", err)
	}
	return f.Spawns, nil
}
