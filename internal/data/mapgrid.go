package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Door is a teleport tile with a fixed destination.
type Door struct {
	X     int32 `yaml:"x"`
	Y     int32 `yaml:"y"`
	ToX   int32 `yaml:"to_x"`
	ToY   int32 `yaml:"to_y"`
	Tile  int32 `yaml:"tile"`  // dynamic tile override merged into region payloads
	Open  bool  `yaml:"open"`  // initial state
	Level int32 `yaml:"level"` // minimum level requirement, 0 = none
}

type mapFile struct {
	Width      int32   `yaml:"width"`
	Height     int32   `yaml:"height"`
	Collisions []int32 `yaml:"collisions"` // tile indexes, see TileIndex
	Tiles      []int32 `yaml:"tiles"`      // static tile id per index, optional
	Doors      []Door  `yaml:"doors"`
}

// MapGrid is the read-only tile grid and collision oracle. Loaded once at
// boot and never mutated afterwards.
type MapGrid struct {
	width      int32
	height     int32
	collisions map[int32]struct{}
	tiles      []int32
	doors      map[[2]int32]*Door
}

// LoadMapGrid loads the world map from a YAML file.
func LoadMapGrid(path string) (*MapGrid, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map %s: %w", path, err)
	}
	var f mapFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse map %s: %w", path, err)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("map %s: invalid dimensions %dx%d", path, f.Width, f.Height)
	}
	g := &MapGrid{
		width:      f.Width,
		height:     f.Height,
		collisions: make(map[int32]struct{}, len(f.Collisions)),
		tiles:      f.Tiles,
		doors:      make(map[[2]int32]*Door, len(f.Doors)),
	}
	for _, idx := range f.Collisions {
		g.collisions[idx] = struct{}{}
	}
	for i := range f.Doors {
		d := &f.Doors[i]
		g.doors[[2]int32{d.X, d.Y}] = d
	}
	return g, nil
}

// NewMapGrid builds a grid in memory. Test helper and fallback for worlds
// without a map file.
func NewMapGrid(width, height int32) *MapGrid {
	return &MapGrid{
		width:      width,
		height:     height,
		collisions: make(map[int32]struct{}),
		doors:      make(map[[2]int32]*Door),
	}
}

func (g *MapGrid) Width() int32  { return g.width }
func (g *MapGrid) Height() int32 { return g.height }

// TileIndex converts a coordinate to its 1-based flat tile index.
func (g *MapGrid) TileIndex(x, y int32) int32 {
	return y*g.width + x + 1
}

func (g *MapGrid) IsOutOfBounds(x, y int32) bool {
	return x < 0 || x >= g.width || y < 0 || y >= g.height
}

func (g *MapGrid) IsColliding(x, y int32) bool {
	if g.IsOutOfBounds(x, y) {
		return true
	}
	_, ok := g.collisions[g.TileIndex(x, y)]
	return ok
}

// SetCollision marks a tile blocked. Test helper.
func (g *MapGrid) SetCollision(x, y int32) {
	g.collisions[g.TileIndex(x, y)] = struct{}{}
}

func (g *MapGrid) IsDoor(x, y int32) bool {
	_, ok := g.doors[[2]int32{x, y}]
	return ok
}

// DoorDestination returns the teleport target of the door at (x,y).
func (g *MapGrid) DoorDestination(x, y int32) (int32, int32, bool) {
	d, ok := g.doors[[2]int32{x, y}]
	if !ok {
		return 0, 0, false
	}
	return d.ToX, d.ToY, true
}

// Doors returns all doors. Region payloads merge these as dynamic tile
// overrides on top of the static tile data.
func (g *MapGrid) Doors() []*Door {
	out := make([]*Door, 0, len(g.doors))
	for _, d := range g.doors {
		out = append(out, d)
	}
	return out
}

// TileAt returns the static tile id at a coordinate, 0 when no tile layer
// was loaded.
func (g *MapGrid) TileAt(x, y int32) int32 {
	idx := g.TileIndex(x, y) - 1
	if g.tiles == nil || idx < 0 || int(idx) >= len(g.tiles) {
		return 0
	}
	return g.tiles[idx]
}
