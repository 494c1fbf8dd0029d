package world

// SpatialGrid buckets entities by tile coordinate for O(1) add/remove/move
// and radius queries. An entity appears in at most one cell, matching its
// current position.
type SpatialGrid struct {
	cells map[[2]int32]map[int32]Entity
}

func NewSpatialGrid() *SpatialGrid {
	return &SpatialGrid{cells: make(map[[2]int32]map[int32]Entity)}
}

func (g *SpatialGrid) Add(e Entity, x, y int32) {
	key := [2]int32{x, y}
	cell, ok := g.cells[key]
	if !ok {
		cell = make(map[int32]Entity, 4)
		g.cells[key] = cell
	}
	cell[e.Instance()] = e
}

// Remove is a no-op when the entity is not in the cell.
func (g *SpatialGrid) Remove(e Entity, x, y int32) {
	key := [2]int32{x, y}
	if cell, ok := g.cells[key]; ok {
		delete(cell, e.Instance())
		if len(cell) == 0 {
			delete(g.cells, key)
		}
	}
}

func (g *SpatialGrid) Move(e Entity, fromX, fromY, toX, toY int32) {
	g.Remove(e, fromX, fromY)
	g.Add(e, toX, toY)
}

// EntitiesInRadius returns all entities within Chebyshev distance r of
// (x,y). Order is unspecified.
func (g *SpatialGrid) EntitiesInRadius(x, y, r int32) []Entity {
	out := make([]Entity, 0, 16)
	for cy := y - r; cy <= y+r; cy++ {
		for cx := x - r; cx <= x+r; cx++ {
			for _, e := range g.cells[[2]int32{cx, cy}] {
				out = append(out, e)
			}
		}
	}
	return out
}
