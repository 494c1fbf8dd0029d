// Package region implements interest management: the map is divided into
// fixed-size zones, and every broadcast is scoped to a 3x3 block of zones
// around its origin.
package region

// ID identifies a zone by its column/row in the partition.
type ID struct {
	X int32
	Y int32
}

// Key addresses a region record. Owner is 0 for the shared grid; a non-zero
// owner selects a private instanced copy of the zone.
type Key struct {
	Region ID
	Owner  int32
}

// Partition divides a width x height tile map into zoneWidth x zoneHeight
// zones. Zones on the right/bottom edge may be smaller than the zone size.
type Partition struct {
	zoneWidth  int32
	zoneHeight int32
	cols       int32
	rows       int32
}

func NewPartition(zoneWidth, zoneHeight, mapWidth, mapHeight int32) *Partition {
	return &Partition{
		zoneWidth:  zoneWidth,
		zoneHeight: zoneHeight,
		cols:       (mapWidth + zoneWidth - 1) / zoneWidth,
		rows:       (mapHeight + zoneHeight - 1) / zoneHeight,
	}
}

func (p *Partition) Cols() int32 { return p.cols }
func (p *Partition) Rows() int32 { return p.rows }

// FromPosition maps a tile coordinate to its region id.
func (p *Partition) FromPosition(x, y int32) ID {
	return ID{X: x / p.zoneWidth, Y: y / p.zoneHeight}
}

// Contains reports whether id is a valid region on this map.
func (p *Partition) Contains(id ID) bool {
	return id.X >= 0 && id.X < p.cols && id.Y >= 0 && id.Y < p.rows
}

// ForEachAdjacent visits the region itself plus its existing neighbors in
// the 3x3 block, clipped at map edges. This block is the interest radius for
// every broadcast operation.
func (p *Partition) ForEachAdjacent(id ID, visit func(ID)) {
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			n := ID{X: id.X + dx, Y: id.Y + dy}
			if p.Contains(n) {
				visit(n)
			}
		}
	}
}

// ForEachRegion enumerates every region id on the map.
func (p *Partition) ForEachRegion(visit func(ID)) {
	for y := int32(0); y < p.rows; y++ {
		for x := int32(0); x < p.cols; x++ {
			visit(ID{X: x, Y: y})
		}
	}
}

// Bounds returns the tile rectangle covered by a region, for building map
// payloads. The rectangle is [x0,x1) x [y0,y1) before edge clipping by the
// caller's map dimensions.
func (p *Partition) Bounds(id ID) (x0, y0, x1, y1 int32) {
	x0 = id.X * p.zoneWidth
	y0 = id.Y * p.zoneHeight
	return x0, y0, x0 + p.zoneWidth, y0 + p.zoneHeight
}
