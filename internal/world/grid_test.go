package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGridAddRemoveMove(t *testing.T) {
	g := NewSpatialGrid()
	e := NewItem(100, 1, 5, 5)

	g.Add(e, 5, 5)
	assert.Len(t, g.EntitiesInRadius(5, 5, 0), 1)

	g.Move(e, 5, 5, 8, 5)
	assert.Empty(t, g.EntitiesInRadius(5, 5, 0))
	assert.Len(t, g.EntitiesInRadius(8, 5, 0), 1)

	g.Remove(e, 8, 5)
	assert.Empty(t, g.EntitiesInRadius(8, 5, 0))

	// Double remove is a no-op.
	g.Remove(e, 8, 5)
}

func TestEntitiesInRadiusIsChebyshev(t *testing.T) {
	g := NewSpatialGrid()
	center := NewItem(100, 1, 10, 10)
	diagonal := NewItem(100, 1, 13, 13)  // Chebyshev 3
	straight := NewItem(100, 1, 10, 14)  // Chebyshev 4
	outside := NewItem(100, 1, 14, 14)   // Chebyshev 4
	farAway := NewItem(100, 1, 20, 10)   // Chebyshev 10

	for _, e := range []*Item{center, diagonal, straight, outside, farAway} {
		x, y := e.Position()
		g.Add(e, x, y)
	}

	got := g.EntitiesInRadius(10, 10, 3)
	ids := make(map[int32]bool)
	for _, e := range got {
		ids[e.Instance()] = true
	}
	assert.Len(t, got, 2)
	assert.True(t, ids[center.Instance()])
	assert.True(t, ids[diagonal.Instance()])

	got = g.EntitiesInRadius(10, 10, 4)
	assert.Len(t, got, 4)
}
