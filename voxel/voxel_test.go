package voxel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorDiv(t *testing.T) {
	cases := []struct {
		a, b, div, mod int
	}{
		{0, 16, 0, 0},
		{15, 16, 0, 15},
		{16, 16, 1, 0},
		{-1, 16, -1, 15},
		{-16, 16, -1, 0},
		{-17, 16, -2, 15},
	}
	for _, c := range cases {
		assert.Equal(t, c.div, FloorDiv(c.a, c.b), "FloorDiv(%d, %d)", c.a, c.b)
		assert.Equal(t, c.mod, FloorMod(c.a, c.b), "FloorMod(%d, %d)", c.a, c.b)
	}
}

func TestCoordinateChunk(t *testing.T) {
	assert.Equal(t, ChunkCoord{0, 0}, Coordinate{X: 3, Y: 100, Z: 15}.Chunk())
	assert.Equal(t, ChunkCoord{-1, 2}, Coordinate{X: -1, Y: -64, Z: 40}.Chunk())
	assert.Equal(t, Coordinate{X: -16, Y: 5, Z: 32}, ChunkCoord{-1, 2}.Origin(5))
}
