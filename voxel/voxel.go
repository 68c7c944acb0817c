// Package voxel holds the shared value types of a voxel grid: cell coordinates,
// chunk coordinates and block symbols.
package voxel

import "fmt"

// ChunkSize is the width and depth of a storage chunk column.
const ChunkSize = 16

// Air is the symbol a provisioned but never written cell reads as.
const Air Symbol = "minecraft:air"

// Symbol is an opaque block type identifier, e.g. "minecraft:stone".
type Symbol string

func (s Symbol) String() string {
	return string(s)
}

// Coordinate is an absolute cell position. Any component may be negative.
type Coordinate struct {
	X, Y, Z int
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Chunk returns the chunk column containing the coordinate.
func (c Coordinate) Chunk() ChunkCoord {
	return ChunkCoord{X: FloorDiv(c.X, ChunkSize), Z: FloorDiv(c.Z, ChunkSize)}
}

// ChunkCoord addresses a ChunkSize x ChunkSize column spanning the full height.
type ChunkCoord struct {
	X, Z int
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("chunk(%d,%d)", c.X, c.Z)
}

// Origin returns the minimum x/z cell of the chunk at height y.
func (c ChunkCoord) Origin(y int) Coordinate {
	return Coordinate{X: c.X * ChunkSize, Y: y, Z: c.Z * ChunkSize}
}

// FloorDiv divides rounding towards negative infinity.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod returns the non-negative remainder matching FloorDiv.
func FloorMod(a, b int) int {
	return a - FloorDiv(a, b)*b
}
