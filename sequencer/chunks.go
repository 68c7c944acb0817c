package sequencer

import (
	"fmt"

	"github.com/holmberd/go-voxelfile/voxel"
)

// Chunks returns, in first-touch order, the storage chunks covered by the
// first n coordinates of a layout. A pass over an m-byte file touches m+1
// coordinates, the last one holding the terminator.
func Chunks(p Params, n int64) ([]voxel.ChunkCoord, error) {
	if n < 0 {
		return nil, fmt.Errorf("sequencer: negative cell count %d", n)
	}
	s, err := New(p)
	if err != nil {
		return nil, err
	}
	var chunks []voxel.ChunkCoord
	seen := make(map[voxel.ChunkCoord]struct{})
	for i := int64(0); i < n; i++ {
		if i > 0 {
			if err := s.Advance(); err != nil {
				return nil, err
			}
		}
		c := s.Current().Chunk()
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		chunks = append(chunks, c)
	}
	return chunks, nil
}
