package sequencer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/holmberd/go-voxelfile/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func walk(t *testing.T, s *Sequencer, n int) []voxel.Coordinate {
	t.Helper()
	coords := make([]voxel.Coordinate, 0, n)
	for i := range n {
		if i > 0 {
			require.NoError(t, s.Advance())
		}
		coords = append(coords, s.Current())
	}
	return coords
}

func newSequencer(t *testing.T, p Params) *Sequencer {
	t.Helper()
	s, err := New(p)
	require.NoError(t, err)
	return s
}

func TestSequencerFillOrder(t *testing.T) {
	s := newSequencer(t, Params{Footprint: 2, Floor: 0, Ceiling: 2})
	want := []voxel.Coordinate{
		// region(0,0)
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1},
		{X: 0, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1},
		// region(1,0)
		{X: 2, Y: 0, Z: 0}, {X: 3, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 1}, {X: 3, Y: 0, Z: 1},
		{X: 2, Y: 1, Z: 0}, {X: 3, Y: 1, Z: 0}, {X: 2, Y: 1, Z: 1}, {X: 3, Y: 1, Z: 1},
		// region(0,1)
		{X: 0, Y: 0, Z: 2}, {X: 1, Y: 0, Z: 2},
	}
	got := walk(t, s, len(want))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("coordinate sequence mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(len(want)-1), s.Steps())
	assert.Equal(t, Region{0, 1}, s.Region())
}

func TestSequencerRegionOrder(t *testing.T) {
	// One cell per region: every Advance grows.
	s := newSequencer(t, Params{Footprint: 1, Floor: 0, Ceiling: 1})
	var got []Region
	for i := range 10 {
		if i > 0 {
			require.NoError(t, s.Advance())
		}
		got = append(got, s.Region())
	}
	want := []Region{
		{0, 0},
		{1, 0}, {0, 1},
		{2, 0}, {1, 1}, {0, 2},
		{3, 0}, {2, 1}, {1, 2}, {0, 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("region order mismatch (-want +got):\n%s", diff)
	}
}

func TestSequencerDeterminism(t *testing.T) {
	p := Params{Origin: voxel.Coordinate{X: -6, Z: 9}, Footprint: 3, Floor: -2, Ceiling: 1}
	a := walk(t, newSequencer(t, p), 5000)
	b := walk(t, newSequencer(t, p), 5000)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("independent sequencers diverged (-a +b):\n%s", diff)
	}
}

func TestSequencerNoCollision(t *testing.T) {
	p := Params{Origin: voxel.Coordinate{X: -4, Z: 0}, Footprint: 2, Floor: -1, Ceiling: 2}
	s := newSequencer(t, p)
	n := p.Capacity() * 40

	seen := make(map[voxel.Coordinate]int, n)
	for i := range n {
		if i > 0 {
			require.NoError(t, s.Advance())
		}
		c := s.Current()
		if prev, ok := seen[c]; ok {
			t.Fatalf("coordinate %s produced at step %d and %d", c, prev, i)
		}
		seen[c] = i

		r := s.Region()
		require.GreaterOrEqual(t, c.X, r.X*p.Footprint)
		require.Less(t, c.X, r.X*p.Footprint+p.Footprint)
		require.GreaterOrEqual(t, c.Z, r.Z*p.Footprint)
		require.Less(t, c.Z, r.Z*p.Footprint+p.Footprint)
		require.GreaterOrEqual(t, c.Y, p.Floor)
		require.Less(t, c.Y, p.Ceiling)
	}
}

func TestSequencerRegionGrowth(t *testing.T) {
	p := Params{Footprint: 2, Floor: 0, Ceiling: 1}
	s := newSequencer(t, p)
	assert.True(t, s.Visited(Region{0, 0}))
	assert.False(t, s.Visited(Region{1, 0}))

	entered := map[Region]int{s.Region(): 1}
	prev := s.Region()
	for range p.Capacity() * 50 {
		require.NoError(t, s.Advance())
		r := s.Region()
		if r == prev {
			continue
		}
		entered[r]++
		require.Equal(t, 1, entered[r], "region %s entered twice", r)
		require.True(t, s.Visited(r))
		// Every queued region is visited; entered ones are no longer queued.
		require.LessOrEqual(t, s.FrontierLen(), len(entered)+1)
		prev = r
	}
	assert.Len(t, entered, 51)
}

func TestSequencerExhausted(t *testing.T) {
	s := newSequencer(t, Params{Footprint: 1, Floor: 0, Ceiling: 1})
	s.visited[Region{1, 0}] = struct{}{}
	s.visited[Region{0, 1}] = struct{}{}

	err := s.Advance()
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, Region{0, 0}, exhausted.Region)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, voxel.Coordinate{}, s.Current())
	assert.Equal(t, int64(0), s.Steps())
}

func TestParamsValidate(t *testing.T) {
	cases := map[string]Params{
		"zero footprint":     {Footprint: 0, Floor: 0, Ceiling: 1},
		"negative footprint": {Footprint: -16, Floor: 0, Ceiling: 1},
		"flat column":        {Footprint: 16, Floor: 5, Ceiling: 5},
		"inverted column":    {Footprint: 16, Floor: 5, Ceiling: 0},
		"unaligned x":        {Origin: voxel.Coordinate{X: 3}, Footprint: 16, Ceiling: 1},
		"unaligned z":        {Origin: voxel.Coordinate{Z: -1}, Footprint: 16, Ceiling: 1},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(p)
			assert.Error(t, err)
		})
	}

	s := newSequencer(t, Params{Origin: voxel.Coordinate{X: -32, Y: 99, Z: 16}, Footprint: 16, Floor: -64, Ceiling: 320})
	assert.Equal(t, voxel.Coordinate{X: -32, Y: -64, Z: 16}, s.Current())
	assert.Equal(t, Region{-2, 1}, s.Region())
	assert.Equal(t, 16*16*384, s.Params().Capacity())
}

func TestChunks(t *testing.T) {
	p := Params{Footprint: 16, Floor: 0, Ceiling: 1}

	chunks, err := Chunks(p, 0)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = Chunks(p, 256)
	require.NoError(t, err)
	assert.Equal(t, []voxel.ChunkCoord{{X: 0, Z: 0}}, chunks)

	chunks, err = Chunks(p, 257)
	require.NoError(t, err)
	assert.Equal(t, []voxel.ChunkCoord{{X: 0, Z: 0}, {X: 1, Z: 0}}, chunks)

	// A footprint wider than a chunk spans several chunks per layer.
	chunks, err = Chunks(Params{Footprint: 32, Floor: 0, Ceiling: 4}, 33)
	require.NoError(t, err)
	assert.Equal(t, []voxel.ChunkCoord{{X: 0, Z: 0}, {X: 1, Z: 0}}, chunks)

	_, err = Chunks(p, -1)
	assert.Error(t, err)
}
