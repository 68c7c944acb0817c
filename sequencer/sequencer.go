// Package sequencer enumerates the cell coordinates a file occupies.
//
// A Sequencer walks a W x W footprint column layer by layer (x fastest, then z,
// then y). When the column reaches its ceiling the sequencer grows into a new
// region: the regions east (+x) and south (+z) of the exhausted one are queued
// if they were never queued before, and the oldest queued region is taken next.
// The walk is deterministic, so two sequencers built from the same Params visit
// the same coordinates in the same order, and never visit a coordinate twice.
//
// A Sequencer is not safe for concurrent use.
package sequencer

import (
	"errors"
	"fmt"

	"github.com/holmberd/go-voxelfile/voxel"
)

var ErrExhausted = errors.New("sequencer: region frontier exhausted")

// ExhaustedError is returned by Advance if no region is left to grow into.
// It signals a defect in the growth policy and is never expected.
type ExhaustedError struct {
	Region Region
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("sequencer: no region to grow into after %s", e.Region)
}

func (e *ExhaustedError) Unwrap() error { return ErrExhausted }

// Params describes the layout of a pass.
type Params struct {
	Origin    voxel.Coordinate // Y is ignored; passes start at Floor.
	Footprint int              // Region width and depth (W).
	Floor     int              // Lowest layer, inclusive (y0).
	Ceiling   int              // Highest layer, exclusive (yMax).
}

// Validate checks that the params describe a usable layout.
// The origin must lie on the footprint grid so that grown regions never
// overlap the starting one.
func (p Params) Validate() error {
	if p.Footprint <= 0 {
		return fmt.Errorf("sequencer: footprint must be positive (got %d)", p.Footprint)
	}
	if p.Ceiling <= p.Floor {
		return fmt.Errorf("sequencer: ceiling %d must be above floor %d", p.Ceiling, p.Floor)
	}
	if voxel.FloorMod(p.Origin.X, p.Footprint) != 0 || voxel.FloorMod(p.Origin.Z, p.Footprint) != 0 {
		return fmt.Errorf(
			"sequencer: origin x=%d z=%d is not aligned to footprint %d",
			p.Origin.X, p.Origin.Z, p.Footprint,
		)
	}
	return nil
}

// Capacity returns the number of cells in one region.
func (p Params) Capacity() int {
	return p.Footprint * p.Footprint * (p.Ceiling - p.Floor)
}

// Region indexes a footprint column: cells [X*W, X*W+W) x [Z*W, Z*W+W).
type Region struct {
	X, Z int
}

func (r Region) String() string {
	return fmt.Sprintf("region(%d,%d)", r.X, r.Z)
}

type Sequencer struct {
	params Params
	cur    voxel.Coordinate
	region Region

	// Regions are marked visited when queued, so none is queued twice.
	frontier []Region
	visited  map[Region]struct{}
	steps    int64
}

// New returns a sequencer positioned at (origin.X, Floor, origin.Z).
func New(p Params) (*Sequencer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	region := Region{
		X: voxel.FloorDiv(p.Origin.X, p.Footprint),
		Z: voxel.FloorDiv(p.Origin.Z, p.Footprint),
	}
	return &Sequencer{
		params:  p,
		cur:     voxel.Coordinate{X: p.Origin.X, Y: p.Floor, Z: p.Origin.Z},
		region:  region,
		visited: map[Region]struct{}{region: {}},
	}, nil
}

// Params returns the layout the sequencer was built with.
func (s *Sequencer) Params() Params {
	return s.params
}

// Current returns the coordinate for the next read or write without consuming it.
func (s *Sequencer) Current() voxel.Coordinate {
	return s.cur
}

// Region returns the region the cursor is in.
func (s *Sequencer) Region() Region {
	return s.region
}

// Steps returns the number of successful calls to Advance.
func (s *Sequencer) Steps() int64 {
	return s.steps
}

// Visited reports whether a region has been entered or queued.
func (s *Sequencer) Visited(r Region) bool {
	_, ok := s.visited[r]
	return ok
}

// FrontierLen returns the number of queued regions.
func (s *Sequencer) FrontierLen() int {
	return len(s.frontier)
}

// Advance moves the cursor to the next coordinate.
func (s *Sequencer) Advance() error {
	w := s.params.Footprint
	originX, originZ := s.region.X*w, s.region.Z*w

	s.cur.X++
	if s.cur.X < originX+w {
		s.steps++
		return nil
	}
	s.cur.X = originX
	s.cur.Z++
	if s.cur.Z < originZ+w {
		s.steps++
		return nil
	}
	s.cur.Z = originZ
	s.cur.Y++
	if s.cur.Y < s.params.Ceiling {
		s.steps++
		return nil
	}
	if err := s.grow(); err != nil {
		return err
	}
	s.steps++
	return nil
}

// grow moves the cursor to the floor of the next region in the frontier.
func (s *Sequencer) grow() error {
	exhausted := s.region
	for _, next := range []Region{
		{X: exhausted.X + 1, Z: exhausted.Z},
		{X: exhausted.X, Z: exhausted.Z + 1},
	} {
		if _, ok := s.visited[next]; ok {
			continue
		}
		s.visited[next] = struct{}{}
		s.frontier = append(s.frontier, next)
	}
	if len(s.frontier) == 0 {
		// Leave the cursor on the last cell of the exhausted region.
		s.cur.Y = s.params.Ceiling - 1
		s.cur.X = exhausted.X*s.params.Footprint + s.params.Footprint - 1
		s.cur.Z = exhausted.Z*s.params.Footprint + s.params.Footprint - 1
		return &ExhaustedError{Region: exhausted}
	}
	s.region = s.frontier[0]
	s.frontier[0] = Region{}
	s.frontier = s.frontier[1:]

	w := s.params.Footprint
	s.cur = voxel.Coordinate{X: s.region.X * w, Y: s.params.Floor, Z: s.region.Z * w}
	return nil
}
