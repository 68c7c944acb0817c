package pipeline

import (
	"fmt"

	"github.com/holmberd/go-voxelfile/sequencer"
	"github.com/holmberd/go-voxelfile/voxel"
)

type EventKind int

const (
	PassStarted EventKind = iota
	RegionEntered
	PassCompleted
	PassFailed
	PassStopped // The consumer ended a decode pass early.
)

func (k EventKind) String() string {
	switch k {
	case PassStarted:
		return "PassStarted"
	case RegionEntered:
		return "RegionEntered"
	case PassCompleted:
		return "PassCompleted"
	case PassFailed:
		return "PassFailed"
	case PassStopped:
		return "PassStopped"
	default:
		return fmt.Sprintf("event(%d)", k)
	}
}

type Direction int

const (
	Encoding Direction = iota
	Decoding
)

func (d Direction) String() string {
	if d == Decoding {
		return "decode"
	}
	return "encode"
}

// PassEvent describes progress of an encode or decode pass.
type PassEvent struct {
	Kind      EventKind
	Direction Direction
	SessionID string
	Location  string
	Region    sequencer.Region // Region of Coord.
	Coord     voxel.Coordinate // Cursor position when the event fired.
	Bytes     int64            // Bytes encoded or decoded so far.
	Err       error            // Set for PassFailed.
}
