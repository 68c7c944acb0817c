// Package pipeline stores byte streams in a voxel store and reads them back.
//
// An Encoder writes the symbol of each byte at successive sequencer
// coordinates and closes the stream with the table's terminator symbol. A
// Decoder walks the same coordinates from the same layout until it reads the
// terminator. Both sides must use the same symbol table and layout; neither is
// recorded in the store.
//
// Each pass builds a fresh sequencer at the layout origin, so encoder and
// decoder visit identical coordinates in identical order. A location must
// only carry one pass at a time.
package pipeline

import (
	"context"
	"errors"

	"github.com/holmberd/go-voxelfile/eventemitter"
	"github.com/holmberd/go-voxelfile/logging"
	"github.com/holmberd/go-voxelfile/sequencer"
	"github.com/holmberd/go-voxelfile/symboltable"
	"github.com/holmberd/go-voxelfile/voxelstore"
)

// pass holds what an Encoder and a Decoder share.
type pass struct {
	table  *symboltable.Table
	layout sequencer.Params
	events *eventemitter.Target[PassEvent]
}

func newPass(name string, table *symboltable.Table, layout sequencer.Params) (pass, error) {
	if table == nil {
		return pass{}, errors.New("pipeline: symbol table must not be nil")
	}
	if err := layout.Validate(); err != nil {
		return pass{}, err
	}
	return pass{
		table:  table,
		layout: layout,
		events: eventemitter.NewTarget[PassEvent](name),
	}, nil
}

// Events returns the target pass events are emitted on.
func (p pass) Events() *eventemitter.Target[PassEvent] {
	return p.events
}

// Layout returns the coordinate layout passes run over.
func (p pass) Layout() sequencer.Params {
	return p.layout
}

// tracker emits pass events as the cursor moves.
type tracker struct {
	events  *eventemitter.Target[PassEvent]
	dir     Direction
	sess    voxelstore.Session
	seq     *sequencer.Sequencer
	region  sequencer.Region
	regions int
	bytes   int64
}

func (p pass) track(dir Direction, sess voxelstore.Session, seq *sequencer.Sequencer) *tracker {
	return &tracker{events: p.events, dir: dir, sess: sess, seq: seq, region: seq.Region(), regions: 1}
}

func (t *tracker) event(kind EventKind, err error) PassEvent {
	return PassEvent{
		Kind:      kind,
		Direction: t.dir,
		SessionID: t.sess.ID(),
		Location:  t.sess.Location(),
		Region:    t.seq.Region(),
		Coord:     t.seq.Current(),
		Bytes:     t.bytes,
		Err:       err,
	}
}

func (t *tracker) started(ctx context.Context) {
	logging.Logf("pipeline: %s pass started on %q (session %s)", t.dir, t.sess.Location(), t.sess.ID())
	t.events.Emit(ctx, t.event(PassStarted, nil))
	t.events.Emit(ctx, t.event(RegionEntered, nil))
}

// advance moves the sequencer and reports a region change.
func (t *tracker) advance(ctx context.Context) error {
	if err := t.seq.Advance(); err != nil {
		return err
	}
	if r := t.seq.Region(); r != t.region {
		t.region = r
		t.regions++
		t.events.Emit(ctx, t.event(RegionEntered, nil))
	}
	return nil
}

func (t *tracker) completed(ctx context.Context) {
	logging.Logf(
		"pipeline: %s pass on %q (session %s) completed: %d bytes, terminator at %s",
		t.dir, t.sess.Location(), t.sess.ID(), t.bytes, t.seq.Current(),
	)
	t.events.Emit(ctx, t.event(PassCompleted, nil))
}

// stopped reports a pass the consumer ended before the terminator.
func (t *tracker) stopped(ctx context.Context) {
	logging.Logf(
		"pipeline: %s pass on %q (session %s) stopped by caller after %d bytes",
		t.dir, t.sess.Location(), t.sess.ID(), t.bytes,
	)
	t.events.Emit(ctx, t.event(PassStopped, nil))
}

func (t *tracker) failed(ctx context.Context, err error) error {
	logging.Logf(
		"pipeline: %s pass on %q (session %s) failed after %d bytes: %v",
		t.dir, t.sess.Location(), t.sess.ID(), t.bytes, err,
	)
	t.events.Emit(ctx, t.event(PassFailed, err))
	return err
}
