package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/holmberd/go-voxelfile/sequencer"
	"github.com/holmberd/go-voxelfile/symboltable"
	"github.com/holmberd/go-voxelfile/voxel"
	"github.com/holmberd/go-voxelfile/voxelstore"
)

// Cells requested per Prefetch call.
const prefetchWindow = 256

type Decoder struct {
	pass
}

// NewDecoder returns a decoder reading with the table over the layout.
func NewDecoder(table *symboltable.Table, layout sequencer.Params) (*Decoder, error) {
	p, err := newPass("decoder", table, layout)
	if err != nil {
		return nil, err
	}
	return &Decoder{pass: p}, nil
}

// Decode returns the bytes stored in the session, in order, up to the first
// terminator. The sequence is lazy: each step reads one cell. A failure is
// yielded once as a non-nil error, after which the sequence ends. Every
// iteration of the returned sequence is a new pass starting at the origin.
func (d *Decoder) Decode(ctx context.Context, sess voxelstore.Session) iter.Seq2[byte, error] {
	return func(yield func(byte, error) bool) {
		seq, err := sequencer.New(d.layout)
		if err != nil {
			yield(0, err)
			return
		}
		ahead, err := d.readAhead(sess)
		if err != nil {
			yield(0, err)
			return
		}
		t := d.track(Decoding, sess, seq)
		t.started(ctx)
		for {
			if err := ctx.Err(); err != nil {
				yield(0, t.failed(ctx, err))
				return
			}
			c := seq.Current()
			if err := ahead.next(ctx); err != nil {
				yield(0, t.failed(ctx, fmt.Errorf("pipeline: failed to prefetch from %s: %w", c, err)))
				return
			}
			sym, err := sess.Read(ctx, c)
			if err != nil {
				yield(0, t.failed(ctx, fmt.Errorf("pipeline: failed to read byte %d at %s: %w", t.bytes, c, err)))
				return
			}
			if d.table.IsTerminator(sym) {
				t.completed(ctx)
				return
			}
			b, err := d.table.Decode(sym)
			if err != nil {
				yield(0, t.failed(ctx, fmt.Errorf("pipeline: cell %s: %w", c, err)))
				return
			}
			t.bytes++
			if !yield(b, nil) {
				t.stopped(ctx)
				return
			}
			if err := t.advance(ctx); err != nil {
				yield(0, t.failed(ctx, err))
				return
			}
		}
	}
}

// readAhead walks a second sequencer in front of the decoder and hands the
// session the coordinates it is about to read. It is nil for sessions that
// do not implement voxelstore.Prefetcher.
type readAhead struct {
	p    voxelstore.Prefetcher
	seq  *sequencer.Sequencer
	left int // Prefetched cells not yet read.
	done bool
}

func (d *Decoder) readAhead(sess voxelstore.Session) (*readAhead, error) {
	p, ok := sess.(voxelstore.Prefetcher)
	if !ok {
		return nil, nil
	}
	seq, err := sequencer.New(d.layout)
	if err != nil {
		return nil, err
	}
	return &readAhead{p: p, seq: seq}, nil
}

// next is called before each cell read.
func (r *readAhead) next(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if r.left > 0 {
		r.left--
		return nil
	}
	if r.done {
		return nil
	}
	cells := make([]voxel.Coordinate, 0, prefetchWindow)
	for len(cells) < prefetchWindow {
		cells = append(cells, r.seq.Current())
		if err := r.seq.Advance(); err != nil {
			r.done = true // Layout exhausted.
			break
		}
	}
	r.left = len(cells) - 1
	return r.p.Prefetch(ctx, cells)
}

// DecodeTo streams the decoded bytes into w and returns how many were written.
func (d *Decoder) DecodeTo(ctx context.Context, sess voxelstore.Session, w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for b, err := range d.Decode(ctx, sess) {
		if err != nil {
			return n, err
		}
		if err := bw.WriteByte(b); err != nil {
			return n, fmt.Errorf("pipeline: failed to write output: %w", err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("pipeline: failed to flush output: %w", err)
	}
	return n, nil
}

// DecodeAll returns every decoded byte.
func (d *Decoder) DecodeAll(ctx context.Context, sess voxelstore.Session) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.DecodeTo(ctx, sess, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load opens a session on the location, decodes into w and closes.
func (d *Decoder) Load(
	ctx context.Context,
	driver voxelstore.Driver,
	location string,
	w io.Writer,
) (n int64, err error) {
	sess, err := driver.Open(ctx, location)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return d.DecodeTo(ctx, sess, w)
}
