package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/holmberd/go-voxelfile/sequencer"
	"github.com/holmberd/go-voxelfile/symboltable"
	"github.com/holmberd/go-voxelfile/voxel"
	"github.com/holmberd/go-voxelfile/voxelstore"
)

// EncodeResult summarizes a completed encode pass.
type EncodeResult struct {
	SessionID  string
	Bytes      int64            // Payload bytes written, terminator excluded.
	Terminator voxel.Coordinate // Cell holding the terminator symbol.
	Regions    int              // Regions the pass wrote into.
}

type Encoder struct {
	pass
}

// NewEncoder returns an encoder writing with the table over the layout.
func NewEncoder(table *symboltable.Table, layout sequencer.Params) (*Encoder, error) {
	p, err := newPass("encoder", table, layout)
	if err != nil {
		return nil, err
	}
	return &Encoder{pass: p}, nil
}

// Encode writes data followed by the terminator into the session.
func (e *Encoder) Encode(ctx context.Context, data []byte, sess voxelstore.Session) (*EncodeResult, error) {
	return e.EncodeFrom(ctx, bytes.NewReader(data), sess)
}

// EncodeFrom writes every byte of r followed by the terminator into the session.
// It does not commit. On failure the session holds a partial stream without
// terminator, which must not be decoded.
func (e *Encoder) EncodeFrom(ctx context.Context, r io.Reader, sess voxelstore.Session) (*EncodeResult, error) {
	seq, err := sequencer.New(e.layout)
	if err != nil {
		return nil, err
	}
	t := e.track(Encoding, sess, seq)
	t.started(ctx)

	br := bufio.NewReader(r)
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, t.failed(ctx, fmt.Errorf("pipeline: failed to read input at byte %d: %w", t.bytes, err))
		}
		if err := ctx.Err(); err != nil {
			return nil, t.failed(ctx, err)
		}
		sym, err := e.table.Encode(b)
		if err != nil {
			return nil, t.failed(ctx, err)
		}
		c := seq.Current()
		if err := sess.Write(ctx, c, sym); err != nil {
			return nil, t.failed(ctx, fmt.Errorf("pipeline: failed to write byte %d at %s: %w", t.bytes, c, err))
		}
		t.bytes++
		if err := t.advance(ctx); err != nil {
			return nil, t.failed(ctx, err)
		}
	}

	c := seq.Current()
	if err := sess.Write(ctx, c, e.table.Terminator()); err != nil {
		return nil, t.failed(ctx, fmt.Errorf("pipeline: failed to write terminator at %s: %w", c, err))
	}
	t.completed(ctx)
	return &EncodeResult{
		SessionID:  sess.ID(),
		Bytes:      t.bytes,
		Terminator: c,
		Regions:    t.regions,
	}, nil
}

// Store opens a session on the location, encodes r, commits and closes.
// The session is not committed if encoding fails.
func (e *Encoder) Store(
	ctx context.Context,
	driver voxelstore.Driver,
	location string,
	r io.Reader,
) (res *EncodeResult, err error) {
	sess, err := driver.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	res, err = e.EncodeFrom(ctx, r, sess)
	if err != nil {
		return nil, err
	}
	if err := sess.Commit(ctx); err != nil {
		return nil, fmt.Errorf("pipeline: failed to commit session %s: %w", sess.ID(), err)
	}
	return res, nil
}
