// Package mcfunction exports writes as a Minecraft function file: one
// setblock command per cell, in write order, with absolute coordinates.
//
// Sessions are write-only. Loading the function in a world with the chunks
// present places the stream; reading it back is done from that world.
//
// Symbols must fold to block ids, [namespace:]path made of lowercase letters,
// digits and "_-.", with '/' also allowed in the path. Two symbols of one
// export must not fold to the same id.
package mcfunction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/holmberd/go-voxelfile/logging"
	"github.com/holmberd/go-voxelfile/voxel"
	"github.com/holmberd/go-voxelfile/voxelstore"
)

const defaultNamespace = "minecraft"

var (
	ErrInvalidBlockID   = errors.New("mcfunction: symbol is not a block id")
	ErrBlockIDCollision = errors.New("mcfunction: symbols export as the same block id")
)

var blockIDRegex = regexp.MustCompile(`^[a-z0-9_.\-]+:[a-z0-9_.\-/]+$`)

// Exporter writes the commands of committed sessions to w.
// It is safe for concurrent use; sessions on different locations append to
// the same writer one commit at a time.
type Exporter struct {
	mu    sync.Mutex
	w     io.Writer
	ids   map[string]voxel.Symbol // Block id to the symbol first exported as it.
	locks voxelstore.Locks
}

func New(w io.Writer) *Exporter {
	return &Exporter{w: w, ids: make(map[string]voxel.Symbol)}
}

// BlockID returns the namespaced block id of sym.
// Bare names are lowercased and put in the minecraft namespace.
func BlockID(sym voxel.Symbol) (string, error) {
	id := strings.ToLower(string(sym))
	if !strings.Contains(id, ":") {
		id = defaultNamespace + ":" + id
	}
	if !blockIDRegex.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBlockID, sym)
	}
	return id, nil
}

// Command returns the setblock command placing sym at c.
func Command(c voxel.Coordinate, sym voxel.Symbol) (string, error) {
	id, err := BlockID(sym)
	if err != nil {
		return "", err
	}
	return command(c, id), nil
}

func command(c voxel.Coordinate, id string) string {
	return fmt.Sprintf("setblock %d %d %d %s", c.X, c.Y, c.Z, id)
}

// blockID resolves sym and claims its id for this export.
func (e *Exporter) blockID(sym voxel.Symbol) (string, error) {
	id, err := BlockID(sym)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.ids[id]; ok && prev != sym {
		return "", fmt.Errorf("%w: %q and %q are both %s", ErrBlockIDCollision, prev, sym, id)
	}
	e.ids[id] = sym
	return id, nil
}

func (e *Exporter) Open(_ context.Context, location string) (voxelstore.Session, error) {
	if err := voxelstore.ValidateLocation(location); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	if err := e.locks.Acquire(location, id); err != nil {
		return nil, err
	}
	return &session{id: id, location: location, exporter: e}, nil
}

func (e *Exporter) write(p []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.w.Write(p)
	return err
}

type session struct {
	id       string
	location string
	exporter *Exporter
	buf      bytes.Buffer
	lines    int
	closed   bool
}

func (s *session) ID() string       { return s.id }
func (s *session) Location() string { return s.location }

func (s *session) Read(context.Context, voxel.Coordinate) (voxel.Symbol, error) {
	if s.closed {
		return "", voxelstore.ErrSessionClosed
	}
	return "", voxelstore.ErrWriteOnly
}

func (s *session) Write(_ context.Context, c voxel.Coordinate, sym voxel.Symbol) error {
	if s.closed {
		return voxelstore.ErrSessionClosed
	}
	id, err := s.exporter.blockID(sym)
	if err != nil {
		return fmt.Errorf("mcfunction: cell %s: %w", c, err)
	}
	s.buf.WriteString(command(c, id))
	s.buf.WriteByte('\n')
	s.lines++
	return nil
}

// Commit appends the buffered commands to the exporter's writer.
func (s *session) Commit(context.Context) error {
	if s.closed {
		return voxelstore.ErrSessionClosed
	}
	if s.lines == 0 {
		return nil // No-op.
	}
	if err := s.exporter.write(s.buf.Bytes()); err != nil {
		return fmt.Errorf("mcfunction: session %s failed to write %d commands: %w", s.id, s.lines, err)
	}
	logging.Logf("mcfunction: session %s exported %d commands for %q", s.id, s.lines, s.location)
	s.buf.Reset()
	s.lines = 0
	return nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.buf.Reset()
	s.exporter.locks.Release(s.location, s.id)
	return nil
}
