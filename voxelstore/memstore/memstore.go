// Package memstore is an in-process voxel store. Cells are kept per chunk
// column, the same way a world keeps its loaded chunks.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/holmberd/go-voxelfile/logging"
	"github.com/holmberd/go-voxelfile/voxel"
	"github.com/holmberd/go-voxelfile/voxelstore"
)

// Store is safe for concurrent use. Each location is an independent world.
type Store struct {
	mu            sync.RWMutex
	worlds        map[string]*world
	autoProvision bool
	locks         voxelstore.Locks
}

type Option func(*Store)

// WithAutoProvision makes every chunk exist on first access, as if generated.
func WithAutoProvision() Option {
	return func(s *Store) { s.autoProvision = true }
}

func New(opts ...Option) *Store {
	s := &Store{worlds: make(map[string]*world)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type world struct {
	chunks map[voxel.ChunkCoord]*column
}

// column holds the cells of one chunk, keyed by layer and packed local x/z.
type column struct {
	cells map[cellIndex]voxel.Symbol
}

type cellIndex struct {
	y  int
	xz uint8 // x | z<<4, both local 0..15
}

func indexOf(c voxel.Coordinate) cellIndex {
	x := voxel.FloorMod(c.X, voxel.ChunkSize)
	z := voxel.FloorMod(c.Z, voxel.ChunkSize)
	return cellIndex{y: c.Y, xz: uint8(x) | uint8(z)<<4}
}

// Provision creates the chunks in the location. Existing chunks are kept.
func (s *Store) Provision(_ context.Context, location string, chunks ...voxel.ChunkCoord) error {
	if err := voxelstore.ValidateLocation(location); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.worldLocked(location)
	for _, c := range chunks {
		if w.chunks[c] == nil {
			w.chunks[c] = &column{cells: make(map[cellIndex]voxel.Symbol)}
		}
	}
	return nil
}

// Len returns the number of committed non-air cells in the location.
func (s *Store) Len(location string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w := s.worlds[location]
	if w == nil {
		return 0
	}
	n := 0
	for _, col := range w.chunks {
		n += len(col.cells)
	}
	return n
}

func (s *Store) worldLocked(location string) *world {
	w := s.worlds[location]
	if w == nil {
		w = &world{chunks: make(map[voxel.ChunkCoord]*column)}
		s.worlds[location] = w
	}
	return w
}

// Open starts a session on the location. Writes are staged in the session
// and applied to the store on Commit.
func (s *Store) Open(_ context.Context, location string) (voxelstore.Session, error) {
	if err := voxelstore.ValidateLocation(location); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	if err := s.locks.Acquire(location, id); err != nil {
		return nil, err
	}
	logging.Logf("memstore: opened session %s on %q", id, location)
	return &session{
		id:       id,
		location: location,
		store:    s,
		staged:   make(map[voxel.Coordinate]voxel.Symbol),
	}, nil
}

// provisioned reports whether the chunk of c exists, creating it if the
// store auto-provisions.
func (s *Store) provisioned(location string, c voxel.Coordinate) bool {
	chunk := c.Chunk()
	s.mu.RLock()
	w := s.worlds[location]
	ok := w != nil && w.chunks[chunk] != nil
	s.mu.RUnlock()
	if ok || !s.autoProvision {
		return ok
	}
	return s.Provision(context.Background(), location, chunk) == nil
}

func (s *Store) get(location string, c voxel.Coordinate) voxel.Symbol {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sym, ok := s.worlds[location].chunks[c.Chunk()].cells[indexOf(c)]
	if !ok {
		return voxel.Air
	}
	return sym
}

func (s *Store) apply(location string, staged map[voxel.Coordinate]voxel.Symbol) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.worldLocked(location)
	for c, sym := range staged {
		col := w.chunks[c.Chunk()]
		if col == nil {
			// Provisioned when staged; recreate rather than drop the write.
			col = &column{cells: make(map[cellIndex]voxel.Symbol)}
			w.chunks[c.Chunk()] = col
		}
		if sym == voxel.Air {
			delete(col.cells, indexOf(c))
			continue
		}
		col.cells[indexOf(c)] = sym
	}
}

type session struct {
	id       string
	location string
	store    *Store
	staged   map[voxel.Coordinate]voxel.Symbol
	closed   bool
}

func (s *session) ID() string       { return s.id }
func (s *session) Location() string { return s.location }

func (s *session) Read(ctx context.Context, c voxel.Coordinate) (voxel.Symbol, error) {
	if s.closed {
		return "", voxelstore.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if sym, ok := s.staged[c]; ok {
		return sym, nil
	}
	if !s.store.provisioned(s.location, c) {
		return "", &voxelstore.NotProvisionedError{Location: s.location, Coord: c}
	}
	return s.store.get(s.location, c), nil
}

func (s *session) Write(ctx context.Context, c voxel.Coordinate, sym voxel.Symbol) error {
	if s.closed {
		return voxelstore.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.store.provisioned(s.location, c) {
		return &voxelstore.NotProvisionedError{Location: s.location, Coord: c}
	}
	s.staged[c] = sym
	return nil
}

func (s *session) Commit(ctx context.Context) error {
	if s.closed {
		return voxelstore.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.staged) == 0 {
		return nil // No-op.
	}
	s.store.apply(s.location, s.staged)
	logging.Logf("memstore: session %s committed %d cells", s.id, len(s.staged))
	s.staged = make(map[voxel.Coordinate]voxel.Symbol)
	return nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.staged = nil
	s.store.locks.Release(s.location, s.id)
	return nil
}
