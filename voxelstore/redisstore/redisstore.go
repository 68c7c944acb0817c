// Package redisstore keeps voxel locations in Redis.
//
// Every cell is a string key holding its symbol, every provisioned chunk a
// marker key, both under the location's namespace (see keyfactory). A
// location is held by a session through a lock key carrying the session id,
// so the single session rule also holds across processes sharing the server.
// A session renews its lock while in use and checks it before every commit
// batch; once the lock has passed to another session it fails with
// voxelstore.ErrLockLost.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holmberd/go-voxelfile/datastore"
	"github.com/holmberd/go-voxelfile/keyfactory"
	"github.com/holmberd/go-voxelfile/logging"
	"github.com/holmberd/go-voxelfile/voxel"
	"github.com/holmberd/go-voxelfile/voxelstore"
)

const (
	DefaultBatchSize = 512
	DefaultLockTTL   = 10 * time.Minute
	// Cell reads and writes between lock renewals.
	lockRefreshInterval = 256
)

var chunkMarker = []byte("1")

// Store is safe for concurrent use.
type Store struct {
	ds            *datastore.Client
	batchSize     int
	lockTTL       time.Duration
	autoProvision bool
}

type Option func(*Store)

// WithBatchSize sets how many cells a commit sends per round trip.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLockTTL sets how long a location stays locked after its session was
// last used. It bounds how long a crashed process blocks the location.
func WithLockTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

// WithAutoProvision makes every chunk exist on first access.
func WithAutoProvision() Option {
	return func(s *Store) { s.autoProvision = true }
}

func New(ds *datastore.Client, opts ...Option) *Store {
	s := &Store{ds: ds, batchSize: DefaultBatchSize, lockTTL: DefaultLockTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func locationKeys(location string) (*keyfactory.LocationKeys, error) {
	if err := voxelstore.ValidateLocation(location); err != nil {
		return nil, err
	}
	keys, err := keyfactory.ForLocation(location)
	if err != nil {
		return nil, fmt.Errorf("redisstore: %w", err)
	}
	return keys, nil
}

// Provision creates the chunk markers of the location. Existing chunks are kept.
func (s *Store) Provision(ctx context.Context, location string, chunks ...voxel.ChunkCoord) error {
	keys, err := locationKeys(location)
	if err != nil {
		return err
	}
	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		batch := make([]*keyfactory.Key, 0, end-start)
		data := make([][]byte, 0, end-start)
		for _, c := range chunks[start:end] {
			batch = append(batch, keys.Chunk(c))
			data = append(data, chunkMarker)
		}
		if err := s.ds.PutMulti(ctx, batch, data, 0); err != nil {
			return fmt.Errorf("redisstore: failed to provision %q: %w", location, err)
		}
	}
	return nil
}

// Len returns the number of committed non-air cells in the location.
func (s *Store) Len(ctx context.Context, location string) (int, error) {
	keys, err := locationKeys(location)
	if err != nil {
		return 0, err
	}
	found, err := s.ds.ScanKeys(ctx, keys.Match(keyfactory.KindBlock))
	if err != nil {
		return 0, err
	}
	return len(found), nil
}

// Drop deletes all cells and chunks of the location. A held lock is kept.
func (s *Store) Drop(ctx context.Context, location string) error {
	keys, err := locationKeys(location)
	if err != nil {
		return err
	}
	for _, kind := range []keyfactory.Kind{keyfactory.KindBlock, keyfactory.KindChunk} {
		n, err := s.ds.DeleteMatch(ctx, keys.Match(kind))
		if err != nil {
			return fmt.Errorf("redisstore: failed to drop %q: %w", location, err)
		}
		logging.Logf("redisstore: dropped %d %s keys of %q", n, kind, location)
	}
	return nil
}

// Open starts a session on the location. Writes are staged in the session
// and sent to Redis on Commit.
func (s *Store) Open(ctx context.Context, location string) (voxelstore.Session, error) {
	keys, err := locationKeys(location)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	ok, err := s.ds.PutIfAbsent(ctx, keys.Lock(), []byte(id), s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("redisstore: failed to lock %q: %w", location, err)
	}
	if !ok {
		holder, _ := s.ds.Get(ctx, keys.Lock())
		return nil, fmt.Errorf("%w: %q held by session %s", voxelstore.ErrLocationBusy, location, holder)
	}
	logging.Logf("redisstore: opened session %s on %q", id, location)
	return &session{
		id:          id,
		keys:        keys,
		store:       s,
		staged:      make(map[voxel.Coordinate]voxel.Symbol),
		prefetched:  make(map[voxel.Coordinate]voxel.Symbol),
		provisioned: make(map[voxel.ChunkCoord]bool),
	}, nil
}

type session struct {
	id          string
	keys        *keyfactory.LocationKeys
	store       *Store
	staged      map[voxel.Coordinate]voxel.Symbol
	prefetched  map[voxel.Coordinate]voxel.Symbol // Committed cells; staged cells take priority.
	provisioned map[voxel.ChunkCoord]bool         // Positive lookups only.
	ops         int                               // Cell operations since the last lock renewal.
	lockErr     error
	closed      bool
}

func (s *session) ID() string       { return s.id }
func (s *session) Location() string { return s.keys.Location() }

// renewLock extends the lock TTL if the session still holds the lock.
func (s *session) renewLock(ctx context.Context) error {
	if s.lockErr != nil {
		return s.lockErr
	}
	s.ops = 0
	ok, err := s.store.ds.ExpireIfValue(ctx, s.keys.Lock(), []byte(s.id), s.store.lockTTL)
	if err != nil {
		return fmt.Errorf("redisstore: session %s failed to renew lock on %q: %w", s.id, s.Location(), err)
	}
	if !ok {
		s.lockErr = fmt.Errorf("%w: session %s on %q", voxelstore.ErrLockLost, s.id, s.Location())
		logging.Logf("redisstore: session %s lost its lock on %q", s.id, s.Location())
		return s.lockErr
	}
	return nil
}

// keepLock counts n cell operations and renews the lock every lockRefreshInterval.
func (s *session) keepLock(ctx context.Context, n int) error {
	if s.lockErr != nil {
		return s.lockErr
	}
	s.ops += n
	if s.ops < lockRefreshInterval {
		return nil
	}
	return s.renewLock(ctx)
}

// chunkExists reports whether the chunk marker exists, caching positive lookups.
func (s *session) chunkExists(ctx context.Context, chunk voxel.ChunkCoord) (bool, error) {
	if s.provisioned[chunk] {
		return true, nil
	}
	ok, err := s.store.ds.Exists(ctx, s.keys.Chunk(chunk))
	if err != nil {
		return false, err
	}
	if ok {
		s.provisioned[chunk] = true
	}
	return ok, nil
}

func (s *session) checkProvisioned(ctx context.Context, c voxel.Coordinate) error {
	chunk := c.Chunk()
	if s.provisioned[chunk] {
		return nil
	}
	if s.store.autoProvision {
		if err := s.store.ds.Put(ctx, s.keys.Chunk(chunk), chunkMarker, 0); err != nil {
			return err
		}
		s.provisioned[chunk] = true
		return nil
	}
	ok, err := s.chunkExists(ctx, chunk)
	if err != nil {
		return err
	}
	if !ok {
		return &voxelstore.NotProvisionedError{Location: s.Location(), Coord: c}
	}
	return nil
}

func (s *session) Read(ctx context.Context, c voxel.Coordinate) (voxel.Symbol, error) {
	if s.closed {
		return "", voxelstore.ErrSessionClosed
	}
	if err := s.keepLock(ctx, 1); err != nil {
		return "", err
	}
	if sym, ok := s.staged[c]; ok {
		return sym, nil
	}
	if sym, ok := s.prefetched[c]; ok {
		return sym, nil
	}
	if err := s.checkProvisioned(ctx, c); err != nil {
		return "", err
	}
	data, err := s.store.ds.Get(ctx, s.keys.Block(c))
	if errors.Is(err, datastore.ErrKeyNotFound) {
		return voxel.Air, nil
	}
	if err != nil {
		return "", fmt.Errorf("redisstore: failed to read %s: %w", c, err)
	}
	return voxel.Symbol(data), nil
}

func (s *session) Write(ctx context.Context, c voxel.Coordinate, sym voxel.Symbol) error {
	if s.closed {
		return voxelstore.ErrSessionClosed
	}
	if err := s.keepLock(ctx, 1); err != nil {
		return err
	}
	if err := s.checkProvisioned(ctx, c); err != nil {
		return err
	}
	s.staged[c] = sym
	delete(s.prefetched, c)
	return nil
}

// Prefetch loads the committed symbols of cells with one MGET, replacing the
// previous prefetch. Cells in chunks without a marker are skipped and left to
// Read, which also auto-provisions.
func (s *session) Prefetch(ctx context.Context, cells []voxel.Coordinate) error {
	if s.closed {
		return voxelstore.ErrSessionClosed
	}
	if err := s.keepLock(ctx, len(cells)); err != nil {
		return err
	}
	clear(s.prefetched)
	var (
		keys    = make([]*keyfactory.Key, 0, len(cells))
		coords  = make([]voxel.Coordinate, 0, len(cells))
		missing = make(map[voxel.ChunkCoord]bool)
	)
	for _, c := range cells {
		if _, ok := s.staged[c]; ok {
			continue
		}
		if missing[c.Chunk()] {
			continue
		}
		ok, err := s.chunkExists(ctx, c.Chunk())
		if err != nil {
			return fmt.Errorf("redisstore: session %s failed to prefetch %s: %w", s.id, c, err)
		}
		if !ok {
			missing[c.Chunk()] = true
			continue
		}
		keys = append(keys, s.keys.Block(c))
		coords = append(coords, c)
	}
	data, err := s.store.ds.GetMulti(ctx, keys)
	if err != nil {
		return fmt.Errorf("redisstore: session %s failed to prefetch %d cells: %w", s.id, len(keys), err)
	}
	for i, d := range data {
		if d == nil {
			s.prefetched[coords[i]] = voxel.Air
			continue
		}
		s.prefetched[coords[i]] = voxel.Symbol(d)
	}
	return nil
}

// Commit sends staged cells in batches. Air cells delete their key. A failed
// commit may leave a prefix of the batches applied.
func (s *session) Commit(ctx context.Context) error {
	if s.closed {
		return voxelstore.ErrSessionClosed
	}
	if len(s.staged) == 0 {
		return nil // No-op.
	}
	var (
		puts    = make([]*keyfactory.Key, 0, min(len(s.staged), s.store.batchSize))
		data    = make([][]byte, 0, cap(puts))
		deletes []*keyfactory.Key
	)
	flush := func() error {
		// A session whose lock expired must not overwrite the new holder's cells.
		if err := s.renewLock(ctx); err != nil {
			return err
		}
		if err := s.store.ds.PutMulti(ctx, puts, data, 0); err != nil {
			return err
		}
		if err := s.store.ds.Delete(ctx, deletes...); err != nil {
			return err
		}
		puts, data, deletes = puts[:0], data[:0], deletes[:0]
		return nil
	}
	for c, sym := range s.staged {
		if sym == voxel.Air {
			deletes = append(deletes, s.keys.Block(c))
		} else {
			puts = append(puts, s.keys.Block(c))
			data = append(data, []byte(sym))
		}
		if len(puts)+len(deletes) >= s.store.batchSize {
			if err := flush(); err != nil {
				return fmt.Errorf("redisstore: session %s failed to commit: %w", s.id, err)
			}
		}
	}
	if err := flush(); err != nil {
		return fmt.Errorf("redisstore: session %s failed to commit: %w", s.id, err)
	}
	logging.Logf("redisstore: session %s committed %d cells", s.id, len(s.staged))
	s.staged = make(map[voxel.Coordinate]voxel.Symbol)
	return nil
}

// Close releases the lock if the session still holds it.
func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.staged = nil
	s.prefetched = nil
	// The pipeline may close after its context was cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	released, err := s.store.ds.DeleteIfValue(ctx, s.keys.Lock(), []byte(s.id))
	if err != nil {
		return fmt.Errorf("redisstore: session %s failed to release %q: %w", s.id, s.Location(), err)
	}
	if !released {
		logging.Logf("redisstore: session %s lost its lock on %q before close", s.id, s.Location())
	}
	return nil
}
