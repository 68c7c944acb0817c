// Package sqlitestore keeps voxel locations in a SQLite database.
//
// The schema is managed by embedded migrations, applied when the store is
// opened. Every session is recorded in the sessions table together with the
// number of cells it committed.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/holmberd/go-voxelfile/logging"
	"github.com/holmberd/go-voxelfile/voxel"
	"github.com/holmberd/go-voxelfile/voxelstore"
	_ "modernc.org/sqlite"
)

// Store is safe for concurrent use within a process. The single session
// rule is not enforced across processes opening the same file.
type Store struct {
	db            *sql.DB
	locks         voxelstore.Locks
	autoProvision bool
}

type Option func(*Store)

// WithAutoProvision makes every chunk exist on first access.
func WithAutoProvision() Option {
	return func(s *Store) { s.autoProvision = true }
}

// Open opens the database at path and migrates it to the latest schema.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: failed to open %s: %w", path, err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between sessions.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.MigrateUp(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.Logf("sqlitestore: opened %s", path)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Provision creates the chunks in the location. Existing chunks are kept.
func (s *Store) Provision(ctx context.Context, location string, chunks ...voxel.ChunkCoord) (err error) {
	if err := voxelstore.ValidateLocation(location); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (location, cx, cz) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`)
	if err != nil {
		return fmt.Errorf("sqlitestore: %w", err)
	}
	defer stmt.Close()
	for _, c := range chunks {
		if _, err = stmt.ExecContext(ctx, location, c.X, c.Z); err != nil {
			return fmt.Errorf("sqlitestore: failed to provision %s of %q: %w", c, location, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: %w", err)
	}
	return nil
}

// Len returns the number of committed non-air cells in the location.
func (s *Store) Len(ctx context.Context, location string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks WHERE location = ?`, location).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: %w", err)
	}
	return n, nil
}

// SessionRecord is a row of the sessions table.
type SessionRecord struct {
	ID             string
	Location       string
	CommittedCells int64
	Closed         bool
}

// Sessions returns the recorded sessions of the location, oldest first.
func (s *Store) Sessions(ctx context.Context, location string) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, location, committed_cells, closed_at IS NOT NULL
		FROM sessions
		WHERE location = ?
		ORDER BY rowid
	`, location)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		if err := rows.Scan(&r.ID, &r.Location, &r.CommittedCells, &r.Closed); err != nil {
			return nil, fmt.Errorf("sqlitestore: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Open starts a session on the location. Writes are staged in the session
// and applied in one transaction on Commit.
func (s *Store) Open(ctx context.Context, location string) (voxelstore.Session, error) {
	if err := voxelstore.ValidateLocation(location); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	if err := s.locks.Acquire(location, id); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions (id, location) VALUES (?, ?)`, id, location)
	if err != nil {
		s.locks.Release(location, id)
		return nil, fmt.Errorf("sqlitestore: failed to record session on %q: %w", location, err)
	}
	logging.Logf("sqlitestore: opened session %s on %q", id, location)
	return &session{
		id:          id,
		location:    location,
		store:       s,
		staged:      make(map[voxel.Coordinate]voxel.Symbol),
		provisioned: make(map[voxel.ChunkCoord]bool),
	}, nil
}

type session struct {
	id          string
	location    string
	store       *Store
	staged      map[voxel.Coordinate]voxel.Symbol
	provisioned map[voxel.ChunkCoord]bool // Positive lookups only.
	closed      bool
}

func (s *session) ID() string       { return s.id }
func (s *session) Location() string { return s.location }

func (s *session) checkProvisioned(ctx context.Context, c voxel.Coordinate) error {
	chunk := c.Chunk()
	if s.provisioned[chunk] {
		return nil
	}
	if s.store.autoProvision {
		if err := s.store.Provision(ctx, s.location, chunk); err != nil {
			return err
		}
		s.provisioned[chunk] = true
		return nil
	}
	var one int
	err := s.store.db.QueryRowContext(ctx,
		`SELECT 1 FROM chunks WHERE location = ? AND cx = ? AND cz = ?`,
		s.location, chunk.X, chunk.Z,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return &voxelstore.NotProvisionedError{Location: s.location, Coord: c}
	}
	if err != nil {
		return fmt.Errorf("sqlitestore: %w", err)
	}
	s.provisioned[chunk] = true
	return nil
}

func (s *session) Read(ctx context.Context, c voxel.Coordinate) (voxel.Symbol, error) {
	if s.closed {
		return "", voxelstore.ErrSessionClosed
	}
	if sym, ok := s.staged[c]; ok {
		return sym, nil
	}
	if err := s.checkProvisioned(ctx, c); err != nil {
		return "", err
	}
	var sym string
	err := s.store.db.QueryRowContext(ctx,
		`SELECT symbol FROM blocks WHERE location = ? AND x = ? AND y = ? AND z = ?`,
		s.location, c.X, c.Y, c.Z,
	).Scan(&sym)
	if errors.Is(err, sql.ErrNoRows) {
		return voxel.Air, nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlitestore: failed to read %s: %w", c, err)
	}
	return voxel.Symbol(sym), nil
}

func (s *session) Write(ctx context.Context, c voxel.Coordinate, sym voxel.Symbol) error {
	if s.closed {
		return voxelstore.ErrSessionClosed
	}
	if err := s.checkProvisioned(ctx, c); err != nil {
		return err
	}
	s.staged[c] = sym
	return nil
}

// Commit applies the staged cells in one transaction. Air cells delete their row.
func (s *session) Commit(ctx context.Context) (err error) {
	if s.closed {
		return voxelstore.ErrSessionClosed
	}
	if len(s.staged) == 0 {
		return nil // No-op.
	}
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("sqlitestore: session %s failed to commit: %w", s.id, err)
		}
	}()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO blocks (location, x, y, z, symbol) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (location, x, y, z) DO UPDATE SET symbol = excluded.symbol
	`)
	if err != nil {
		return err
	}
	defer upsert.Close()
	del, err := tx.PrepareContext(ctx,
		`DELETE FROM blocks WHERE location = ? AND x = ? AND y = ? AND z = ?`)
	if err != nil {
		return err
	}
	defer del.Close()

	for c, sym := range s.staged {
		if sym == voxel.Air {
			_, err = del.ExecContext(ctx, s.location, c.X, c.Y, c.Z)
		} else {
			_, err = upsert.ExecContext(ctx, s.location, c.X, c.Y, c.Z, string(sym))
		}
		if err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET committed_cells = committed_cells + ? WHERE id = ?`,
		len(s.staged), s.id,
	)
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	logging.Logf("sqlitestore: session %s committed %d cells", s.id, len(s.staged))
	s.staged = make(map[voxel.Coordinate]voxel.Symbol)
	return nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.staged = nil
	defer s.store.locks.Release(s.location, s.id)
	_, err := s.store.db.Exec(`UPDATE sessions SET closed_at = CURRENT_TIMESTAMP WHERE id = ?`, s.id)
	if err != nil {
		return fmt.Errorf("sqlitestore: failed to close session %s: %w", s.id, err)
	}
	return nil
}
