// Package voxelstore defines the storage contract the encode and decode
// pipelines run against.
//
// A Driver opens a Session on a named location (a world, a save, a table
// namespace). A Session reads and writes single cells; writes become durable
// on Commit. Drivers never create storage on demand: writing or reading a cell
// in a chunk that was not provisioned fails with a NotProvisionedError.
//
// A location admits one open session at a time. Sessions are not safe for
// concurrent use.
package voxelstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/holmberd/go-voxelfile/sequencer"
	"github.com/holmberd/go-voxelfile/voxel"
)

var (
	ErrNotProvisioned = errors.New("voxelstore: coordinate not provisioned")
	ErrLocationBusy   = errors.New("voxelstore: location has an open session")
	ErrSessionClosed  = errors.New("voxelstore: session closed")
	ErrLockLost       = errors.New("voxelstore: session lost its location to another session")
	ErrWriteOnly      = errors.New("voxelstore: session is write-only")
)

// NotProvisionedError reports a cell whose chunk does not exist in the store.
type NotProvisionedError struct {
	Location string
	Coord    voxel.Coordinate
}

func (e *NotProvisionedError) Error() string {
	return fmt.Sprintf(
		"voxelstore: %s of %q is not provisioned (cell %s)",
		e.Coord.Chunk(), e.Location, e.Coord,
	)
}

func (e *NotProvisionedError) Unwrap() error { return ErrNotProvisioned }

type Session interface {
	// ID uniquely identifies the session, for logs.
	ID() string
	Location() string
	// Read returns the symbol stored at c. Cells never written read as voxel.Air.
	Read(ctx context.Context, c voxel.Coordinate) (voxel.Symbol, error)
	Write(ctx context.Context, c voxel.Coordinate, s voxel.Symbol) error
	// Commit makes all writes so far durable.
	Commit(ctx context.Context) error
	// Close releases the location. Uncommitted writes may be lost.
	Close() error
}

// Prefetcher is implemented by sessions that can load many cells in one round
// trip. Prefetch is a hint for the reads that follow: cells in chunks that are
// not provisioned are skipped, and reading them still fails.
type Prefetcher interface {
	Prefetch(ctx context.Context, cells []voxel.Coordinate) error
}

type Driver interface {
	Open(ctx context.Context, location string) (Session, error)
}

// Provisioner is implemented by drivers whose chunks must be created before use.
type Provisioner interface {
	Provision(ctx context.Context, location string, chunks ...voxel.ChunkCoord) error
}

// ProvisionLayout provisions every chunk covered by the first n cells of a
// layout. Storing an m-byte file needs n = m+1.
func ProvisionLayout(
	ctx context.Context,
	p Provisioner,
	location string,
	params sequencer.Params,
	n int64,
) error {
	chunks, err := sequencer.Chunks(params, n)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil // No-op for empty layout.
	}
	return p.Provision(ctx, location, chunks...)
}

// ValidateLocation checks a location name is usable by every driver.
func ValidateLocation(location string) error {
	if location == "" {
		return errors.New("voxelstore: location must not be empty")
	}
	return nil
}
