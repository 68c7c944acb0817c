// Package storetest provides a conformance suite for voxelstore drivers.
package storetest

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/holmberd/go-voxelfile/pipeline"
	"github.com/holmberd/go-voxelfile/sequencer"
	"github.com/holmberd/go-voxelfile/testutil"
	"github.com/holmberd/go-voxelfile/voxel"
	"github.com/holmberd/go-voxelfile/voxelstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Driver is a voxelstore.Driver whose chunks must be provisioned before use.
type Driver interface {
	voxelstore.Driver
	voxelstore.Provisioner
}

// DriverTestSuite runs the storage contract against a driver implementation.
type DriverTestSuite struct {
	Name string

	// SetupDriver returns a driver with test data isolation and cleanup.
	SetupDriver func(t *testing.T) Driver
}

func NewDriverTestSuite(name string, setupDriver func(t *testing.T) Driver) *DriverTestSuite {
	return &DriverTestSuite{Name: name, SetupDriver: setupDriver}
}

func (s *DriverTestSuite) Run(t *testing.T) {
	t.Run(fmt.Sprintf("Test %s ReadWrite", s.Name), s.TestReadWrite)
	t.Run(fmt.Sprintf("Test %s Commit", s.Name), s.TestCommit)
	t.Run(fmt.Sprintf("Test %s NotProvisioned", s.Name), s.TestNotProvisioned)
	t.Run(fmt.Sprintf("Test %s Locations", s.Name), s.TestLocations)
	t.Run(fmt.Sprintf("Test %s ClosedSession", s.Name), s.TestClosedSession)
	t.Run(fmt.Sprintf("Test %s RoundTrip", s.Name), s.TestRoundTrip)
}

func (s *DriverTestSuite) open(t *testing.T, d Driver, location string) voxelstore.Session {
	t.Helper()
	sess, err := d.Open(context.Background(), location)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func (s *DriverTestSuite) TestReadWrite(t *testing.T) {
	ctx := context.Background()
	d := s.SetupDriver(t)
	require.NoError(t, d.Provision(ctx, "world", voxel.ChunkCoord{}, voxel.ChunkCoord{X: -1, Z: -1}))
	sess := s.open(t, d, "world")
	assert.NotEmpty(t, sess.ID())
	assert.Equal(t, "world", sess.Location())

	cells := map[voxel.Coordinate]voxel.Symbol{
		{X: 0, Y: 0, Z: 0}:      "minecraft:stone",
		{X: 15, Y: -64, Z: 15}:  "minecraft:dirt",
		{X: -1, Y: 319, Z: -16}: "minecraft:gold_block",
	}
	for c, sym := range cells {
		require.NoError(t, sess.Write(ctx, c, sym))
	}
	for c, sym := range cells {
		got, err := sess.Read(ctx, c)
		require.NoError(t, err, "should read own writes before commit")
		assert.Equal(t, sym, got)
	}

	got, err := sess.Read(ctx, voxel.Coordinate{X: 1, Y: 2, Z: 3})
	require.NoError(t, err)
	assert.Equal(t, voxel.Air, got, "unwritten cells should read as air")

	// Overwrite.
	require.NoError(t, sess.Write(ctx, voxel.Coordinate{}, "minecraft:glass"))
	got, err = sess.Read(ctx, voxel.Coordinate{})
	require.NoError(t, err)
	assert.Equal(t, voxel.Symbol("minecraft:glass"), got)
}

func (s *DriverTestSuite) TestCommit(t *testing.T) {
	ctx := context.Background()
	d := s.SetupDriver(t)
	require.NoError(t, d.Provision(ctx, "world", voxel.ChunkCoord{}))

	sess, err := d.Open(ctx, "world")
	require.NoError(t, err)
	require.NoError(t, sess.Write(ctx, voxel.Coordinate{X: 4, Y: 5, Z: 6}, "minecraft:stone"))
	require.NoError(t, sess.Commit(ctx))
	require.NoError(t, sess.Commit(ctx), "empty commit should be a no-op")
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close(), "second close should be a no-op")

	sess = s.open(t, d, "world")
	got, err := sess.Read(ctx, voxel.Coordinate{X: 4, Y: 5, Z: 6})
	require.NoError(t, err)
	assert.Equal(t, voxel.Symbol("minecraft:stone"), got, "committed writes should survive the session")
}

func (s *DriverTestSuite) TestNotProvisioned(t *testing.T) {
	ctx := context.Background()
	d := s.SetupDriver(t)
	require.NoError(t, d.Provision(ctx, "world", voxel.ChunkCoord{}))
	sess := s.open(t, d, "world")

	outside := voxel.Coordinate{X: 16, Y: 0, Z: 0}
	err := sess.Write(ctx, outside, "minecraft:stone")
	var notProvisioned *voxelstore.NotProvisionedError
	require.ErrorAs(t, err, &notProvisioned)
	assert.Equal(t, outside, notProvisioned.Coord)
	assert.Equal(t, "world", notProvisioned.Location)

	_, err = sess.Read(ctx, outside)
	assert.ErrorIs(t, err, voxelstore.ErrNotProvisioned)

	require.NoError(t, sess.Write(ctx, voxel.Coordinate{X: 15}, "minecraft:stone"))
}

func (s *DriverTestSuite) TestLocations(t *testing.T) {
	ctx := context.Background()
	d := s.SetupDriver(t)
	require.NoError(t, d.Provision(ctx, "world-a", voxel.ChunkCoord{}))
	require.NoError(t, d.Provision(ctx, "world-b", voxel.ChunkCoord{}))

	a := s.open(t, d, "world-a")
	_, err := d.Open(ctx, "world-a")
	assert.ErrorIs(t, err, voxelstore.ErrLocationBusy, "a location admits one session")

	b := s.open(t, d, "world-b")
	require.NoError(t, a.Write(ctx, voxel.Coordinate{}, "minecraft:stone"))
	require.NoError(t, a.Commit(ctx))
	got, err := b.Read(ctx, voxel.Coordinate{})
	require.NoError(t, err)
	assert.Equal(t, voxel.Air, got, "locations should be isolated")

	require.NoError(t, a.Close())
	again := s.open(t, d, "world-a")
	assert.NotEqual(t, a.ID(), again.ID())

	_, err = d.Open(ctx, "")
	assert.Error(t, err)
}

func (s *DriverTestSuite) TestClosedSession(t *testing.T) {
	ctx := context.Background()
	d := s.SetupDriver(t)
	require.NoError(t, d.Provision(ctx, "world", voxel.ChunkCoord{}))
	sess, err := d.Open(ctx, "world")
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	_, err = sess.Read(ctx, voxel.Coordinate{})
	assert.ErrorIs(t, err, voxelstore.ErrSessionClosed)
	assert.ErrorIs(t, sess.Write(ctx, voxel.Coordinate{}, "minecraft:stone"), voxelstore.ErrSessionClosed)
	assert.ErrorIs(t, sess.Commit(ctx), voxelstore.ErrSessionClosed)
}

func (s *DriverTestSuite) TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := s.SetupDriver(t)
	table := testutil.NewSymbolTable(t, nil)
	layout := sequencer.Params{Origin: voxel.Coordinate{X: -16, Z: 0}, Footprint: 8, Floor: -2, Ceiling: 2}

	enc, err := pipeline.NewEncoder(table, layout)
	require.NoError(t, err)
	dec, err := pipeline.NewDecoder(table, layout)
	require.NoError(t, err)

	payload := make([]byte, layout.Capacity()*5+17)
	rand.New(rand.NewSource(7)).Read(payload)
	require.NoError(t, voxelstore.ProvisionLayout(ctx, d, "world", layout, int64(len(payload))+1))

	res, err := enc.Store(ctx, d, "world", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), res.Bytes)

	var out bytes.Buffer
	n, err := dec.Load(ctx, d, "world", &out)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.True(t, bytes.Equal(payload, out.Bytes()), "decoded payload differs")
}
