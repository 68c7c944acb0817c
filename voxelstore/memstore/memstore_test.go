package memstore

import (
	"context"
	"testing"

	"github.com/holmberd/go-voxelfile/logging"
	"github.com/holmberd/go-voxelfile/voxel"
	"github.com/holmberd/go-voxelfile/voxelstore"
	"github.com/holmberd/go-voxelfile/voxelstore/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logging.SetLogger(nil)
	m.Run()
}

func TestStore(t *testing.T) {
	suite := storetest.NewDriverTestSuite("memstore", func(t *testing.T) storetest.Driver {
		return New()
	})
	suite.Run(t)
}

func TestAutoProvision(t *testing.T) {
	ctx := context.Background()
	s := New(WithAutoProvision())
	sess, err := s.Open(ctx, "world")
	require.NoError(t, err)
	defer sess.Close()

	far := voxel.Coordinate{X: -1000, Y: 12, Z: 5000}
	got, err := sess.Read(ctx, far)
	require.NoError(t, err)
	assert.Equal(t, voxel.Air, got)
	require.NoError(t, sess.Write(ctx, far, "minecraft:stone"))
	require.NoError(t, sess.Commit(ctx))
	assert.Equal(t, 1, s.Len("world"))
}

func TestUncommittedWritesDiscarded(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Provision(ctx, "world", voxel.ChunkCoord{}))

	sess, err := s.Open(ctx, "world")
	require.NoError(t, err)
	require.NoError(t, sess.Write(ctx, voxel.Coordinate{}, "minecraft:stone"))
	require.NoError(t, sess.Close())
	assert.Equal(t, 0, s.Len("world"))

	// Writing air clears a committed cell.
	sess, err = s.Open(ctx, "world")
	require.NoError(t, err)
	require.NoError(t, sess.Write(ctx, voxel.Coordinate{}, "minecraft:stone"))
	require.NoError(t, sess.Commit(ctx))
	assert.Equal(t, 1, s.Len("world"))
	require.NoError(t, sess.Write(ctx, voxel.Coordinate{}, voxel.Air))
	require.NoError(t, sess.Commit(ctx))
	assert.Equal(t, 0, s.Len("world"))
	require.NoError(t, sess.Close())
}

func TestCellIndex(t *testing.T) {
	assert.Equal(t, cellIndex{y: 7, xz: 15}, indexOf(voxel.Coordinate{X: -1, Y: 7, Z: 16}))
	assert.Equal(t, cellIndex{y: -64, xz: 3 | 15<<4}, indexOf(voxel.Coordinate{X: 3, Y: -64, Z: -1}))
}

func TestProvisionValidation(t *testing.T) {
	err := New().Provision(context.Background(), "")
	assert.Error(t, err)

	sess, err := New().Open(context.Background(), "world")
	require.NoError(t, err)
	defer sess.Close()
	_, err = sess.Read(context.Background(), voxel.Coordinate{})
	assert.ErrorIs(t, err, voxelstore.ErrNotProvisioned)
}
