package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/holmberd/go-voxelfile/logging"
	"github.com/holmberd/go-voxelfile/voxel"
	"github.com/holmberd/go-voxelfile/voxelstore/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logging.SetLogger(nil)
	m.Run()
}

func setupStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "voxels.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	suite := storetest.NewDriverTestSuite("sqlitestore", func(t *testing.T) storetest.Driver {
		return setupStore(t)
	})
	suite.Run(t)
}

func TestMigrations(t *testing.T) {
	s := setupStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Up again is a no-op.
	require.NoError(t, s.MigrateUp())

	require.NoError(t, s.MigrateDown())
	version, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	require.NoError(t, s.MigrateUp())
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "voxels.db")
	s, err := Open(path, WithAutoProvision())
	require.NoError(t, err)
	sess, err := s.Open(ctx, "world")
	require.NoError(t, err)
	require.NoError(t, sess.Write(ctx, voxel.Coordinate{X: -5, Y: 70, Z: 9}, "minecraft:stone"))
	require.NoError(t, sess.Commit(ctx))
	require.NoError(t, sess.Close())
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	sess, err = s.Open(ctx, "world")
	require.NoError(t, err)
	defer sess.Close()
	got, err := sess.Read(ctx, voxel.Coordinate{X: -5, Y: 70, Z: 9})
	require.NoError(t, err)
	assert.Equal(t, voxel.Symbol("minecraft:stone"), got)
}

func TestAirAndDiscard(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t, WithAutoProvision())
	sess, err := s.Open(ctx, "world")
	require.NoError(t, err)

	c := voxel.Coordinate{X: 1, Y: 2, Z: 3}
	require.NoError(t, sess.Write(ctx, c, "minecraft:stone"))
	require.NoError(t, sess.Commit(ctx))
	require.NoError(t, sess.Write(ctx, c, voxel.Air))
	require.NoError(t, sess.Commit(ctx))
	n, err := s.Len(ctx, "world")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "air should delete the cell")

	require.NoError(t, sess.Write(ctx, c, "minecraft:dirt"))
	require.NoError(t, sess.Close())
	n, err = s.Len(ctx, "world")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "uncommitted writes should be discarded")
}

func TestSessionRecords(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t, WithAutoProvision())

	first, err := s.Open(ctx, "world")
	require.NoError(t, err)
	for x := range 3 {
		require.NoError(t, first.Write(ctx, voxel.Coordinate{X: x}, "minecraft:stone"))
	}
	require.NoError(t, first.Commit(ctx))
	require.NoError(t, first.Close())

	second, err := s.Open(ctx, "world")
	require.NoError(t, err)
	defer second.Close()

	records, err := s.Sessions(ctx, "world")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, SessionRecord{ID: first.ID(), Location: "world", CommittedCells: 3, Closed: true}, records[0])
	assert.Equal(t, SessionRecord{ID: second.ID(), Location: "world"}, records[1])
}
