package mcfunction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/holmberd/go-voxelfile/logging"
	"github.com/holmberd/go-voxelfile/pipeline"
	"github.com/holmberd/go-voxelfile/sequencer"
	"github.com/holmberd/go-voxelfile/testutil"
	"github.com/holmberd/go-voxelfile/voxel"
	"github.com/holmberd/go-voxelfile/voxelstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logging.SetLogger(nil)
	m.Run()
}

func TestCommand(t *testing.T) {
	tests := []struct {
		coord  voxel.Coordinate
		sym    voxel.Symbol
		expect string
	}{
		{voxel.Coordinate{X: 0, Y: 0, Z: 0}, "STONE", "setblock 0 0 0 minecraft:stone"},
		{voxel.Coordinate{X: -3, Y: -64, Z: 12}, "Gold_Block", "setblock -3 -64 12 minecraft:gold_block"},
		{voxel.Coordinate{X: 1, Y: 2, Z: 3}, "minecraft:dirt", "setblock 1 2 3 minecraft:dirt"},
		{voxel.Coordinate{X: 1, Y: 2, Z: 3}, "mymod:Crate", "setblock 1 2 3 mymod:crate"},
		{voxel.Coordinate{X: 1, Y: 2, Z: 3}, "mymod:deco/lamp.v2", "setblock 1 2 3 mymod:deco/lamp.v2"},
	}
	for _, tt := range tests {
		t.Run(tt.expect, func(t *testing.T) {
			got, err := Command(tt.coord, tt.sym)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}

	invalid := []voxel.Symbol{
		"",
		"stone\nsetblock 0 0 0 tnt",
		"stone 1",
		"minecraft:stone[facing=up]",
		"a:b:c",
		":stone",
		"stone:",
		"minecraft:",
	}
	for _, sym := range invalid {
		t.Run(fmt.Sprintf("invalid %q", sym), func(t *testing.T) {
			_, err := Command(voxel.Coordinate{}, sym)
			assert.ErrorIs(t, err, ErrInvalidBlockID)
		})
	}
}

func TestBlockIDCollision(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	e := New(&out)
	sess, err := e.Open(ctx, "world")
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.Write(ctx, voxel.Coordinate{X: 0}, "minecraft:stone"))
	require.NoError(t, sess.Write(ctx, voxel.Coordinate{X: 1}, "minecraft:stone"))
	err = sess.Write(ctx, voxel.Coordinate{X: 2}, "STONE")
	assert.ErrorIs(t, err, ErrBlockIDCollision)
	err = sess.Write(ctx, voxel.Coordinate{X: 3}, "stone")
	assert.ErrorIs(t, err, ErrBlockIDCollision)

	// Ids are claimed per exporter, across locations.
	other, err := e.Open(ctx, "other")
	require.NoError(t, err)
	defer other.Close()
	assert.ErrorIs(t, other.Write(ctx, voxel.Coordinate{}, "Minecraft:Stone"), ErrBlockIDCollision)

	err = sess.Write(ctx, voxel.Coordinate{X: 4}, "stone\nkill @a")
	assert.ErrorIs(t, err, ErrInvalidBlockID)
	require.NoError(t, sess.Commit(ctx))
	assert.Equal(t, "setblock 0 0 0 minecraft:stone\nsetblock 1 0 0 minecraft:stone\n", out.String())
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	e := New(&out)

	sess, err := e.Open(ctx, "world")
	require.NoError(t, err)
	_, err = e.Open(ctx, "world")
	assert.ErrorIs(t, err, voxelstore.ErrLocationBusy)

	require.NoError(t, sess.Write(ctx, voxel.Coordinate{X: 1}, "stone"))
	require.NoError(t, sess.Write(ctx, voxel.Coordinate{X: 2}, "dirt"))
	assert.Empty(t, out.String(), "commands should be buffered until commit")
	_, err = sess.Read(ctx, voxel.Coordinate{})
	assert.ErrorIs(t, err, voxelstore.ErrWriteOnly)

	require.NoError(t, sess.Commit(ctx))
	assert.Equal(t, "setblock 1 0 0 minecraft:stone\nsetblock 2 0 0 minecraft:dirt\n", out.String())

	require.NoError(t, sess.Write(ctx, voxel.Coordinate{X: 3}, "glass"))
	require.NoError(t, sess.Close())
	assert.NotContains(t, out.String(), "glass", "uncommitted commands should be dropped")
	assert.ErrorIs(t, sess.Commit(ctx), voxelstore.ErrSessionClosed)

	_, err = e.Open(ctx, "world")
	assert.NoError(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCommitWriteError(t *testing.T) {
	ctx := context.Background()
	sess, err := New(failingWriter{}).Open(ctx, "world")
	require.NoError(t, err)
	defer sess.Close()
	require.NoError(t, sess.Write(ctx, voxel.Coordinate{}, "stone"))
	assert.ErrorContains(t, sess.Commit(ctx), "disk full")
}

func TestExportPass(t *testing.T) {
	ctx := context.Background()
	table := testutil.NewSymbolTable(t, nil)
	layout := sequencer.Params{Footprint: 2, Floor: 0, Ceiling: 2}
	enc, err := pipeline.NewEncoder(table, layout)
	require.NoError(t, err)

	var out bytes.Buffer
	res, err := enc.Store(ctx, New(&out), "world", strings.NewReader("hi"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	h, err := table.Encode('h')
	require.NoError(t, err)
	first, err := Command(voxel.Coordinate{}, h)
	require.NoError(t, err)
	assert.Equal(t, first, lines[0])
	last, err := Command(res.Terminator, table.Terminator())
	require.NoError(t, err)
	assert.Equal(t, last, lines[2])
}
