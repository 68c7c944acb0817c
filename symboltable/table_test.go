package symboltable

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/holmberd/go-voxelfile/encoder"
	"github.com/holmberd/go-voxelfile/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTerminator voxel.Symbol = "minecraft:bedrock"

func testSymbols() map[byte]voxel.Symbol {
	symbols := make(map[byte]voxel.Symbol, 256)
	for v := range 256 {
		symbols[byte(v)] = voxel.Symbol(fmt.Sprintf("test:block_%03d", v))
	}
	return symbols
}

func newTestTable(t *testing.T) *Table {
	t.Helper()
	table, err := New("test", testSymbols(), testTerminator)
	require.NoError(t, err)
	return table
}

func TestTable(t *testing.T) {
	t.Run("Encode and Decode are inverse for every byte", func(t *testing.T) {
		table := newTestTable(t)
		seen := make(map[voxel.Symbol]byte, 256)
		for v := range 256 {
			s, err := table.Encode(byte(v))
			require.NoError(t, err)
			assert.NotEqual(t, table.Terminator(), s, "no byte should encode to the terminator")
			prev, dup := seen[s]
			assert.False(t, dup, "bytes 0x%02x and 0x%02x share symbol %q", prev, v, s)
			seen[s] = byte(v)

			got, err := table.Decode(s)
			require.NoError(t, err)
			assert.Equal(t, byte(v), got)
		}
	})

	t.Run("Decode unknown symbol", func(t *testing.T) {
		table := newTestTable(t)
		_, err := table.Decode("minecraft:dirt")
		var unknown *UnknownSymbolError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, voxel.Symbol("minecraft:dirt"), unknown.Symbol)
		assert.ErrorIs(t, err, ErrUnknownSymbol)
	})

	t.Run("Decode terminator is not a byte", func(t *testing.T) {
		table := newTestTable(t)
		_, err := table.Decode(table.Terminator())
		assert.ErrorIs(t, err, ErrUnknownSymbol)
		assert.True(t, table.IsTerminator(testTerminator))
	})

	t.Run("Encode on zero table", func(t *testing.T) {
		var table Table
		_, err := table.Encode(7)
		var unmapped *UnmappedByteError
		require.ErrorAs(t, err, &unmapped)
		assert.Equal(t, byte(7), unmapped.Value)
	})

	t.Run("Palette order", func(t *testing.T) {
		table := newTestTable(t)
		palette := table.Palette()
		require.Len(t, palette, Size)
		assert.Equal(t, voxel.Symbol("test:block_000"), palette[0])
		assert.Equal(t, testTerminator, palette[256])

		clone, err := FromPalette("clone", palette)
		require.NoError(t, err)
		assert.Equal(t, palette, clone.Palette())
	})
}

func TestNewValidation(t *testing.T) {
	t.Run("Missing byte", func(t *testing.T) {
		symbols := testSymbols()
		delete(symbols, 0x41)
		_, err := New("", symbols, testTerminator)
		var unmapped *UnmappedByteError
		require.ErrorAs(t, err, &unmapped)
		assert.Equal(t, byte(0x41), unmapped.Value)
	})

	t.Run("Empty symbol", func(t *testing.T) {
		symbols := testSymbols()
		symbols[9] = ""
		_, err := New("", symbols, testTerminator)
		assert.ErrorIs(t, err, ErrUnmappedByte)
	})

	t.Run("Duplicate symbol", func(t *testing.T) {
		symbols := testSymbols()
		symbols[200] = symbols[10]
		_, err := New("", symbols, testTerminator)
		var dup *DuplicateSymbolError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, 10, dup.First)
		assert.Equal(t, 200, dup.Then)
	})

	t.Run("Terminator collides with byte", func(t *testing.T) {
		symbols := testSymbols()
		symbols[3] = testTerminator
		_, err := New("", symbols, testTerminator)
		var dup *DuplicateSymbolError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, 3, dup.First)
		assert.Equal(t, terminatorSlot, dup.Then)
		assert.Contains(t, err.Error(), "terminator")
	})

	t.Run("Empty terminator", func(t *testing.T) {
		_, err := New("", testSymbols(), "")
		assert.Error(t, err)
	})

	t.Run("Short palette", func(t *testing.T) {
		_, err := FromPalette("", make([]voxel.Symbol, 256))
		assert.Error(t, err)
	})
}

func TestDescription(t *testing.T) {
	codecs := map[string]encoder.Codec{
		"json":  encoder.JSONEncoder{},
		"cbor":  encoder.CBOREncoder{},
		"proto": encoder.ProtoEncoder{},
	}
	for name, codec := range codecs {
		t.Run(fmt.Sprintf("Save and Load %s", name), func(t *testing.T) {
			table := newTestTable(t)
			var buf bytes.Buffer
			require.NoError(t, Save(&buf, table, codec))

			loaded, err := Load(&buf, codec)
			require.NoError(t, err)
			assert.Equal(t, table.Version(), loaded.Version())
			assert.Equal(t, table.Palette(), loaded.Palette())
		})
	}

	t.Run("Invalid byte key", func(t *testing.T) {
		d := newTestTable(t).Describe()
		d.Symbols["256"] = "test:overflow"
		_, err := FromDescription(d)
		assert.ErrorContains(t, err, "invalid byte key")
	})

	t.Run("Non-canonical byte key", func(t *testing.T) {
		for _, key := range []string{"065", "00", "0x41"} {
			d := newTestTable(t).Describe()
			d.Symbols[key] = "test:other"
			for range 20 {
				_, err := FromDescription(d)
				assert.Error(t, err, "key %q", key)
			}
		}
	})

	t.Run("LoadFile picks codec by extension", func(t *testing.T) {
		table := newTestTable(t)
		path := filepath.Join(t.TempDir(), "lookup.cbor")
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, Save(f, table, encoder.CBOREncoder{}))
		require.NoError(t, f.Close())

		loaded, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, table.Palette(), loaded.Palette())

		_, err = LoadFile(filepath.Join(t.TempDir(), "lookup.txt"))
		assert.ErrorContains(t, err, "no codec")
	})
}

func TestLoadLegacy(t *testing.T) {
	var b strings.Builder
	b.WriteString("{")
	for v := range 256 {
		if v > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%q: %q", fmt.Sprint(v), fmt.Sprintf("BLOCK_%d", v))
	}
	b.WriteString("}")

	table, err := LoadLegacy(strings.NewReader(b.String()), "BEDROCK")
	require.NoError(t, err)
	s, err := table.Encode(0xFF)
	require.NoError(t, err)
	assert.Equal(t, voxel.Symbol("BLOCK_255"), s)
	assert.Equal(t, voxel.Symbol("BEDROCK"), table.Terminator())

	_, err = LoadLegacy(strings.NewReader(`{"0": "STONE"}`), "BEDROCK")
	assert.True(t, errors.Is(err, ErrUnmappedByte))

	// A padded key must not race the canonical one for the same byte.
	padded := strings.TrimSuffix(b.String(), "}") + `, "065": "OTHER"}`
	_, err = LoadLegacy(strings.NewReader(padded), "BEDROCK")
	assert.ErrorContains(t, err, `byte key "065"`)
}
