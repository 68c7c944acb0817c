// Package symboltable maps byte values to block symbols and back.
//
// A Table is a total, injective mapping of the 256 byte values onto symbols,
// plus one reserved terminator symbol that no byte encodes to. Tables are
// immutable after construction and safe for concurrent use.
package symboltable

import (
	"errors"
	"fmt"

	"github.com/holmberd/go-voxelfile/voxel"
)

const (
	// Size is the number of symbols in a complete table, terminator included.
	Size = 257

	terminatorSlot = 256
)

type Table struct {
	version    string
	symbols    [256]voxel.Symbol
	values     map[voxel.Symbol]byte
	terminator voxel.Symbol
}

// New builds a table from a byte->symbol mapping and a terminator.
// Every byte value must be mapped, symbols must be unique, and the terminator
// must not be used by any byte value.
func New(version string, symbols map[byte]voxel.Symbol, terminator voxel.Symbol) (*Table, error) {
	t := &Table{
		version:    version,
		values:     make(map[voxel.Symbol]byte, 256),
		terminator: terminator,
	}
	if terminator == "" {
		return nil, errors.New("symboltable: terminator must not be empty")
	}
	seen := map[voxel.Symbol]int{terminator: terminatorSlot}
	for v := range 256 {
		s, ok := symbols[byte(v)]
		if !ok || s == "" {
			return nil, &UnmappedByteError{Value: byte(v)}
		}
		if prev, dup := seen[s]; dup {
			first, then := prev, v
			if prev == terminatorSlot {
				first, then = v, terminatorSlot
			}
			return nil, &DuplicateSymbolError{Symbol: s, First: first, Then: then}
		}
		seen[s] = v
		t.symbols[v] = s
		t.values[s] = byte(v)
	}
	return t, nil
}

// FromPalette builds a table from an ordered palette: entry i encodes byte i
// and entry 256 is the terminator. Extra entries are ignored.
func FromPalette(version string, palette []voxel.Symbol) (*Table, error) {
	if len(palette) < Size {
		return nil, fmt.Errorf("symboltable: palette has %d symbols, need %d", len(palette), Size)
	}
	symbols := make(map[byte]voxel.Symbol, 256)
	for v := range 256 {
		symbols[byte(v)] = palette[v]
	}
	return New(version, symbols, palette[terminatorSlot])
}

// Version returns the version label of the table description, if any.
func (t *Table) Version() string {
	return t.version
}

// Encode returns the symbol for a byte value.
func (t *Table) Encode(b byte) (voxel.Symbol, error) {
	s := t.symbols[b]
	if s == "" {
		return "", &UnmappedByteError{Value: b}
	}
	return s, nil
}

// Decode returns the byte value for a symbol.
// The terminator and any symbol outside the table yield an UnknownSymbolError.
func (t *Table) Decode(s voxel.Symbol) (byte, error) {
	v, ok := t.values[s]
	if !ok {
		return 0, &UnknownSymbolError{Symbol: s}
	}
	return v, nil
}

// Terminator returns the reserved end-of-stream symbol.
func (t *Table) Terminator() voxel.Symbol {
	return t.terminator
}

// IsTerminator reports whether s marks the end of a stream.
func (t *Table) IsTerminator(s voxel.Symbol) bool {
	return s == t.terminator
}

// Palette returns the symbols in slot order, terminator last.
func (t *Table) Palette() []voxel.Symbol {
	p := make([]voxel.Symbol, 0, Size)
	p = append(p, t.symbols[:]...)
	return append(p, t.terminator)
}
