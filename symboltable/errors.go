package symboltable

import (
	"errors"
	"fmt"

	"github.com/holmberd/go-voxelfile/voxel"
)

var (
	ErrUnmappedByte    = errors.New("symboltable: unmapped byte")
	ErrUnknownSymbol   = errors.New("symboltable: unknown symbol")
	ErrDuplicateSymbol = errors.New("symboltable: duplicate symbol")
)

// UnmappedByteError reports a byte value without a symbol.
type UnmappedByteError struct {
	Value byte
}

func (e *UnmappedByteError) Error() string {
	return fmt.Sprintf("symboltable: byte 0x%02x has no symbol", e.Value)
}

func (e *UnmappedByteError) Unwrap() error { return ErrUnmappedByte }

// UnknownSymbolError reports a symbol that does not decode to a byte value.
// Seen at decode time it means the storage holds unrelated content, or the
// table differs from the one used to encode.
type UnknownSymbolError struct {
	Symbol voxel.Symbol
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("symboltable: symbol %q is not in the table", e.Symbol)
}

func (e *UnknownSymbolError) Unwrap() error { return ErrUnknownSymbol }

// DuplicateSymbolError reports a symbol assigned to more than one slot.
// Slot 256 is the terminator.
type DuplicateSymbolError struct {
	Symbol      voxel.Symbol
	First, Then int
}

func (e *DuplicateSymbolError) Error() string {
	return fmt.Sprintf(
		"symboltable: symbol %q assigned to both %s and %s",
		e.Symbol, slotName(e.First), slotName(e.Then),
	)
}

func (e *DuplicateSymbolError) Unwrap() error { return ErrDuplicateSymbol }

func slotName(slot int) string {
	if slot == terminatorSlot {
		return "terminator"
	}
	return fmt.Sprintf("byte 0x%02x", slot)
}
