package testutil

import (
	"fmt"
	"testing"

	"github.com/holmberd/go-voxelfile/symboltable"
	"github.com/holmberd/go-voxelfile/voxel"
)

// Terminator is the end-of-stream symbol of tables built by NewSymbolTable.
const Terminator voxel.Symbol = "test:terminator"

// NewSymbolTable returns a complete table mapping byte v to "test:block_<v>".
// Overrides replace individual byte symbols.
func NewSymbolTable(t *testing.T, overrides map[byte]voxel.Symbol) *symboltable.Table {
	t.Helper()
	symbols := make(map[byte]voxel.Symbol, 256)
	for v := range 256 {
		symbols[byte(v)] = voxel.Symbol(fmt.Sprintf("test:block_%03d", v))
	}
	for v, s := range overrides {
		symbols[v] = s
	}
	table, err := symboltable.New("test", symbols, Terminator)
	if err != nil {
		t.Fatalf("failed to build symbol table: %v", err)
	}
	return table
}
