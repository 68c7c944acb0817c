package symboltable

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/holmberd/go-voxelfile/encoder"
	"github.com/holmberd/go-voxelfile/voxel"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Description is the serialized form of a table. Symbols are keyed by the
// decimal byte value ("0" through "255").
//
// Example (JSON):
//
//	{"version": "v1", "terminator": "minecraft:bedrock", "symbols": {"0": "minecraft:stone", ...}}
type Description struct {
	Version    string                  `json:"version,omitempty" cbor:"version,omitempty"`
	Terminator voxel.Symbol            `json:"terminator" cbor:"terminator"`
	Symbols    map[string]voxel.Symbol `json:"symbols" cbor:"symbols"`
}

// Describe returns the serializable description of the table.
func (t *Table) Describe() Description {
	d := Description{
		Version:    t.version,
		Terminator: t.terminator,
		Symbols:    make(map[string]voxel.Symbol, 256),
	}
	for v, s := range t.symbols {
		d.Symbols[strconv.Itoa(v)] = s
	}
	return d
}

// FromDescription builds a table from its serialized description.
func FromDescription(d Description) (*Table, error) {
	symbols, err := parseSymbolKeys(d.Symbols)
	if err != nil {
		return nil, err
	}
	return New(d.Version, symbols, d.Terminator)
}

func parseSymbolKeys(in map[string]voxel.Symbol) (map[byte]voxel.Symbol, error) {
	out := make(map[byte]voxel.Symbol, len(in))
	for k, s := range in {
		v, err := strconv.ParseUint(k, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("symboltable: invalid byte key %q: %w", k, err)
		}
		// "65" and "065" would otherwise both claim byte 65.
		if strconv.Itoa(int(v)) != k {
			return nil, fmt.Errorf("symboltable: byte key %q must be written as %q", k, strconv.Itoa(int(v)))
		}
		out[byte(v)] = s
	}
	return out, nil
}

// MarshalProto encodes the description as a google.protobuf.Struct (implements ProtoMarshaler).
func (d Description) MarshalProto() ([]byte, error) {
	symbols := make(map[string]any, len(d.Symbols))
	for k, s := range d.Symbols {
		symbols[k] = string(s)
	}
	st, err := structpb.NewStruct(map[string]any{
		"version":    d.Version,
		"terminator": string(d.Terminator),
		"symbols":    symbols,
	})
	if err != nil {
		return nil, fmt.Errorf("symboltable: %w", err)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(st)
}

// UnmarshalProto decodes a google.protobuf.Struct description (implements ProtoUnmarshaler).
func (d *Description) UnmarshalProto(data []byte) error {
	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return fmt.Errorf("symboltable: failed to unmarshal description: %w", err)
	}
	fields := st.GetFields()
	desc := Description{
		Version:    fields["version"].GetStringValue(),
		Terminator: voxel.Symbol(fields["terminator"].GetStringValue()),
	}
	symbols := fields["symbols"].GetStructValue().GetFields()
	desc.Symbols = make(map[string]voxel.Symbol, len(symbols))
	for k, v := range symbols {
		if _, ok := v.GetKind().(*structpb.Value_StringValue); !ok {
			return fmt.Errorf("symboltable: symbol for key %q is not a string", k)
		}
		desc.Symbols[k] = voxel.Symbol(v.GetStringValue())
	}
	*d = desc
	return nil
}

// Load reads a description with the given codec and builds the table.
func Load(r io.Reader, codec encoder.Codec) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("symboltable: %w", err)
	}
	var d Description
	if err := codec.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return FromDescription(d)
}

// LoadFile loads a table description, choosing the codec from the file extension.
func LoadFile(path string) (*Table, error) {
	codec, err := encoder.ForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symboltable: %w", err)
	}
	defer f.Close()
	return Load(f, codec)
}

// LoadLegacy reads the flat JSON lookup format, {"0": "STONE", "1": "DIRT", ...},
// which carries no terminator, so one must be supplied.
func LoadLegacy(r io.Reader, terminator voxel.Symbol) (*Table, error) {
	lookup := map[string]voxel.Symbol{}
	dec := json.NewDecoder(r)
	if err := dec.Decode(&lookup); err != nil {
		return nil, fmt.Errorf("symboltable: failed to decode legacy lookup: %w", err)
	}
	symbols, err := parseSymbolKeys(lookup)
	if err != nil {
		return nil, err
	}
	return New("", symbols, terminator)
}

// Save writes the table description with the given codec.
func Save(w io.Writer, t *Table, codec encoder.Codec) error {
	d := t.Describe()
	data, err := codec.Marshal(d)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("symboltable: %w", err)
	}
	return nil
}
