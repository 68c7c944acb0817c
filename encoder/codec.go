// Package encoder provides the serialization formats a symbol table
// description can be stored in.
package encoder

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, out any) error
}

// ForPath selects a codec from the file extension of path.
//   - ".json"           => JSONEncoder
//   - ".cbor"           => CBOREncoder
//   - ".pb", ".binpb"   => ProtoEncoder
func ForPath(path string) (Codec, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return JSONEncoder{}, nil
	case ".cbor":
		return CBOREncoder{}, nil
	case ".pb", ".binpb":
		return ProtoEncoder{}, nil
	default:
		return nil, fmt.Errorf("encoder: no codec for file extension %q", ext)
	}
}
