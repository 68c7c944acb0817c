package encoder

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode sorts map keys so equal values always produce equal bytes.
var cborEncMode, _ = cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()

// Implements Codec interface.
type CBOREncoder struct{}

func (CBOREncoder) Marshal(v any) ([]byte, error) {
	data, err := cborEncMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	return data, nil
}

func (CBOREncoder) Unmarshal(data []byte, out any) error {
	if err := cbor.Unmarshal(data, out); err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	return nil
}
