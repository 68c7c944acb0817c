package encoder

import (
	"encoding/json"
	"fmt"
)

// Implements Codec interface.
type JSONEncoder struct{}

func (JSONEncoder) Marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	return data, nil
}

func (JSONEncoder) Unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	return nil
}
