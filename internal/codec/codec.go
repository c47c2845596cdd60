// Package codec is the on-disk encoding shared by the storage backends:
// JSON compressed with snappy.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
)

func Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

func Decode(data []byte, v any) error {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return fmt.Errorf("codec: decompress: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("codec: unmarshal: %w", err)
	}
	return nil
}
