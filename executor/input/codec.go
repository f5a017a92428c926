package input

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
)

// EncodePayload serializes a worker input for a function invocation
// payload. Invocation payloads are size-limited, so the JSON is snappy
// compressed.
func EncodePayload(in interface{}) ([]byte, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize worker input: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

// DecodePayload is the inverse of EncodePayload.
func DecodePayload(payload []byte, out interface{}) error {
	data, err := snappy.Decode(nil, payload)
	if err != nil {
		return fmt.Errorf("failed to decompress worker input: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to deserialize worker input: %w", err)
	}
	return nil
}
