package binding

import (
	"encoding/json"
	"fmt"
)

// EncodeArgs encodes an argument tuple as a JSON array. A call with no
// arguments encodes as an empty array.
func EncodeArgs(args ...any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode args failed: %w", err)
	}
	return data, nil
}

// DecodeArgs decodes a JSON argument tuple into the given pointers. An arity
// mismatch is a decode failure, which the dispatcher reports back to the
// caller as a failure response.
func DecodeArgs(payload []byte, ptrs ...any) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return fmt.Errorf("decode args failed: %w", err)
	}
	if len(raw) != len(ptrs) {
		return fmt.Errorf("decode args failed: got %d arguments, want %d", len(raw), len(ptrs))
	}
	for i, r := range raw {
		if err := json.Unmarshal(r, ptrs[i]); err != nil {
			return fmt.Errorf("decode arg %d failed: %w", i, err)
		}
	}
	return nil
}

// EncodeResult encodes a method's return value. Void methods send an empty
// payload instead.
func EncodeResult(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result failed: %w", err)
	}
	return data, nil
}

// DecodeResult decodes a reply payload into out.
func DecodeResult(payload []byte, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode result failed: %w", err)
	}
	return nil
}
