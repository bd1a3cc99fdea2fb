package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/alfazet/musing"
)

// arg decodes the required field key of fields into T. A missing key or
// a type mismatch is a malformed-request error, per spec.md §4.6 step 4.
func arg[T any](fields map[string]json.RawMessage, key string) (T, error) {
	var zero T
	raw, ok := fields[key]
	if !ok {
		return zero, fmt.Errorf("%w: missing %q", musing.ErrMalformedRequest, key)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("%w: invalid %q", musing.ErrMalformedRequest, key)
	}
	return v, nil
}

// optionalArg decodes key into T if present, returning ok=false (and
// def) when the key is absent or fails to decode.
func optionalArg[T any](fields map[string]json.RawMessage, key string, def T) (T, bool) {
	raw, ok := fields[key]
	if !ok {
		return def, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, false
	}
	return v, true
}
