package kinds

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrBadField is returned when a remote document has a missing or mistyped field.
var ErrBadField = errors.New("bad remote field")

// String reads a required string field.
func String(fields map[string]any, key string) (string, error) {
	switch v := fields[key].(type) {
	case string:
		return v, nil
	case nil:
		return "", fmt.Errorf("%w: %q is missing", ErrBadField, key)
	default:
		return "", fmt.Errorf("%w: %q is %T, want string", ErrBadField, key, v)
	}
}

// OptionalString reads a string field that may be absent.
func OptionalString(fields map[string]any, key string) (string, error) {
	if _, ok := fields[key]; !ok || fields[key] == nil {
		return "", nil
	}
	return String(fields, key)
}

// Int64 reads a required integer field. Remote transports commonly hand
// numbers back as float64, so integral floats are accepted.
func Int64(fields map[string]any, key string) (int64, error) {
	v, ok, err := optionalInt64(fields, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %q is missing", ErrBadField, key)
	}
	return v, nil
}

// OptionalInt64 reads an integer field that may be absent or null.
func OptionalInt64(fields map[string]any, key string) (*int64, error) {
	v, ok, err := optionalInt64(fields, key)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// OptionalFloat64 reads a number field that may be absent or null.
func OptionalFloat64(fields map[string]any, key string) (*float64, error) {
	var f float64
	switch v := fields[key].(type) {
	case nil:
		return nil, nil
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrBadField, key, err)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("%w: %q is %T, want number", ErrBadField, key, v)
	}
	return &f, nil
}

func optionalInt64(fields map[string]any, key string) (int64, bool, error) {
	switch v := fields[key].(type) {
	case nil:
		return 0, false, nil
	case int64:
		return v, true, nil
	case int:
		return int64(v), true, nil
	case int32:
		return int64(v), true, nil
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return 0, false, fmt.Errorf("%w: %q is not an integer: %v", ErrBadField, key, v)
		}
		return int64(v), true, nil
	case json.Number:
		n, err := strconv.ParseInt(v.String(), 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%w: %q: %w", ErrBadField, key, err)
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("%w: %q is %T, want integer", ErrBadField, key, v)
	}
}
