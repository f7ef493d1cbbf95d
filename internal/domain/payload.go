package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnexpectedShape is returned when a source payload does not have the
// structure a mapper expects (e.g. an object where a list should be).
var ErrUnexpectedShape = errors.New("unexpected payload shape")

// Payload is one decoded JSON object returned by the remote API.
// Numbers decode as float64 (or json.Number when the decoder uses UseNumber).
type Payload map[string]interface{}

// Int returns the value at key as an int64.
// Parameters:
//   - key: field name.
// Returns:
//   - int64: converted value.
//   - bool: false if the field is absent, null, or not numeric.
func (p Payload) Int(key string) (int64, bool) {
	switch v := p[key].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Float returns the value at key as a float64.
func (p Payload) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// String returns a non-empty string value at key.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Bool returns the boolean value at key.
func (p Payload) Bool(key string) (bool, bool) {
	v, ok := p[key].(bool)
	return v, ok
}

// Object returns the nested object at key.
func (p Payload) Object(key string) (Payload, bool) {
	switch v := p[key].(type) {
	case map[string]interface{}:
		return Payload(v), true
	case Payload:
		return v, true
	default:
		return nil, false
	}
}

// List returns the nested list of objects at key.
// A missing or null field yields an empty result; anything other than a list
// of objects is reported as ErrUnexpectedShape.
// Parameters:
//   - key: field name.
// Returns:
//   - []Payload: list items.
//   - error: wrapped ErrUnexpectedShape when the field has the wrong type.
func (p Payload) List(key string) ([]Payload, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil, nil
	}

	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case []Payload:
		return v, nil
	case []map[string]interface{}:
		out := make([]Payload, len(v))
		for i, m := range v {
			out[i] = Payload(m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q is %T, want list", ErrUnexpectedShape, key, raw)
	}

	out := make([]Payload, 0, len(items))
	for i, item := range items {
		switch obj := item.(type) {
		case map[string]interface{}:
			out = append(out, Payload(obj))
		case Payload:
			out = append(out, obj)
		default:
			return nil, fmt.Errorf("%w: %q[%d] is %T, want object", ErrUnexpectedShape, key, i, item)
		}
	}
	return out, nil
}
