package sqlite

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// encodeValue converts a coerced attribute value to a column value.
func encodeValue(a types.Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch a.Type {
	case types.TypeJSON:
		s, err := json.MarshalToString(v)
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", types.ErrInvalidData)
		}
		return s, nil
	case types.TypeBoolean:
		if b, ok := v.(bool); ok && b {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return v, nil
}

// encodeRecord converts every value of r to its column value.
func encodeRecord(def types.Definition, r types.Record) (map[string]any, error) {
	row := make(map[string]any, len(r))
	for name, v := range r {
		cv, err := encodeValue(def[name], v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		row[name] = cv
	}
	return row, nil
}

// decodeValue converts a scanned column value back to the attribute type.
func decodeValue(a types.Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch a.Type {
	case types.TypeJSON:
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		var out any
		if err := json.UnmarshalFromString(s, &out); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return out, nil
	case types.TypeBoolean:
		switch x := v.(type) {
		case int64:
			return x != 0, nil
		case bool:
			return x, nil
		}
	case types.TypeFloat:
		if n, ok := v.(int64); ok {
			return float64(n), nil
		}
	}
	return a.Coerce(v)
}
