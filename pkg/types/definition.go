package types

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Attribute types.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeJSON    = "json"
)

// Names of the attributes every model carries after WithDefaults.
const (
	DefaultPrimaryKey = "id"
	CreatedAtField    = "createdAt"
	UpdatedAtField    = "updatedAt"
)

var validTypes = map[string]bool{
	TypeString:  true,
	TypeInteger: true,
	TypeFloat:   true,
	TypeBoolean: true,
	TypeJSON:    true,
}

// Attribute describes one field of a model.
type Attribute struct {
	Type          string `json:"type" yaml:"type"`
	Unique        bool   `json:"unique,omitempty" yaml:"unique,omitempty"`
	PrimaryKey    bool   `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	AutoIncrement bool   `json:"autoIncrement,omitempty" yaml:"autoIncrement,omitempty"`
	Required      bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Definition maps attribute names to their schema descriptors.
type Definition map[string]Attribute

// Validate checks attribute types and that at most one primary key exists.
func (d Definition) Validate() error {
	pks := 0
	for name, a := range d {
		if !validTypes[a.Type] {
			return fmt.Errorf("attribute %q: unknown type %q: %w", name, a.Type, ErrInvalidData)
		}
		if a.AutoIncrement && a.Type != TypeInteger {
			return fmt.Errorf("attribute %q: autoIncrement requires an integer: %w", name, ErrInvalidData)
		}
		if a.PrimaryKey {
			pks++
		}
	}
	if pks > 1 {
		return fmt.Errorf("%d primary keys declared: %w", pks, ErrInvalidData)
	}
	return nil
}

// WithDefaults returns a copy of d with an auto-increment "id" primary key
// when none is declared, primary keys marked unique, and the createdAt and
// updatedAt timestamps added.
func (d Definition) WithDefaults() Definition {
	out := make(Definition, len(d)+3)
	hasPK := false
	for name, a := range d {
		if a.PrimaryKey {
			a.Unique = true
			hasPK = true
		}
		out[name] = a
	}
	if !hasPK {
		out[DefaultPrimaryKey] = Attribute{
			Type:          TypeInteger,
			PrimaryKey:    true,
			AutoIncrement: true,
			Unique:        true,
		}
	}
	if _, ok := out[CreatedAtField]; !ok {
		out[CreatedAtField] = Attribute{Type: TypeString}
	}
	if _, ok := out[UpdatedAtField]; !ok {
		out[UpdatedAtField] = Attribute{Type: TypeString}
	}
	return out
}

// PrimaryKey returns the name of the primary key attribute, or
// DefaultPrimaryKey when none is declared.
func (d Definition) PrimaryKey() string {
	for name, a := range d {
		if a.PrimaryKey {
			return name
		}
	}
	return DefaultPrimaryKey
}

// IsUnique reports whether the named attribute exists and is unique.
func (d Definition) IsUnique(name string) bool {
	a, ok := d[name]
	return ok && a.Unique
}

// Names returns the attribute names in sorted order.
func (d Definition) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UniqueNames returns the sorted names of unique attributes.
func (d Definition) UniqueNames() []string {
	var names []string
	for _, name := range d.Names() {
		if d[name].Unique {
			names = append(names, name)
		}
	}
	return names
}

// Coerce returns a copy of r holding only defined attributes, each value
// converted to its attribute type. Fails with ErrInvalidData when a value
// cannot be converted.
func (d Definition) Coerce(r Record) (Record, error) {
	out := make(Record, len(r))
	for name, v := range r {
		a, ok := d[name]
		if !ok {
			continue
		}
		cv, err := a.Coerce(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = cv
	}
	return out, nil
}

// CheckRequired fails with ErrInvalidData when a required attribute is
// missing or nil in r.
func (d Definition) CheckRequired(r Record) error {
	for _, name := range d.Names() {
		if !d[name].Required {
			continue
		}
		if v, ok := r[name]; !ok || v == nil {
			return fmt.Errorf("attribute %q is required: %w", name, ErrInvalidData)
		}
	}
	return nil
}

// CoerceCriteria converts criteria values to attribute types so stores can
// compare them with stored values. Slice and array values of any element
// type become []any membership lists. Unknown attributes fail with
// ErrInvalidCriteria.
func (d Definition) CoerceCriteria(c Criteria) (Criteria, error) {
	out := make(Criteria, len(c))
	for name, v := range c {
		a, ok := d[name]
		if !ok {
			return nil, fmt.Errorf("unknown attribute %q: %w", name, ErrInvalidCriteria)
		}
		if vs, ok := asList(v); ok {
			cvs := make([]any, 0, len(vs))
			for _, e := range vs {
				cv, err := a.Coerce(e)
				if err != nil {
					return nil, fmt.Errorf("attribute %q: %w", name, ErrInvalidCriteria)
				}
				cvs = append(cvs, cv)
			}
			out[name] = cvs
			continue
		}
		cv, err := a.Coerce(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, ErrInvalidCriteria)
		}
		out[name] = cv
	}
	return out, nil
}

// Coerce converts v to the attribute's type. Nil stays nil.
func (a Attribute) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	var (
		out any
		err error
	)
	switch a.Type {
	case TypeString:
		out, err = cast.ToStringE(v)
	case TypeInteger:
		if v, err = integral(v); err != nil {
			return nil, err
		}
		out, err = cast.ToInt64E(v)
	case TypeFloat:
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("empty string is not a number: %w", ErrInvalidData)
		}
		out, err = cast.ToFloat64E(v)
	case TypeBoolean:
		out, err = cast.ToBoolE(v)
	default:
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot use %T as %s: %w", v, a.Type, ErrInvalidData)
	}
	return out, nil
}

// integral rejects values that do not hold an int64 exactly: fractions,
// non-finite and out of range numbers. Numeric strings are parsed in base
// 10.
func integral(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, checkIntegral(x)
	case float32:
		return x, checkIntegral(float64(x))
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows an integer: %w", x, ErrInvalidData)
		}
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows an integer: %w", x, ErrInvalidData)
		}
	case string:
		return parseIntegral(x)
	case json.Number:
		return parseIntegral(x.String())
	case bool:
		return nil, fmt.Errorf("cannot use bool as integer: %w", ErrInvalidData)
	}
	return v, nil
}

func parseIntegral(s string) (any, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not an integer: %w", s, ErrInvalidData)
	}
	if err := checkIntegral(f); err != nil {
		return nil, err
	}
	return f, nil
}

func checkIntegral(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return fmt.Errorf("%v is not an integer: %w", f, ErrInvalidData)
	}
	if f < math.MinInt64 || f >= 1<<63 {
		return fmt.Errorf("%v overflows an integer: %w", f, ErrInvalidData)
	}
	return nil
}

// asList returns the elements of a slice or array criteria value. Byte
// slices are scalars.
func asList(v any) ([]any, bool) {
	if vs, ok := v.([]any); ok {
		return vs, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
