// Package record holds the write-path rules every storage backend applies:
// attribute coercion, primary key generation and timestamps.
package record

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Clock returns the current time. Tests may replace it.
var Clock = func() time.Time { return time.Now().UTC() }

// Timestamp formats t the way records store createdAt and updatedAt.
func Timestamp(t time.Time) string {
	return strfmt.DateTime(t.UTC()).String()
}

// NewID generates a UUID v7 string for string primary keys.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// PrepareCreate coerces r for storage under def, stamps createdAt and
// updatedAt, and fills in a string primary key when it is missing. Integer
// auto-increment keys are left to the backend.
func PrepareCreate(def types.Definition, r types.Record) (types.Record, error) {
	out, err := def.Coerce(r)
	if err != nil {
		return nil, err
	}

	pk := def.PrimaryKey()
	pkAttr := def[pk]
	if v, ok := out[pk]; !ok || v == nil {
		switch {
		case pkAttr.AutoIncrement:
			delete(out, pk)
		case pkAttr.Type == types.TypeString:
			out[pk] = NewID()
		default:
			return nil, fmt.Errorf("primary key %q is required: %w", pk, types.ErrInvalidData)
		}
	}

	now := Timestamp(Clock())
	out[types.CreatedAtField] = now
	out[types.UpdatedAtField] = now

	if err := def.CheckRequired(out); err != nil {
		return nil, err
	}
	return out, nil
}

// PrepareUpdate coerces values for an update under def. The primary key and
// createdAt are dropped; updatedAt is stamped.
func PrepareUpdate(def types.Definition, values types.Record) (types.Record, error) {
	out, err := def.Coerce(values)
	if err != nil {
		return nil, err
	}
	delete(out, def.PrimaryKey())
	delete(out, types.CreatedAtField)
	out[types.UpdatedAtField] = Timestamp(Clock())
	return out, nil
}
