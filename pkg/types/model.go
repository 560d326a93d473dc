package types

import (
	"context"
	"errors"
)

// Record is a single stored entity keyed by attribute name.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Criteria selects records. Keys are attribute names; a scalar value matches
// by equality, a slice matches any of its elements and nil matches a missing
// value. An empty Criteria selects every record.
type Criteria map[string]any

// Model provides uniform CRUD operations over the records of one model.
// Every method returns the records it touched so callers never need a second
// round trip.
type Model interface {
	// Name returns the model name used for lookups.
	Name() string

	// Definition returns the attribute definition, defaults included.
	Definition() Definition

	// Create stores each record and returns them as persisted (generated
	// primary keys and timestamps filled in). Either all records are stored
	// or none are.
	Create(ctx context.Context, records []Record) ([]Record, error)

	// Update applies values to every record matching criteria and returns
	// the updated records. Primary keys are never changed.
	Update(ctx context.Context, criteria Criteria, values Record) ([]Record, error)

	// Find returns every record matching criteria.
	Find(ctx context.Context, criteria Criteria) ([]Record, error)

	// FindOne returns the first record matching criteria.
	// Returns ErrNotFound if nothing matches.
	FindOne(ctx context.Context, criteria Criteria) (Record, error)

	// Destroy removes every record matching criteria and returns the removed
	// records.
	Destroy(ctx context.Context, criteria Criteria) ([]Record, error)
}

// Model operation errors.
var (
	ErrNotFound        = errors.New("record not found")
	ErrInvalidData     = errors.New("invalid record data")
	ErrInvalidCriteria = errors.New("invalid criteria")
)

// ErrUniqueViolation is returned when a write would store two records with
// the same value for a unique attribute.
var ErrUniqueViolation = errors.New("unique constraint violated")
