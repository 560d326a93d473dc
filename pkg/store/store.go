// Package store exposes the backend factory while keeping the backend
// implementations internal.
//
// Example:
//
//	s, err := store.Open(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".crudkit-db",
//	    Models:  models,
//	})
//	if err != nil { ... }
//	defer s.Detach()
package store

import (
	"fmt"

	"github.com/mesh-intelligence/crudkit/internal/memory"
	"github.com/mesh-intelligence/crudkit/internal/mongo"
	"github.com/mesh-intelligence/crudkit/internal/sqlite"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// New returns an unattached store for the named backend.
func New(backend string) (types.Store, error) {
	switch backend {
	case types.BackendSQLite:
		return sqlite.NewBackend(), nil
	case types.BackendMemory:
		return memory.NewBackend(), nil
	case types.BackendMongo:
		return mongo.NewBackend(), nil
	case "":
		return nil, types.ErrBackendEmpty
	default:
		return nil, fmt.Errorf("%q: %w", backend, types.ErrBackendUnknown)
	}
}

// Open creates the store selected by cfg.Backend and attaches it.
func Open(cfg types.Config) (types.Store, error) {
	s, err := New(cfg.Backend)
	if err != nil {
		return nil, err
	}
	if err := s.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach %s: %w", cfg.Backend, err)
	}
	return s, nil
}
