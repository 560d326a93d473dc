package types

import "errors"

// ModelLookup resolves a model by name. Hosts expose it so handlers can reach
// the model a route is bound to.
type ModelLookup interface {
	// GetModel returns the Model registered under name.
	// Returns ErrModelNotFound if no model has that name.
	GetModel(name string) (Model, error)
}

// Store defines the interface for backend-agnostic model storage.
// Callers attach to a backend, access models by name, and detach when done.
type Store interface {
	ModelLookup

	// Attach connects the Store to the backend described by config and
	// prepares one collection per model in config.Models. Returns
	// ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, GetModel returns ErrStoreDetached.
	Detach() error
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrModelNotFound   = errors.New("model not found")
)
