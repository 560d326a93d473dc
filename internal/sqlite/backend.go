// Package sqlite implements the SQLite model store. Each model is a table
// with one column per attribute; unique attributes carry UNIQUE constraints
// so the database enforces them.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// DBFileName is the database file created inside Config.DataDir.
const DBFileName = "crudkit.db"

// Backend implements types.Store using SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	models   map[string]*Model
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{
		models: make(map[string]*Model),
	}
}

// GetModel returns the model registered under name.
// Returns ErrModelNotFound if the name is not recognized.
// Returns ErrStoreDetached if the backend is not attached.
func (b *Backend) GetModel(name string) (types.Model, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	m, ok := b.models[name]
	if !ok {
		return nil, types.ErrModelNotFound
	}
	return m, nil
}

// Attach opens (or creates) the database in config.DataDir and creates a
// table for every model that does not have one yet. Existing rows are kept.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, DBFileName))
	if err != nil {
		return err
	}
	// A single connection serializes writers; SQLite would otherwise
	// report SQLITE_BUSY on concurrent transactions.
	db.SetMaxOpenConns(1)

	names := make([]string, 0, len(config.Models))
	for name := range config.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	models := make(map[string]*Model, len(names))
	for _, name := range names {
		def := config.Models[name]
		if err := def.Validate(); err != nil {
			db.Close()
			return fmt.Errorf("model %q: %w", name, err)
		}
		def = def.WithDefaults()
		if _, err := db.Exec(createTableSQL(name, def)); err != nil {
			db.Close()
			return fmt.Errorf("create table %q: %w", name, err)
		}
		models[name] = newModel(b, name, def)
	}

	b.db = db
	b.config = config
	b.models = models
	b.attached = true
	return nil
}

// Detach closes the database. After Detach, all operations return
// ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	b.models = make(map[string]*Model)
	return nil
}

// conn returns the open database or ErrStoreDetached.
func (b *Backend) conn() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.db, nil
}
