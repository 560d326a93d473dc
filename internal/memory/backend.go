// Package memory implements an in-memory model store. It enforces unique
// attributes like the persistent backends and can be told to fail, which
// makes it the store of choice for handler tests.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/mesh-intelligence/crudkit/internal/record"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Backend implements types.Store in memory.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	models   map[string]*Model

	failWith error
	calls    atomic.Int64
}

// NewBackend creates a new in-memory backend. The backend is not attached;
// call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{models: make(map[string]*Model)}
}

// WithError makes every model operation fail with err. Pass nil to restore
// normal behavior.
func (b *Backend) WithError(err error) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWith = err
	return b
}

// Calls returns the number of model operations invoked so far.
func (b *Backend) Calls() int {
	return int(b.calls.Load())
}

// Attach creates one empty model per definition in config.Models.
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

	models := make(map[string]*Model, len(config.Models))
	for name, def := range config.Models {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("model %q: %w", name, err)
		}
		models[name] = &Model{
			backend: b,
			name:    name,
			def:     def.WithDefaults(),
		}
	}

	b.models = models
	b.attached = true
	return nil
}

// Detach drops all data. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attached = false
	b.models = make(map[string]*Model)
	return nil
}

// GetModel returns the model registered under name.
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

// begin counts an operation and reports the injected failure, if any.
func (b *Backend) begin() error {
	b.calls.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	return b.failWith
}

// Model holds the records of one model in insertion order.
type Model struct {
	backend *Backend
	name    string
	def     types.Definition

	mu      sync.RWMutex
	seq     int64
	records []types.Record
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Definition returns the attribute definition, defaults included.
func (m *Model) Definition() types.Definition { return m.def }

// Create stores records atomically.
func (m *Model) Create(_ context.Context, records []types.Record) ([]types.Record, error) {
	if err := m.backend.begin(); err != nil {
		return nil, err
	}

	prepared := make([]types.Record, 0, len(records))
	for _, r := range records {
		p, err := record.PrepareCreate(m.def, r)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", m.name, err)
		}
		prepared = append(prepared, p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pk := m.def.PrimaryKey()
	seq := m.seq
	for _, p := range prepared {
		if n, ok := p[pk].(int64); ok && n > seq {
			seq = n
		}
	}
	for _, p := range prepared {
		if _, ok := p[pk]; !ok {
			seq++
			p[pk] = seq
		}
	}
	if err := m.checkUnique(prepared, nil); err != nil {
		return nil, fmt.Errorf("create %s: %w", m.name, err)
	}

	m.seq = seq
	out := make([]types.Record, 0, len(prepared))
	for _, p := range prepared {
		m.records = append(m.records, p)
		out = append(out, p.Clone())
	}
	return out, nil
}

// Update applies values to every matching record.
func (m *Model) Update(_ context.Context, criteria types.Criteria, values types.Record) ([]types.Record, error) {
	if err := m.backend.begin(); err != nil {
		return nil, err
	}
	c, err := m.def.CoerceCriteria(criteria)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, err)
	}
	v, err := record.PrepareUpdate(m.def, values)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var idx []int
	for i, r := range m.records {
		if matches(r, c) {
			idx = append(idx, i)
		}
	}

	updated := make([]types.Record, 0, len(idx))
	for _, i := range idx {
		r := m.records[i].Clone()
		for k, val := range v {
			r[k] = val
		}
		updated = append(updated, r)
	}
	if err := m.checkUnique(updated, idx); err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, err)
	}

	out := make([]types.Record, 0, len(updated))
	for n, i := range idx {
		m.records[i] = updated[n]
		out = append(out, updated[n].Clone())
	}
	return out, nil
}

// Find returns every matching record.
func (m *Model) Find(_ context.Context, criteria types.Criteria) ([]types.Record, error) {
	if err := m.backend.begin(); err != nil {
		return nil, err
	}
	c, err := m.def.CoerceCriteria(criteria)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.name, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Record, 0)
	for _, r := range m.records {
		if matches(r, c) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// FindOne returns the first matching record.
func (m *Model) FindOne(ctx context.Context, criteria types.Criteria) (types.Record, error) {
	found, err := m.Find(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, types.ErrNotFound
	}
	return found[0], nil
}

// Destroy removes every matching record and returns them.
func (m *Model) Destroy(_ context.Context, criteria types.Criteria) ([]types.Record, error) {
	if err := m.backend.begin(); err != nil {
		return nil, err
	}
	c, err := m.def.CoerceCriteria(criteria)
	if err != nil {
		return nil, fmt.Errorf("destroy %s: %w", m.name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0:0]
	out := make([]types.Record, 0)
	for _, r := range m.records {
		if matches(r, c) {
			out = append(out, r)
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return out, nil
}

// checkUnique verifies that candidates do not collide with each other or
// with stored records on unique attributes. skip lists the indexes of stored
// records the candidates replace. The caller must hold m.mu.
func (m *Model) checkUnique(candidates []types.Record, skip []int) error {
	replaced := make(map[int]bool, len(skip))
	for _, i := range skip {
		replaced[i] = true
	}

	for _, attr := range m.def.UniqueNames() {
		for n, c := range candidates {
			v, ok := c[attr]
			if !ok || v == nil {
				continue
			}
			for i, r := range m.records {
				if !replaced[i] && reflect.DeepEqual(r[attr], v) {
					return fmt.Errorf("%s.%s = %v: %w", m.name, attr, v, types.ErrUniqueViolation)
				}
			}
			for _, other := range candidates[n+1:] {
				if reflect.DeepEqual(other[attr], v) {
					return fmt.Errorf("%s.%s = %v: %w", m.name, attr, v, types.ErrUniqueViolation)
				}
			}
		}
	}
	return nil
}

// matches reports whether r satisfies every criterion in c.
func matches(r types.Record, c types.Criteria) bool {
	for k, want := range c {
		got := r[k]
		if want == nil {
			if got != nil {
				return false
			}
			continue
		}
		if alts, ok := want.([]any); ok {
			hit := false
			for _, a := range alts {
				if reflect.DeepEqual(got, a) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
