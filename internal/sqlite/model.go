package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/crudkit/internal/record"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

const dialectSQLite = "sqlite3"

var builder = goqu.Dialect(dialectSQLite)

// querier is implemented by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Model implements types.Model over one table.
type Model struct {
	backend *Backend
	name    string
	def     types.Definition
	pk      string
	names   []string
	columns []any
}

func newModel(b *Backend, name string, def types.Definition) *Model {
	names := def.Names()
	columns := make([]any, len(names))
	for i, n := range names {
		columns[i] = goqu.C(n)
	}
	return &Model{
		backend: b,
		name:    name,
		def:     def,
		pk:      def.PrimaryKey(),
		names:   names,
		columns: columns,
	}
}

// Name returns the model (and table) name.
func (m *Model) Name() string { return m.name }

// Definition returns the attribute definition, defaults included.
func (m *Model) Definition() types.Definition { return m.def }

// Create inserts records in one transaction and returns them as stored.
func (m *Model) Create(ctx context.Context, records []types.Record) ([]types.Record, error) {
	rows := make([]types.Record, 0, len(records))
	for _, r := range records {
		p, err := record.PrepareCreate(m.def, r)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", m.name, err)
		}
		rows = append(rows, p)
	}

	var out []types.Record
	err := m.inTx(ctx, func(tx *sql.Tx) error {
		keys := make([]any, 0, len(rows))
		for _, p := range rows {
			row, err := encodeRecord(m.def, p)
			if err != nil {
				return err
			}
			q, args, err := builder.Insert(m.name).Prepared(true).Rows(goqu.Record(row)).ToSQL()
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, q, args...)
			if err != nil {
				return writeErr(err)
			}

			key, ok := p[m.pk]
			if !ok {
				id, err := res.LastInsertId()
				if err != nil {
					return err
				}
				key = id
			}
			keys = append(keys, key)
		}

		var err error
		out, err = m.selectKeys(ctx, tx, keys)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", m.name, err)
	}
	return out, nil
}

// Update applies values to every matching row and returns the updated rows.
func (m *Model) Update(ctx context.Context, criteria types.Criteria, values types.Record) ([]types.Record, error) {
	where, ok, err := m.filter(criteria)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, err)
	}
	v, err := record.PrepareUpdate(m.def, values)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, err)
	}
	row, err := encodeRecord(m.def, v)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, err)
	}
	if !ok {
		return []types.Record{}, nil
	}

	var out []types.Record
	err = m.inTx(ctx, func(tx *sql.Tx) error {
		matched, err := m.query(ctx, tx, where, 0)
		if err != nil {
			return err
		}
		if len(matched) == 0 {
			out = matched
			return nil
		}
		keys := m.keys(matched)

		q, args, err := builder.Update(m.name).Prepared(true).
			Set(goqu.Record(row)).
			Where(goqu.C(m.pk).In(keys...)).
			ToSQL()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return writeErr(err)
		}

		out, err = m.selectKeys(ctx, tx, keys)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, err)
	}
	return out, nil
}

// Find returns every matching row ordered by primary key.
func (m *Model) Find(ctx context.Context, criteria types.Criteria) ([]types.Record, error) {
	return m.find(ctx, criteria, 0)
}

// FindOne returns the first matching row, or ErrNotFound.
func (m *Model) FindOne(ctx context.Context, criteria types.Criteria) (types.Record, error) {
	found, err := m.find(ctx, criteria, 1)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, types.ErrNotFound
	}
	return found[0], nil
}

// Destroy deletes every matching row and returns the deleted rows.
func (m *Model) Destroy(ctx context.Context, criteria types.Criteria) ([]types.Record, error) {
	where, ok, err := m.filter(criteria)
	if err != nil {
		return nil, fmt.Errorf("destroy %s: %w", m.name, err)
	}
	if !ok {
		return []types.Record{}, nil
	}

	var out []types.Record
	err = m.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = m.query(ctx, tx, where, 0)
		if err != nil || len(out) == 0 {
			return err
		}

		q, args, err := builder.Delete(m.name).Prepared(true).
			Where(goqu.C(m.pk).In(m.keys(out)...)).
			ToSQL()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, q, args...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("destroy %s: %w", m.name, err)
	}
	return out, nil
}

func (m *Model) find(ctx context.Context, criteria types.Criteria, limit uint) ([]types.Record, error) {
	where, ok, err := m.filter(criteria)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.name, err)
	}
	if !ok {
		return []types.Record{}, nil
	}
	db, err := m.backend.conn()
	if err != nil {
		return nil, err
	}
	out, err := m.query(ctx, db, where, limit)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.name, err)
	}
	return out, nil
}

// filter translates criteria into WHERE expressions. ok is false when the
// criteria can match nothing, such as an empty membership list.
func (m *Model) filter(criteria types.Criteria) (where []exp.Expression, ok bool, err error) {
	c, err := m.def.CoerceCriteria(criteria)
	if err != nil {
		return nil, false, err
	}

	for _, name := range sortedKeys(c) {
		a := m.def[name]
		col := goqu.C(name)
		switch v := c[name].(type) {
		case nil:
			where = append(where, col.IsNull())
		case []any:
			if len(v) == 0 {
				return nil, false, nil
			}
			vals := make([]any, 0, len(v))
			for _, e := range v {
				ev, err := encodeValue(a, e)
				if err != nil {
					return nil, false, err
				}
				vals = append(vals, ev)
			}
			where = append(where, col.In(vals...))
		default:
			ev, err := encodeValue(a, v)
			if err != nil {
				return nil, false, err
			}
			where = append(where, col.Eq(ev))
		}
	}
	return where, true, nil
}

// query selects the rows matching where. A zero limit means no limit.
func (m *Model) query(ctx context.Context, q querier, where []exp.Expression, limit uint) ([]types.Record, error) {
	ds := builder.From(m.name).Prepared(true).
		Select(m.columns...).
		Where(where...).
		Order(goqu.C(m.pk).Asc())
	if limit > 0 {
		ds = ds.Limit(limit)
	}
	sqlQuery, args, err := ds.ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.Record, 0)
	for rows.Next() {
		vals := make([]any, len(m.names))
		ptrs := make([]any, len(m.names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		r := make(types.Record, len(m.names))
		for i, name := range m.names {
			v, err := decodeValue(m.def[name], vals[i])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}
			r[name] = v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// selectKeys loads the rows with the given primary keys, in key order.
func (m *Model) selectKeys(ctx context.Context, q querier, keys []any) ([]types.Record, error) {
	found, err := m.query(ctx, q, []exp.Expression{goqu.C(m.pk).In(keys...)}, 0)
	if err != nil {
		return nil, err
	}
	byKey := make(map[any]types.Record, len(found))
	for _, r := range found {
		byKey[r[m.pk]] = r
	}
	out := make([]types.Record, 0, len(keys))
	for _, k := range keys {
		if r, ok := byKey[k]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Model) keys(records []types.Record) []any {
	keys := make([]any, len(records))
	for i, r := range records {
		keys[i] = r[m.pk]
	}
	return keys
}

func (m *Model) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := m.backend.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// writeErr marks constraint failures on unique columns as
// ErrUniqueViolation.
func writeErr(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %w", types.ErrUniqueViolation, err)
		}
	}
	return err
}

func sortedKeys(c types.Criteria) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
