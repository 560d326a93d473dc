package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mesh-intelligence/crudkit/internal/record"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

const idField = "_id"

// Model implements types.Model over one collection.
type Model struct {
	backend *Backend
	coll    *mongo.Collection
	name    string
	def     types.Definition
	pk      string
}

func newModel(b *Backend, coll *mongo.Collection, name string, def types.Definition) *Model {
	return &Model{
		backend: b,
		coll:    coll,
		name:    name,
		def:     def,
		pk:      def.PrimaryKey(),
	}
}

// Name returns the model (and collection) name.
func (m *Model) Name() string { return m.name }

// Definition returns the attribute definition, defaults included.
func (m *Model) Definition() types.Definition { return m.def }

// ensureIndexes creates a unique index for every unique attribute other than
// the primary key, which _id already covers.
func (m *Model) ensureIndexes(ctx context.Context) error {
	var idx []mongo.IndexModel
	for _, name := range m.def.UniqueNames() {
		if name == m.pk {
			continue
		}
		idx = append(idx, mongo.IndexModel{
			Keys:    bson.D{{Key: name, Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		})
	}
	if len(idx) == 0 {
		return nil
	}
	_, err := m.coll.Indexes().CreateMany(ctx, idx)
	return err
}

// Create inserts records and returns them as stored. Inserts are ordered; on
// failure, records before the failing one remain stored.
func (m *Model) Create(ctx context.Context, records []types.Record) ([]types.Record, error) {
	if err := m.backend.check(); err != nil {
		return nil, err
	}

	prepared := make([]types.Record, 0, len(records))
	missing := 0
	for _, r := range records {
		p, err := record.PrepareCreate(m.def, r)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", m.name, err)
		}
		if _, ok := p[m.pk]; !ok {
			missing++
		}
		prepared = append(prepared, p)
	}

	var maxKey int64
	for _, p := range prepared {
		if n, ok := p[m.pk].(int64); ok && n > maxKey {
			maxKey = n
		}
	}
	if maxKey > 0 && m.def[m.pk].AutoIncrement {
		if err := m.backend.bumpSeq(ctx, m.name, maxKey); err != nil {
			return nil, fmt.Errorf("create %s: %w", m.name, err)
		}
	}

	if missing > 0 {
		seq, err := m.backend.nextSeq(ctx, m.name, missing)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", m.name, err)
		}
		for _, p := range prepared {
			if _, ok := p[m.pk]; !ok {
				p[m.pk] = seq
				seq++
			}
		}
	}

	docs := make([]any, 0, len(prepared))
	keys := make([]any, 0, len(prepared))
	for _, p := range prepared {
		docs = append(docs, toDocument(m.pk, p))
		keys = append(keys, p[m.pk])
	}
	if _, err := m.coll.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("create %s: %w", m.name, writeErr(err))
	}

	out, err := m.byKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", m.name, err)
	}
	return out, nil
}

// Update applies values to every matching document and returns the updated
// documents.
func (m *Model) Update(ctx context.Context, criteria types.Criteria, values types.Record) ([]types.Record, error) {
	if err := m.backend.check(); err != nil {
		return nil, err
	}
	filter, err := m.filter(criteria)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, err)
	}
	v, err := record.PrepareUpdate(m.def, values)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, err)
	}

	matched, err := m.find(ctx, filter, 0)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, err)
	}
	if len(matched) == 0 {
		return matched, nil
	}
	keys := m.keys(matched)

	_, err = m.coll.UpdateMany(ctx,
		bson.M{idField: bson.M{"$in": keys}},
		bson.M{"$set": bson.M(v)},
	)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, writeErr(err))
	}

	out, err := m.byKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, err)
	}
	return out, nil
}

// Find returns every matching document ordered by primary key.
func (m *Model) Find(ctx context.Context, criteria types.Criteria) ([]types.Record, error) {
	if err := m.backend.check(); err != nil {
		return nil, err
	}
	filter, err := m.filter(criteria)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.name, err)
	}
	out, err := m.find(ctx, filter, 0)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.name, err)
	}
	return out, nil
}

// FindOne returns the first matching document, or ErrNotFound.
func (m *Model) FindOne(ctx context.Context, criteria types.Criteria) (types.Record, error) {
	if err := m.backend.check(); err != nil {
		return nil, err
	}
	filter, err := m.filter(criteria)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.name, err)
	}
	found, err := m.find(ctx, filter, 1)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.name, err)
	}
	if len(found) == 0 {
		return nil, types.ErrNotFound
	}
	return found[0], nil
}

// Destroy deletes every matching document and returns the deleted ones.
func (m *Model) Destroy(ctx context.Context, criteria types.Criteria) ([]types.Record, error) {
	if err := m.backend.check(); err != nil {
		return nil, err
	}
	filter, err := m.filter(criteria)
	if err != nil {
		return nil, fmt.Errorf("destroy %s: %w", m.name, err)
	}

	found, err := m.find(ctx, filter, 0)
	if err != nil {
		return nil, fmt.Errorf("destroy %s: %w", m.name, err)
	}
	if len(found) == 0 {
		return found, nil
	}
	if _, err := m.coll.DeleteMany(ctx, bson.M{idField: bson.M{"$in": m.keys(found)}}); err != nil {
		return nil, fmt.Errorf("destroy %s: %w", m.name, err)
	}
	return found, nil
}

func (m *Model) find(ctx context.Context, filter bson.M, limit int64) ([]types.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: idField, Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]types.Record, 0, len(docs))
	for _, d := range docs {
		r, err := fromDocument(m.def, m.pk, d)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// byKeys loads the documents with the given primary keys, in key order.
func (m *Model) byKeys(ctx context.Context, keys []any) ([]types.Record, error) {
	found, err := m.find(ctx, bson.M{idField: bson.M{"$in": keys}}, 0)
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

// filter translates criteria into a BSON filter.
func (m *Model) filter(criteria types.Criteria) (bson.M, error) {
	c, err := m.def.CoerceCriteria(criteria)
	if err != nil {
		return nil, err
	}
	filter := bson.M{}
	for name, v := range c {
		field := name
		if name == m.pk {
			field = idField
		}
		if vs, ok := v.([]any); ok {
			filter[field] = bson.M{"$in": vs}
			continue
		}
		filter[field] = v
	}
	return filter, nil
}

// toDocument stores the primary key under _id.
func toDocument(pk string, r types.Record) bson.M {
	doc := make(bson.M, len(r))
	for k, v := range r {
		if k == pk {
			doc[idField] = v
			continue
		}
		doc[k] = v
	}
	return doc
}

// fromDocument turns a stored document back into a record with every
// defined attribute present.
func fromDocument(def types.Definition, pk string, doc bson.M) (types.Record, error) {
	r := make(types.Record, len(def))
	for _, name := range def.Names() {
		field := name
		if name == pk {
			field = idField
		}
		v := normalize(doc[field])
		if def[name].Type != types.TypeJSON {
			cv, err := def[name].Coerce(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			v = cv
		}
		r[name] = v
	}
	return r, nil
}

// normalize converts driver types to the plain Go values records carry.
func normalize(v any) any {
	switch x := v.(type) {
	case int32:
		return int64(x)
	case primitive.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.ObjectID:
		return x.Hex()
	}
	return v
}

// writeErr marks duplicate key failures as ErrUniqueViolation.
func writeErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", types.ErrUniqueViolation, err)
	}
	return err
}
