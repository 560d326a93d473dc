package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

var testDef = types.Definition{
	"stuff": {Type: types.TypeString},
	"user":  {Type: types.TypeInteger, Unique: true},
	"body":  {Type: types.TypeJSON},
}.WithDefaults()

func TestFilter(t *testing.T) {
	m := newModel(nil, nil, "test", testDef)

	f, err := m.filter(types.Criteria{"id": "3", "user": []any{1, "2"}, "stuff": nil})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"_id":   int64(3),
		"user":  bson.M{"$in": []any{int64(1), int64(2)}},
		"stuff": nil,
	}, f)

	_, err = m.filter(types.Criteria{"nope": 1})
	assert.ErrorIs(t, err, types.ErrInvalidCriteria)
}

func TestDocumentRoundTrip(t *testing.T) {
	doc := toDocument("id", types.Record{"id": int64(1), "stuff": "a"})
	assert.Equal(t, bson.M{"_id": int64(1), "stuff": "a"}, doc)

	stored := bson.M{
		"_id":   int32(1),
		"stuff": "a",
		"user":  int32(7),
		"body":  bson.D{{Key: "tags", Value: primitive.A{"x", int32(2)}}},
	}
	r, err := fromDocument(testDef, "id", stored)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r["id"])
	assert.Equal(t, int64(7), r["user"])
	assert.Equal(t, map[string]any{"tags": []any{"x", int64(2)}}, r["body"])
	assert.Contains(t, r, types.CreatedAtField)
	assert.Nil(t, r[types.CreatedAtField])
}

func TestWriteErr(t *testing.T) {
	err := assert.AnError
	assert.Equal(t, err, writeErr(err))
}

// TestBackend_Mongo runs against a live server when CRUDKIT_TEST_MONGO_URI
// is set.
func TestBackend_Mongo(t *testing.T) {
	uri := os.Getenv("CRUDKIT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CRUDKIT_TEST_MONGO_URI not set")
	}

	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{
		Backend:  types.BackendMongo,
		MongoURI: uri,
		Database: "crudkit_test",
		Models:   map[string]types.Definition{"test": testDef},
	}))
	t.Cleanup(func() {
		b.db.Drop(context.Background())
		b.Detach()
	})

	ctx := context.Background()
	m, err := b.GetModel("test")
	require.NoError(t, err)

	created, err := m.Create(ctx, []types.Record{{"stuff": 1, "user": 123}, {"stuff": "b", "user": 456}})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "1", created[0]["stuff"])

	_, err = m.Create(ctx, []types.Record{{"user": 123}})
	assert.ErrorIs(t, err, types.ErrUniqueViolation)

	updated, err := m.Update(ctx, types.Criteria{"id": created[0]["id"]}, types.Record{"stuff": 2})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "2", updated[0]["stuff"])

	one, err := m.FindOne(ctx, types.Criteria{"user": 456})
	require.NoError(t, err)
	assert.Equal(t, "b", one["stuff"])

	destroyed, err := m.Destroy(ctx, types.Criteria{"user": []any{123, 456}})
	require.NoError(t, err)
	assert.Len(t, destroyed, 2)

	_, err = m.FindOne(ctx, types.Criteria{"user": 456})
	assert.ErrorIs(t, err, types.ErrNotFound)
}
