package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudkit/pkg/handler"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{
		handler.MethodCreate,
		handler.MethodUpdate,
		handler.MethodGet,
		handler.MethodDelete,
	} {
		assert.Contains(t, f.host.methods, name)
	}

	_, err := handler.Register(f.host, handler.PluginOptions{})
	assert.Error(t, err, "registering twice collides")
}

func TestCreate(t *testing.T) {
	t.Run("adds the configured credential to the payload", func(t *testing.T) {
		f := newFixture(t)
		req := &handler.Request{
			Payload:     map[string]any{"stuff": float64(1)},
			Credentials: map[string]any{"user": 123},
		}

		resp := f.call(handler.MethodCreate, handler.Options{Model: "test", CredentialKey: "user"}, req)

		require.Nil(t, resp.Err)
		assert.Equal(t, http.StatusCreated, resp.Status)
		assert.Equal(t, 1, resp.Replies)
		created := resp.Payload.(types.Record)
		assert.Equal(t, int64(123), created["user"])
		assert.Equal(t, "1", created["stuff"])

		m, _ := f.backend.GetModel("test")
		stored, err := m.FindOne(context.Background(), types.Criteria{"user": 123})
		require.NoError(t, err)
		assert.Equal(t, created["id"], stored["id"])

		assert.NotContains(t, req.Payload, "user", "request payload is not mutated")
	})

	t.Run("absent credential leaves the payload alone", func(t *testing.T) {
		f := newFixture(t)
		req := &handler.Request{Payload: map[string]any{"stuff": "a"}}

		resp := f.call(handler.MethodCreate, handler.Options{Model: "test", CredentialKey: "user"}, req)

		require.Nil(t, resp.Err)
		assert.NotContains(t, resp.Payload.(types.Record), "user")
	})

	t.Run("array payload creates every record", func(t *testing.T) {
		f := newFixture(t)
		req := &handler.Request{
			Payload:     []any{map[string]any{"stuff": "a"}, map[string]any{"stuff": "b"}},
			Credentials: map[string]any{"user": 7},
		}

		resp := f.call(handler.MethodCreate, handler.Options{Model: "test", CredentialKey: "user"}, req)

		require.Nil(t, resp.Err)
		assert.Equal(t, http.StatusCreated, resp.Status)
		created := resp.Payload.([]types.Record)
		require.Len(t, created, 2)
		for _, r := range created {
			assert.Equal(t, int64(7), r["user"])
		}
	})

	t.Run("non-object payload is bad data", func(t *testing.T) {
		f := newFixture(t)

		for _, payload := range []any{nil, "x", []any{}, []any{1}} {
			resp := f.call(handler.MethodCreate, handler.Options{Model: "test"}, &handler.Request{Payload: payload})
			require.NotNil(t, resp.Err)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.Err.StatusCode)
			assert.Equal(t, handler.MsgInvalidPayload, resp.Err.Message)
		}
		assert.Equal(t, 0, f.backend.Calls())
	})

	t.Run("integer outside int64 range is rejected", func(t *testing.T) {
		f := newFixture(t)

		resp := f.call(handler.MethodCreate, handler.Options{Model: "test"},
			&handler.Request{Payload: map[string]any{"stuff": "a", "user": float64(1e20)}})

		require.NotNil(t, resp.Err)
		assert.Equal(t, http.StatusInternalServerError, resp.Err.StatusCode)
		assert.ErrorIs(t, f.log.entries[0].err(), types.ErrInvalidData)

		m, _ := f.backend.GetModel("test")
		found, err := m.Find(context.Background(), types.Criteria{})
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("store creating nothing is a bad implementation", func(t *testing.T) {
		f := newFixture(t)
		host := &testHost{Backend: f.backend, methods: map[string]handler.Factory{}}
		_, err := handler.Register(emptyCreateHost{host}, handler.PluginOptions{Logger: f.log})
		require.NoError(t, err)

		resp := &handler.Response{}
		host.methods[handler.MethodCreate](handler.Options{Model: "test"})(
			context.Background(), &handler.Request{Payload: map[string]any{"stuff": "a"}}, resp)

		require.NotNil(t, resp.Err)
		assert.Equal(t, http.StatusInternalServerError, resp.Err.StatusCode)
		assert.Equal(t, handler.MsgEmptyCreate, resp.Err.Message)
		assert.Len(t, f.log.entries, 1)
	})
}

// emptyCreateHost serves models whose Create reports success with no records.
type emptyCreateHost struct{ *testHost }

func (h emptyCreateHost) GetModel(name string) (types.Model, error) {
	m, err := h.testHost.GetModel(name)
	if err != nil {
		return nil, err
	}
	return emptyCreateModel{m}, nil
}

type emptyCreateModel struct{ types.Model }

func (emptyCreateModel) Create(context.Context, []types.Record) ([]types.Record, error) {
	return nil, nil
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.Record{"stuff": 1, "user": 123})

	opts := handler.Options{
		Model:            "test",
		CriteriaResolver: handler.StaticCriteria(types.Criteria{"id": 1}),
	}
	req := &handler.Request{
		Params:  map[string]string{"id": "1"},
		Payload: map[string]any{"stuff": float64(2), "id": float64(1)},
	}

	resp := f.call(handler.MethodUpdate, opts, req)

	require.Nil(t, resp.Err)
	assert.Equal(t, http.StatusOK, resp.Status)
	updated := resp.Payload.(types.Record)
	assert.Equal(t, "2", updated["stuff"])
	assert.Equal(t, int64(1), updated["id"])
	assert.Equal(t, int64(123), updated["user"])
	assert.Contains(t, updated, types.UpdatedAtField)

	t.Run("no match is not found", func(t *testing.T) {
		resp := f.call(handler.MethodUpdate, handler.Options{
			Model:            "test",
			CriteriaResolver: handler.StaticCriteria(types.Criteria{"id": 99}),
		}, req)
		require.NotNil(t, resp.Err)
		assert.Equal(t, http.StatusNotFound, resp.Err.StatusCode)
	})

	t.Run("non-object payload is bad data", func(t *testing.T) {
		resp := f.call(handler.MethodUpdate, handler.Options{
			Model:            "test",
			CriteriaResolver: handler.StaticCriteria(types.Criteria{"id": 1}),
		}, &handler.Request{Payload: []any{}})
		require.NotNil(t, resp.Err)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Err.StatusCode)
	})
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		types.Record{"stuff": "a", "user": 123},
		types.Record{"stuff": "b", "user": 123},
		types.Record{"stuff": "c", "user": 456},
	)

	t.Run("replies the result set", func(t *testing.T) {
		resp := f.call(handler.MethodGet, handler.Options{
			Model:            "test",
			CriteriaResolver: handler.CriteriaFromCredentials("user", "user"),
		}, &handler.Request{Credentials: map[string]any{"user": 123}})

		require.Nil(t, resp.Err)
		assert.Equal(t, http.StatusOK, resp.Status)
		found := resp.Payload.([]types.Record)
		assert.Len(t, found, 2)
	})

	t.Run("unique id replies a single record", func(t *testing.T) {
		resp := f.call(handler.MethodGet, handler.Options{
			Model:            "test",
			UniqueID:         "id",
			CriteriaResolver: handler.CriteriaFromParams("id", "id"),
		}, &handler.Request{Params: map[string]string{"id": "3"}})

		require.Nil(t, resp.Err)
		found := resp.Payload.(types.Record)
		assert.Equal(t, "c", found["stuff"])
	})

	t.Run("typed slice criteria match any member", func(t *testing.T) {
		resp := f.call(handler.MethodGet, handler.Options{
			Model:            "test",
			CriteriaResolver: handler.StaticCriteria(types.Criteria{"id": []int64{1, 2}}),
		}, &handler.Request{})

		require.Nil(t, resp.Err)
		found := resp.Payload.([]types.Record)
		require.Len(t, found, 2)
		assert.Equal(t, "a", found[0]["stuff"])
		assert.Equal(t, "b", found[1]["stuff"])
	})

	t.Run("empty result is not found", func(t *testing.T) {
		for _, opts := range []handler.Options{
			{Model: "test", CriteriaResolver: handler.StaticCriteria(types.Criteria{"user": 999})},
			{Model: "test", UniqueID: "id", CriteriaResolver: handler.StaticCriteria(types.Criteria{"id": 999})},
		} {
			f.log.entries = nil
			resp := f.call(handler.MethodGet, opts, &handler.Request{})
			require.NotNil(t, resp.Err)
			assert.Equal(t, http.StatusNotFound, resp.Err.StatusCode)
			assert.Equal(t, handler.MsgNotFound, resp.Err.Message)
			assert.Len(t, f.log.entries, 1)
		}
	})
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.Record{"stuff": "a", "user": 1}, types.Record{"stuff": "b", "user": 1}, types.Record{"stuff": "c", "user": 2})

	t.Run("single record replies its id", func(t *testing.T) {
		resp := f.call(handler.MethodDelete, handler.Options{
			Model:            "test",
			CriteriaResolver: handler.CriteriaFromParams("id", "id"),
		}, &handler.Request{Params: map[string]string{"id": "1"}})

		require.Nil(t, resp.Err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, types.Record{"id": int64(1)}, resp.Payload)
	})

	t.Run("several records reply their ids", func(t *testing.T) {
		resp := f.call(handler.MethodDelete, handler.Options{
			Model:            "test",
			CriteriaResolver: handler.StaticCriteria(types.Criteria{"id": []any{2, 3}}),
		}, &handler.Request{})

		require.Nil(t, resp.Err)
		assert.Equal(t, []types.Record{{"id": int64(2)}, {"id": int64(3)}}, resp.Payload)
	})

	t.Run("zero matches is not found without a success status", func(t *testing.T) {
		resp := f.call(handler.MethodDelete, handler.Options{
			Model:            "test",
			CriteriaResolver: handler.StaticCriteria(types.Criteria{"id": 1}),
		}, &handler.Request{})

		require.NotNil(t, resp.Err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
		assert.Nil(t, resp.Payload)
		assert.Equal(t, 1, resp.Replies)
	})
}

func TestMissingCriteriaResolver(t *testing.T) {
	for _, method := range []string{handler.MethodUpdate, handler.MethodGet, handler.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			f := newFixture(t)
			preHandlerCalled := false

			resp := f.call(method, handler.Options{
				Model: "test",
				OnPreHandler: func(context.Context, *handler.Request) error {
					preHandlerCalled = true
					return nil
				},
			}, &handler.Request{Payload: map[string]any{"stuff": "x"}})

			require.NotNil(t, resp.Err)
			assert.Equal(t, http.StatusInternalServerError, resp.Err.StatusCode)
			assert.Equal(t, handler.MsgMissingCriteriaResolver, resp.Err.Message)
			assert.Equal(t, 1, resp.Replies)
			assert.Equal(t, 0, f.backend.Calls(), "store must not be touched")
			assert.False(t, preHandlerCalled)
			assert.Len(t, f.log.entries, 1)
		})
	}
}

func TestNotAUniqueID(t *testing.T) {
	for _, method := range []string{handler.MethodUpdate, handler.MethodGet, handler.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			f := newFixture(t)

			resp := f.call(method, handler.Options{
				Model:            "test",
				UniqueID:         "stuff",
				CriteriaResolver: handler.CriteriaFromParams("id", "id"),
			}, &handler.Request{
				Params:  map[string]string{"id": "1"},
				Payload: map[string]any{"stuff": "x"},
			})

			require.NotNil(t, resp.Err)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.Err.StatusCode)
			assert.Equal(t, handler.MsgNotAUniqueID, resp.Err.Message)
			assert.Equal(t, 0, f.backend.Calls(), "store must not be queried")
		})
	}

	t.Run("unknown attribute is not unique", func(t *testing.T) {
		f := newFixture(t)
		resp := f.call(handler.MethodGet, handler.Options{
			Model:            "test",
			UniqueID:         "missing",
			CriteriaResolver: handler.StaticCriteria(nil),
		}, &handler.Request{})
		require.NotNil(t, resp.Err)
		assert.Equal(t, handler.MsgNotAUniqueID, resp.Err.Message)
	})
}

func TestStoreRejection(t *testing.T) {
	criteria := handler.StaticCriteria(types.Criteria{"id": 1})

	for _, method := range []string{handler.MethodCreate, handler.MethodUpdate, handler.MethodGet, handler.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, types.Record{"stuff": "a"})
			f.backend.WithError(errStore)

			resp := f.call(method, handler.Options{
				Model:            "test",
				CriteriaResolver: criteria,
			}, &handler.Request{Payload: map[string]any{"stuff": "b"}})

			require.NotNil(t, resp.Err)
			assert.Equal(t, 1, resp.Replies)
			assert.Equal(t, http.StatusInternalServerError, resp.Err.StatusCode)
			assert.Equal(t, "error", resp.Err.Message)

			require.Len(t, f.log.entries, 1)
			assert.ErrorIs(t, f.log.entries[0].err(), errStore)
		})
	}
}

func TestUnknownModel(t *testing.T) {
	f := newFixture(t)

	resp := f.call(handler.MethodCreate, handler.Options{Model: "nope"}, &handler.Request{Payload: map[string]any{}})

	require.NotNil(t, resp.Err)
	assert.Equal(t, http.StatusInternalServerError, resp.Err.StatusCode)
	assert.Contains(t, resp.Err.Message, "nope")
}

func TestDefaultLogger(t *testing.T) {
	p := handler.New(newFixture(t).backend, handler.PluginOptions{})
	resp := &handler.Response{}

	p.Get(handler.Options{Model: "test"})(context.Background(), &handler.Request{}, resp)

	require.NotNil(t, resp.Err)
	assert.Equal(t, 1, resp.Replies)
}
