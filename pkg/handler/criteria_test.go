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

func TestStaticCriteria(t *testing.T) {
	src := types.Criteria{"id": 1}
	c, err := handler.StaticCriteria(src)(context.Background(), &handler.Request{})
	require.NoError(t, err)
	assert.Equal(t, src, c)

	c["id"] = 2
	assert.Equal(t, 1, src["id"], "resolved criteria are a copy")
}

func TestCriteriaFromParams(t *testing.T) {
	resolve := handler.CriteriaFromParams("id", "recordId")

	c, err := resolve(context.Background(), &handler.Request{Params: map[string]string{"recordId": "7"}})
	require.NoError(t, err)
	assert.Equal(t, types.Criteria{"id": "7"}, c)

	_, err = resolve(context.Background(), &handler.Request{})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, handler.AsError(err).StatusCode)
}

func TestCriteriaFromCredentials(t *testing.T) {
	resolve := handler.CriteriaFromCredentials("user", "sub")

	c, err := resolve(context.Background(), &handler.Request{Credentials: map[string]any{"sub": 123}})
	require.NoError(t, err)
	assert.Equal(t, types.Criteria{"user": 123}, c)

	_, err = resolve(context.Background(), &handler.Request{})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, handler.AsError(err).StatusCode)
}

func TestCriteriaFromQuery(t *testing.T) {
	resolve := handler.CriteriaFromQuery("stuff", "user")

	c, err := resolve(context.Background(), &handler.Request{Query: map[string]string{"stuff": "a", "other": "x"}})
	require.NoError(t, err)
	assert.Equal(t, types.Criteria{"stuff": "a"}, c)
}

func TestMergeCriteria(t *testing.T) {
	resolve := handler.MergeCriteria(
		handler.StaticCriteria(types.Criteria{"stuff": "a", "user": 1}),
		handler.CriteriaFromCredentials("user", "sub"),
	)

	c, err := resolve(context.Background(), &handler.Request{Credentials: map[string]any{"sub": 2}})
	require.NoError(t, err)
	assert.Equal(t, types.Criteria{"stuff": "a", "user": 2}, c)

	_, err = resolve(context.Background(), &handler.Request{})
	assert.Error(t, err)
}
