package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

func TestNew(t *testing.T) {
	for _, backend := range []string{types.BackendSQLite, types.BackendMemory, types.BackendMongo} {
		s, err := New(backend)
		require.NoError(t, err, backend)
		assert.NotNil(t, s)
	}

	_, err := New("")
	assert.ErrorIs(t, err, types.ErrBackendEmpty)

	_, err = New("dynamodb")
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}

func TestOpen(t *testing.T) {
	models := map[string]types.Definition{"test": {"stuff": {Type: types.TypeString}}}

	s, err := Open(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir(), Models: models})
	require.NoError(t, err)
	defer s.Detach()

	m, err := s.GetModel("test")
	require.NoError(t, err)
	assert.Equal(t, "test", m.Name())

	_, err = Open(types.Config{Backend: types.BackendMemory})
	assert.ErrorIs(t, err, types.ErrNoModels)
}
