package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

func fixedClock(t *testing.T) time.Time {
	t.Helper()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	old := Clock
	Clock = func() time.Time { return now }
	t.Cleanup(func() { Clock = old })
	return now
}

func TestPrepareCreate(t *testing.T) {
	now := fixedClock(t)
	stamp := Timestamp(now)

	t.Run("auto increment key is left to the backend", func(t *testing.T) {
		def := types.Definition{"stuff": {Type: types.TypeString}}.WithDefaults()

		got, err := PrepareCreate(def, types.Record{"stuff": float64(1), "other": true})
		require.NoError(t, err)
		assert.Equal(t, types.Record{
			"stuff":              "1",
			types.CreatedAtField: stamp,
			types.UpdatedAtField: stamp,
		}, got)
	})

	t.Run("string key is generated", func(t *testing.T) {
		def := types.Definition{"slug": {Type: types.TypeString, PrimaryKey: true}}.WithDefaults()

		got, err := PrepareCreate(def, types.Record{})
		require.NoError(t, err)
		assert.NotEmpty(t, got["slug"])
	})

	t.Run("integer key without auto increment is required", func(t *testing.T) {
		def := types.Definition{"n": {Type: types.TypeInteger, PrimaryKey: true}}.WithDefaults()

		_, err := PrepareCreate(def, types.Record{})
		assert.ErrorIs(t, err, types.ErrInvalidData)
	})

	t.Run("required attributes are enforced", func(t *testing.T) {
		def := types.Definition{"name": {Type: types.TypeString, Required: true}}.WithDefaults()

		_, err := PrepareCreate(def, types.Record{})
		assert.ErrorIs(t, err, types.ErrInvalidData)
	})
}

func TestPrepareUpdate(t *testing.T) {
	now := fixedClock(t)
	def := types.Definition{"stuff": {Type: types.TypeString}}.WithDefaults()

	got, err := PrepareUpdate(def, types.Record{"stuff": float64(2), "id": float64(1), types.CreatedAtField: "x"})
	require.NoError(t, err)
	assert.Equal(t, types.Record{"stuff": "2", types.UpdatedAtField: Timestamp(now)}, got)
}
