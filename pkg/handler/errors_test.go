package handler_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudkit/pkg/handler"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

func TestAsError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"typed error passes through", handler.BadData("bad"), http.StatusUnprocessableEntity, "bad"},
		{"wrapped typed error passes through", fmt.Errorf("hook: %w", handler.Unauthorized("who")), http.StatusUnauthorized, "who"},
		{"not found", fmt.Errorf("find: %w", types.ErrNotFound), http.StatusNotFound, handler.MsgNotFound},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError, "disk on fire"},
		{"unique violation", fmt.Errorf("create: %w", types.ErrUniqueViolation), http.StatusInternalServerError, "create: " + types.ErrUniqueViolation.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := handler.AsError(tt.err)
			assert.Equal(t, tt.wantStatus, e.StatusCode)
			assert.Equal(t, tt.wantMessage, e.Message)
			assert.Equal(t, http.StatusText(tt.wantStatus), e.Title)
		})
	}
}

func TestError_JSON(t *testing.T) {
	data, err := json.Marshal(handler.BadImplementation(handler.MsgMissingCriteriaResolver))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"statusCode": 500,
		"error": "Internal Server Error",
		"message": "options.CriteriaResolver is required"
	}`, string(data))
}

func TestConstructors_DefaultMessage(t *testing.T) {
	assert.Equal(t, handler.MsgNotFound, handler.NotFound("").Message)
	assert.Equal(t, "Unauthorized", handler.Unauthorized("").Message)
	assert.Equal(t, "Bad Request", handler.BadRequest("").Message)
}
