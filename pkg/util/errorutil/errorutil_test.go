package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", NewValidationError("title required"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"wrapped forbidden", fmt.Errorf("ctx: %w", NewForbidden("nope")), http.StatusForbidden, "FORBIDDEN"},
		{"no rows", pgx.ErrNoRows, http.StatusNotFound, "NOT_FOUND"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			assert.Equal(t, tt.status, de.HTTPStatus)
			assert.Equal(t, tt.code, de.Code)
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	de := ToDomainError(errors.New("dial tcp 10.0.0.1:5432: refused"))
	assert.Equal(t, "internal server error", de.Message)
	assert.ErrorContains(t, de, "refused")
}

func TestHasStatus(t *testing.T) {
	assert.True(t, HasStatus(NewNotFound("ticket"), http.StatusNotFound))
	assert.False(t, HasStatus(nil, http.StatusNotFound))
}
