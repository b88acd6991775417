package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	wrapped := fmt.Errorf("load: %w", NewConflict("taken", nil))
	assert.Equal(t, CodeConflict, ToDomainError(wrapped).Code)

	assert.Equal(t, CodeNotFound, ToDomainError(sql.ErrNoRows).Code)

	internal := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
}

func TestInvalidTransitionUnwraps(t *testing.T) {
	cause := errors.New("cancel on resolved ticket")
	err := NewInvalidTransition(cause, map[string]any{"ticket_id": "t-1"})

	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeInvalidTransition))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.Equal(t, http.StatusConflict, ToDomainError(err).HTTPStatus)
}

func TestPersistenceFailure(t *testing.T) {
	cause := errors.New("disk full")
	err := NewPersistenceFailure(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "persistence failure: disk full", err.Error())
}
