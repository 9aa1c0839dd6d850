package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindValidation, KindOf(Validation("bad")))
	require.Equal(t, KindNotFound, KindOf(fmt.Errorf("lookup: %w", NotFound("gone"))))
	require.Equal(t, KindInternal, KindOf(errors.New("disk on fire")))
	require.True(t, Is(InvalidState("nope"), KindInvalidState))
	require.False(t, Is(nil, KindInternal))
}

func TestMessage(t *testing.T) {
	cause := errors.New("bolt: database not open")
	err := Internal("Error admitting user", cause)

	require.Equal(t, "Error admitting user", Message(err, "Something went wrong"))
	require.Equal(t, "Something went wrong", Message(cause, "Something went wrong"))
	require.Equal(t, "Hospital not found", Message(NotFound("Hospital not found"), "x"))
	require.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	require.Equal(t, http.StatusBadRequest, HTTPStatus(KindInvalidState))
	require.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	require.Equal(t, http.StatusConflict, HTTPStatus(KindConflict))
	require.Equal(t, http.StatusUnauthorized, HTTPStatus(KindUnauthorized))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(KindInternal))
}
