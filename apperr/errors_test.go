package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidArgument: http.StatusBadRequest,
		CodeNotFound:        http.StatusNotFound,
		CodeAlreadyExists:   http.StatusConflict,
		CodeForbidden:       http.StatusForbidden,
		CodeUnauthenticated: http.StatusUnauthorized,
		CodeStorage:         http.StatusInternalServerError,
		CodeInternal:        http.StatusInternalServerError,
		CodeUnknown:         http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, HTTPStatus(code), code)
	}
}

func TestCodeOfFollowsWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("message not found"))
	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.True(t, IsCode(err, CodeNotFound))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
}

func TestStorageHidesCause(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed: message_attachments.id")
	err := Storage("failed to save message", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "UNIQUE constraint")
	assert.Equal(t, "failed to save message", PublicMessage(err))
	assert.Equal(t, "internal server error", PublicMessage(cause))
}

func TestSentinelMatching(t *testing.T) {
	sentinel := InvalidArg("no file uploaded")
	assert.ErrorIs(t, fmt.Errorf("upload: %w", sentinel), InvalidArg("no file uploaded"))
	assert.NotErrorIs(t, sentinel, InvalidArg("other"))
}
