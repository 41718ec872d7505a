package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrDocumentNotFound, http.StatusNotFound},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrDependencyUnavailable, http.StatusServiceUnavailable},
		{ErrTimeout, http.StatusServiceUnavailable},
		{ErrInternal, http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatusCode(tc.err), tc.err.Error())
	}
}

func TestHTTPStatusCodeUnwrapsChains(t *testing.T) {
	wrapped := fmt.Errorf("fetching row: %w", ErrDocumentNotFound)
	assert.Equal(t, http.StatusNotFound, HTTPStatusCode(wrapped))

	appErr := New(ErrInvalidInput, "title must not be blank")
	assert.Equal(t, http.StatusBadRequest, HTTPStatusCode(appErr))
	assert.ErrorIs(t, appErr, ErrInvalidInput)
}

func TestAppErrorMessage(t *testing.T) {
	err := Newf(ErrRateLimited, "tenant %s over quota", "acme")
	assert.Contains(t, err.Error(), "rate limit exceeded")
	assert.Contains(t, err.Error(), "tenant acme over quota")
}
