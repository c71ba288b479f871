package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"bad input", BadInput.New("unknown patch version"), http.StatusBadRequest},
		{"not found", NotFound.New("item"), http.StatusNotFound},
		{"forbidden", Forbidden.New("image already set"), http.StatusForbidden},
		{"unauthenticated", Unauthenticated.New("sign in"), http.StatusUnauthorized},
		{"wrapped", fmt.Errorf("delete item: %w", NotFound.New("item")), http.StatusNotFound},
		{"internal", Internal.New("db down"), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Status(tc.err))
		})
	}
}

func TestPublicHidesInternal(t *testing.T) {
	assert.True(t, Public(Forbidden.New("nope")))
	assert.False(t, Public(errors.New("connection refused")))
}
