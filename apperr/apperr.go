// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"net/http"

	"github.com/zeebo/errs"
)

var (
	// BadInput is malformed or semantically invalid request data.
	BadInput = errs.Class("bad input")
	// NotFound is a referenced entity that does not exist.
	NotFound = errs.Class("not found")
	// Forbidden is an authorization or invariant violation.
	Forbidden = errs.Class("forbidden")
	// Unauthenticated means the operation needs a signed-in identity.
	Unauthenticated = errs.Class("unauthenticated")
	// Internal covers storage and database failures.
	Internal = errs.Class("internal")
)

// Status maps an error onto the HTTP status code it is reported with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case BadInput.Has(err):
		return http.StatusBadRequest
	case NotFound.Has(err):
		return http.StatusNotFound
	case Forbidden.Has(err):
		return http.StatusForbidden
	case Unauthenticated.Has(err):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// Public reports whether the error message can be shown to the caller.
func Public(err error) bool {
	return Status(err) != http.StatusInternalServerError
}
