package models

import "errors"

// Domain error taxonomy. Services wrap these with context via fmt.Errorf
// and handlers map them onto HTTP status codes with errors.Is.
var (
	// ErrNotFound indicates the requested resource id could not be resolved.
	ErrNotFound = errors.New("resource not found")

	// ErrForbidden indicates the caller's organization does not own the
	// resource, or the operation is not permitted on it.
	ErrForbidden = errors.New("access denied")

	// ErrInvalidInput covers bad file types and sizes, duplicate names,
	// invalid entity references and invalid state transitions.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates missing or bad credentials.
	ErrUnauthorized = errors.New("unauthorized")
)
