package matching

import "errors"

var (
	// ErrInvalidInput reports a request that cannot start a session.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingCredential reports a request without the access credential the
	// agent provider needs.
	ErrMissingCredential = errors.New("missing credential")
	// ErrInternal reports an unexpected fault; partial results are discarded.
	ErrInternal = errors.New("internal error")
)

// Error codes carried by ErrorEvent.
const (
	CodeInvalidInput = "invalid_input"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal"
)

// Code maps an error returned by the coordinator to its ErrorEvent code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrMissingCredential):
		return CodeUnauthorized
	default:
		return CodeInternal
	}
}
