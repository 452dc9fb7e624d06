// Package apperr defines the sentinel error taxonomy shared by every
// component: validation failures, missing/forbidden entities, transient
// backend outages, and ciphertext integrity failures. Callers check with
// errors.Is/errors.As instead of string matching.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a request rejected at the API boundary: unknown
	// condition type, missing fields, severity outside the closed set,
	// negative cooldown, references owned by someone else.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an absent or non-owned entity. Facade callers must
	// not distinguish "absent" from "forbidden" in the response message.
	ErrNotFound = errors.New("not found or access denied")

	// ErrBackendUnavailable marks a transient failure of the relational,
	// sample, cooldown, or dispatch-sink backend.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrIntegrity marks a ciphertext that failed authentication. It never
	// carries a partial plaintext.
	ErrIntegrity = errors.New("integrity check failed")
)

// Validation wraps ErrValidation with a human-readable reason.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound. The message is deliberately the same for
// "does not exist" and "exists but belongs to someone else".
func NotFound() error {
	return ErrNotFound
}

// BackendUnavailable wraps ErrBackendUnavailable with the originating error.
func BackendUnavailable(source string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, source, err)
}

// Integrity wraps ErrIntegrity.
func Integrity(reason string) error {
	return fmt.Errorf("%w: %s", ErrIntegrity, reason)
}

// Is reports whether err ultimately wraps target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
