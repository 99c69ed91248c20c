// Package errs defines the error kinds shared across the pipeline.
// Components wrap these sentinels with fmt.Errorf and %w; callers match
// with errors.Is. Only the top-level command converts them into
// user-facing messages.
package errs

import "errors"

var (
	// ErrInvalidInput covers malformed caller input: empty text,
	// non-positive chunk sizes, k <= 0, vector length mismatches.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig covers missing or inconsistent configuration,
	// detected before any network call is made.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound covers absent tenants or classes.
	ErrNotFound = errors.New("not found")

	// ErrTransient covers network, timeout and auth failures from
	// external services. Callers may retry with backoff.
	ErrTransient = errors.New("transient failure")

	// ErrConflict covers duplicate tenant registration.
	ErrConflict = errors.New("already exists")
)
