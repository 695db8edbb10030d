// Package errs contains sentinel errors shared by the cache layers.
package errs

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIncompatibleFormat indicates the on-disk store cannot be read by this
	// build and has to be recreated.
	ErrIncompatibleFormat = errors.New("incompatible cache format")

	// ErrNoSession indicates a crypto session required by the caller is absent.
	ErrNoSession = errors.New("session not found")

	// ErrClosed indicates the environment was already closed.
	ErrClosed = errors.New("environment closed")
)
