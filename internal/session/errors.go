package session

import "errors"

var (
	// ErrPublishFailures is returned once consecutive publish failures
	// exceed the configured threshold. The counter keeps accumulating
	// until a publish succeeds.
	ErrPublishFailures = errors.New("session: too many consecutive publish failures")

	// ErrNotAuthenticated is returned when an operation needs a token set
	// that has not been obtained yet.
	ErrNotAuthenticated = errors.New("session: not authenticated")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session: closed")
)
