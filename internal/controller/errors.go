package controller

import "errors"

var (
	// ErrInvalidRequest is returned for writes with missing or out of
	// range values.
	ErrInvalidRequest = errors.New("controller: invalid request")

	// ErrNoValue is returned when a zone has no channel to read from.
	ErrNoValue = errors.New("controller: no value for zone")
)
