package directory

import "errors"

var (
	// ErrAuthentication is returned for rejected credentials or tokens.
	ErrAuthentication = errors.New("directory: authentication failed")

	// ErrCommunication is returned for transport and service failures.
	ErrCommunication = errors.New("directory: communication failed")
)
