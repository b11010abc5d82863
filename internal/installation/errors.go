package installation

import (
	"errors"
	"fmt"
)

// ErrModel is the parent of every model lookup failure.
// Use errors.Is(err, ErrModel) to detect any of them.
var ErrModel = errors.New("installation: model error")

var (
	// ErrInstallationNotFound is returned when no installation has the given unique.
	ErrInstallationNotFound = fmt.Errorf("%w: installation not found", ErrModel)

	// ErrChannelNotFound is returned when no channel has the given id.
	ErrChannelNotFound = fmt.Errorf("%w: channel not found", ErrModel)

	// ErrZoneNotFound is returned when no zone has the given number.
	ErrZoneNotFound = fmt.Errorf("%w: zone not found", ErrModel)

	// ErrNotReady is returned by lookups before the first rebuild.
	ErrNotReady = fmt.Errorf("%w: installations not loaded", ErrModel)
)
