package message

import "errors"

var (
	// ErrUnknownTopic is returned for topics matching no subscribed template.
	ErrUnknownTopic = errors.New("message: unknown topic")

	// ErrInvalidPayload is returned when a payload is not a valid envelope
	// or lacks fields required by its type.
	ErrInvalidPayload = errors.New("message: invalid payload")
)
