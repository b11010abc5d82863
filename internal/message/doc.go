// Package message decodes inbound broker payloads into tagged message
// types and dispatches them to a Handler.
//
// Every payload is a JSON envelope {"type": ..., "data": ...}. The router
// only accepts topics that match one of its subscribed templates (after
// placeholder substitution) plus the application channel $client/app.
// Unrecognised types are returned as Unknown so callers can log and drop
// them; payloads missing required fields fail with ErrInvalidPayload.
package message
