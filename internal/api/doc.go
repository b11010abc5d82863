// Package api implements the local HTTP status API and WebSocket feed.
//
// This package provides:
//   - REST endpoints for installations, zones and session status
//   - Zone and installation writes through the controller
//   - A WebSocket hub that pushes installation snapshots on every change
//   - The Prometheus scrape endpoint
//
// # Architecture
//
// The server reads from the installation store and the session, and sends
// writes through the controller, which publishes them to the cloud broker.
// Store notifications are relayed to WebSocket clients subscribed to the
// "installations.updated" channel.
//
// # Graceful Degradation
//
// Reads keep working while the broker connection is down; writes fail with
// 503 until the session is ready again.
package api
