// Package api implements the HTTP REST API and WebSocket server for musiccastd.
//
// This package provides:
//   - REST endpoints for tracked devices, zone state, and zone commands
//   - WebSocket hub for real-time state change broadcasts
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API server is a thin read/command surface over the engine. Reads are
// served from engine snapshots, commands go through engine validation before
// they reach a device, and every engine change notification is broadcast to
// WebSocket clients subscribed to the matching channel.
//
// # Graceful Degradation
//
// The server keeps serving snapshots while devices are unreachable; the
// snapshot then carries reachable=false and the last known state.
package api
