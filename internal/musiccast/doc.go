// Package musiccast defines the domain model for Yamaha MusicCast devices:
// device identity and capabilities, per-zone state fields, multi-room group
// views, and the immutable snapshots handed to subscribers.
//
// The package is deliberately free of I/O. The HTTP client lives in
// musiccast/transport; the synchronization core lives in engine.
//
// # State model
//
// Zone state is field-oriented rather than struct-oriented: a Delta maps
// Field names to new values, and the engine's store applies deltas with a
// per-field last-writer-wins rule. Fields that have never been reported by
// a device are absent, never defaulted — snapshots expose them as nil
// pointers so "unknown" stays distinguishable from a zero value.
package musiccast
