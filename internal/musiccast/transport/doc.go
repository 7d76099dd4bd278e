// Package transport implements the Yamaha Extended Control v1 HTTP client.
//
// Every request carries the X-AppName and X-AppPort headers; a device that
// sees them starts streaming unsolicited UDP notifications to the advertised
// port, which is how the engine's event listener receives push updates
// without any explicit subscribe call.
//
// Responses embed a response_code field. Zero means success; anything else
// is surfaced as a ResponseError wrapping ErrResponseCode. Network and
// decode failures wrap ErrTransport so callers can treat both uniformly
// with errors.Is.
package transport
