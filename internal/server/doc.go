// Package server implements the provisioning HTTP endpoint.
//
// The endpoint is a raw TCP accept loop, not net/http. Each connection gets
// exactly one read of up to BufferSize bytes; anything beyond is dropped.
// Requests are routed by searching the captured bytes:
//
//	GET /index.html   200, the configuration page streamed from disk
//	POST /save        provision from {"ssid": ..., "password": ...}
//	anything else     404
//
// Responses are written byte for byte and the connection is closed, so no
// Content-Length is sent and keep-alive is never used.
//
// # Save Requests
//
// The body is everything after the first blank line and is read with the
// permissive payload extractor. When both ssid and password are present the
// Provisioner joins the network and, if that fails, brings the access point
// back before returning. The response is only written afterwards:
//
//   - join failed: 200 with the success page, sent to a client that is back
//     on the access point
//   - join succeeded: the success page is written best effort and Serve
//     returns OutcomeProvisioned
//   - a field is missing or there is no body: 400 with the error page
//
// # Fatal Errors
//
// Serve returns a *ResourceError when the configuration page cannot be
// opened, and Start returns a *BindError when the port cannot be bound. Read
// and accept failures on single connections are logged and the loop goes on.
//
// # Concurrency
//
// One connection is handled at a time. Transitions are serialized by the
// Provisioner, so a concurrent front end would still never overlap them.
package server
