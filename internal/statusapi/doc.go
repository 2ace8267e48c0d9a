// Package statusapi exposes the network mode over HTTP.
//
// GET /status returns the controller status as JSON. GET /status/ws upgrades
// to a websocket that sends a status snapshot and then every transition
// event as it happens. The API is read-only and runs on its own port, bound
// to all interfaces, so an operator can follow a join from either network.
package statusapi
