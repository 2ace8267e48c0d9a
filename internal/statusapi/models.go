package statusapi

import "github.com/muurk/softap/internal/netmode"

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	netmode.Status
	Version string `json:"version,omitempty"`
}

// MessageType identifies a status stream message.
type MessageType string

const (
	MessageStatus MessageType = "status"
	MessageEvent  MessageType = "event"
)

// Message is one frame on the status stream. The first frame is always a
// status snapshot; every later frame carries one transition event.
type Message struct {
	Type   MessageType     `json:"type"`
	Status *StatusResponse `json:"status,omitempty"`
	Event  *netmode.Event  `json:"event,omitempty"`
}
