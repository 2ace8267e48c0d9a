package netmode

import (
	"fmt"
	"time"
)

// Mode is the network role the device currently plays.
type Mode int

const (
	// ModeUnknown is entered when a transition fails part way through.
	ModeUnknown Mode = iota
	// ModeAccessPoint serves the setup network.
	ModeAccessPoint
	// ModeStation is joined to an existing Wi-Fi network.
	ModeStation
)

// String returns the wire name of the mode
func (m Mode) String() string {
	switch m {
	case ModeAccessPoint:
		return "access-point"
	case ModeStation:
		return "station"
	case ModeUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler so modes serialize by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "access-point":
		*m = ModeAccessPoint
	case "station":
		*m = ModeStation
	case "unknown":
		*m = ModeUnknown
	default:
		return fmt.Errorf("unknown mode %q", string(text))
	}
	return nil
}

// AccessPointConfig describes the setup network. It is fixed at startup and
// reused for every (re-)entry into AP mode.
type AccessPointConfig struct {
	SSID       string
	Passphrase string
	StaticIP   string // address of the AP-facing interface, e.g. 192.168.43.1
	PrefixLen  int    // e.g. 24

	LANInterface string // AP-facing interface, e.g. wlan1
	WANInterface string // uplink interface, e.g. wlan0

	DHCPRangeStart string
	DHCPRangeEnd   string
	Channel        int

	// DNSRedirect is the resolver that DNS queries from AP clients are
	// NATed to. Empty disables the redirect rule.
	DNSRedirect string
}

// String describes the AP without its passphrase.
func (c AccessPointConfig) String() string {
	return fmt.Sprintf("AP %q on %s (%s/%d, uplink %s)", c.SSID, c.LANInterface, c.StaticIP, c.PrefixLen, c.WANInterface)
}

// StationCredentials are built per save request and discarded after one
// transition attempt.
type StationCredentials struct {
	SSID       string
	Passphrase string
}

// String describes the credentials without the passphrase.
func (c StationCredentials) String() string {
	return fmt.Sprintf("network %q", c.SSID)
}

// Phase marks where in a transition an Event was emitted.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseStep      Phase = "step"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Event is published to subscribers as transitions progress.
type Event struct {
	Mode  Mode      `json:"mode"` // target mode of the transition
	Stage Stage     `json:"stage,omitempty"`
	Phase Phase     `json:"phase"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// Status is a point-in-time view of the controller.
type Status struct {
	Mode      Mode      `json:"mode"`
	LastStage Stage     `json:"last_stage,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProvisionResult reports a station join attempt and the fallback it may
// have triggered.
type ProvisionResult struct {
	// Joined is true when the device is now in station mode.
	Joined bool

	// StationErr is the failure of the join attempt, if any.
	StationErr error

	// FallbackAttempted is true when the join failed and AP mode was re-entered.
	FallbackAttempted bool

	// FallbackErr is the failure of the AP re-entry, if any. When set the
	// device may have no reachable management interface.
	FallbackErr error
}

// String returns a one-line summary of the result
func (r *ProvisionResult) String() string {
	switch {
	case r.Joined:
		return "joined network"
	case r.FallbackAttempted && r.FallbackErr == nil:
		return fmt.Sprintf("join failed (%v), access point restored", r.StationErr)
	case r.FallbackAttempted:
		return fmt.Sprintf("join failed (%v) and access point restore failed (%v)", r.StationErr, r.FallbackErr)
	default:
		return fmt.Sprintf("join failed: %v", r.StationErr)
	}
}
