package provclient

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening on the port
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeHTTP indicates an unexpected HTTP status
	ErrTypeHTTP
	// ErrTypeRejected indicates the daemon answered the save with its error page
	ErrTypeRejected
	// ErrTypeParse indicates a malformed response
	ErrTypeParse
	// ErrTypeValidation indicates invalid input caught before sending
	ErrTypeValidation
	// ErrTypeUnavailable indicates the daemon runs without the requested API
	ErrTypeUnavailable
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
	NetworkErrorConnectionReset
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeRejected:
		return "Rejected"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeUnavailable:
		return "Unavailable"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ClientError represents an error that occurred while talking to a daemon
type ClientError struct {
	Type           ErrorType
	Message        string
	StatusCode     int // HTTP status code, if any
	Err            error
	NetworkSubtype NetworkErrorSubtype
	Host           string
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes a transport error and returns a typed
// ClientError for it.
func ClassifyNetworkError(err error, host string) *ClientError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Err: err, Host: host}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &ClientError{
			Type:    ErrTypeDNS,
			Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:     err,
			Host:    host,
		}
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return &ClientError{Type: ErrTypeConnectionRefused, Message: "daemon refused connection", Err: err, Host: host}
	case errors.Is(err, syscall.EHOSTUNREACH):
		return &ClientError{Type: ErrTypeNetwork, Message: "host unreachable", Err: err,
			NetworkSubtype: NetworkErrorHostUnreachable, Host: host}
	case errors.Is(err, syscall.ENETUNREACH):
		return &ClientError{Type: ErrTypeNetwork, Message: "network unreachable", Err: err,
			NetworkSubtype: NetworkErrorNetworkUnreachable, Host: host}
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return &ClientError{Type: ErrTypeNetwork, Message: "connection reset", Err: err,
			NetworkSubtype: NetworkErrorConnectionReset, Host: host}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassifyNetworkError(urlErr.Err, host)
	}

	return &ClientError{Type: ErrTypeNetwork, Message: "network error occurred", Err: err, Host: host}
}

func newNetworkError(message string, err error, host string) *ClientError {
	classified := ClassifyNetworkError(err, host)
	classified.Message = message + ": " + classified.Message
	return classified
}

func newHTTPError(statusCode int, message string) *ClientError {
	return &ClientError{Type: ErrTypeHTTP, Message: message, StatusCode: statusCode}
}

func newParseError(message string, err error) *ClientError {
	return &ClientError{Type: ErrTypeParse, Message: message, Err: err}
}

// IsType reports whether err is a ClientError of type t.
func IsType(err error, t ErrorType) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == t
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS)
func IsNetworkError(err error) bool {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Type == ErrTypeNetwork ||
		ce.Type == ErrTypeTimeout ||
		ce.Type == ErrTypeConnectionRefused ||
		ce.Type == ErrTypeDNS
}

// TroubleshootingHint returns user-facing advice for an error
func TroubleshootingHint(err error) string {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return "An unexpected error occurred. Please try again."
	}

	switch ce.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The daemon did not respond in time.",
			"Troubleshooting:",
			"  • Check that you are joined to the setup access point",
			"  • Try increasing the timeout with --timeout",
			"  • Move closer to the device to improve signal strength",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"Nothing is listening on that port.",
			"Troubleshooting:",
			"  • Check that softap-server is running (systemctl status softap)",
			"  • Verify the port number (default is 8080, status API 8081)",
			"  • The device may already have left access point mode",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the device hostname.",
			"Troubleshooting:",
			"  • Use the access point address instead (default 192.168.43.1)",
			"  • Run 'softap-cfg scan' to find the daemon over mDNS",
		}, "\n")

	case ErrTypeNetwork:
		hint := []string{"Network communication failed."}
		switch ce.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			hint = append(hint,
				"Troubleshooting:",
				"  • Verify the device address is correct",
				"  • Check that you are joined to the setup access point",
				"  • Try pinging the device: ping "+ce.Host)
		case NetworkErrorNetworkUnreachable:
			hint = append(hint,
				"Troubleshooting:",
				"  • Join the device's setup access point",
				"  • Verify Wi-Fi is enabled on your computer")
		case NetworkErrorConnectionReset:
			hint = append(hint,
				"The connection dropped mid-request. If this happened after saving",
				"credentials the device most likely joined the new network.")
		default:
			hint = append(hint,
				"Troubleshooting:",
				"  • Check your network connection",
				"  • Ensure you're connected to the correct network")
		}
		return strings.Join(hint, "\n")

	case ErrTypeRejected:
		return strings.Join([]string{
			"The daemon rejected the request.",
			"Both an SSID and a password must be supplied, and neither may",
			"contain any of: , { } \" :",
		}, "\n")

	case ErrTypeHTTP:
		if ce.StatusCode == 404 {
			return "The daemon does not serve that path. Check --page against the daemon's page_path."
		}
		return fmt.Sprintf("The daemon returned HTTP %d.", ce.StatusCode)

	case ErrTypeParse:
		return "Failed to parse the daemon's response. Check that client and daemon versions match."

	case ErrTypeUnavailable:
		return "The daemon was started with the status API disabled (status.port: 0)."

	case ErrTypeValidation:
		return "The values are invalid. Check the error message for details."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// ShortErrorMessage returns a concise, user-friendly error message
func ShortErrorMessage(err error) string {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return err.Error()
	}

	switch ce.Type {
	case ErrTypeTimeout:
		return "Daemon not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Connection refused - is softap-server running?"
	case ErrTypeDNS:
		return "Cannot resolve device hostname"
	case ErrTypeNetwork:
		switch ce.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Device unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check Wi-Fi connection"
		case NetworkErrorConnectionReset:
			return "Connection dropped"
		default:
			return "Network error - check connection"
		}
	case ErrTypeHTTP:
		return fmt.Sprintf("Daemon error (HTTP %d)", ce.StatusCode)
	case ErrTypeRejected:
		return "Credentials rejected"
	case ErrTypeParse:
		return "Failed to parse daemon response"
	default:
		return ce.Message
	}
}
