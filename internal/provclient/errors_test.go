package provclient

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantType    ErrorType
		wantSubtype NetworkErrorSubtype
	}{
		{"timeout", timeoutErr{}, ErrTypeTimeout, NetworkErrorGeneral},
		{"dns", &net.DNSError{Name: "softap.local", Err: "no such host"}, ErrTypeDNS, NetworkErrorGeneral},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ErrTypeConnectionRefused, NetworkErrorGeneral},
		{"host unreachable", &net.OpError{Op: "dial", Err: syscall.EHOSTUNREACH}, ErrTypeNetwork, NetworkErrorHostUnreachable},
		{"network unreachable", &net.OpError{Op: "dial", Err: syscall.ENETUNREACH}, ErrTypeNetwork, NetworkErrorNetworkUnreachable},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, ErrTypeNetwork, NetworkErrorConnectionReset},
		{"other", errors.New("something odd"), ErrTypeNetwork, NetworkErrorGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := ClassifyNetworkError(tt.err, "192.168.43.1")
			if ce.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", ce.Type, tt.wantType)
			}
			if ce.NetworkSubtype != tt.wantSubtype {
				t.Errorf("NetworkSubtype = %v, want %v", ce.NetworkSubtype, tt.wantSubtype)
			}
			if !errors.Is(ce, tt.err) {
				t.Error("classified error does not wrap the original")
			}
		})
	}

	if ClassifyNetworkError(nil, "") != nil {
		t.Error("ClassifyNetworkError(nil) should be nil")
	}
}

func TestConnectionRefusedFromDial(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	listener.Close()

	_, err = NewClientWithURL("http://"+addr, "").FetchPage(context.Background())
	if !IsType(err, ErrTypeConnectionRefused) {
		t.Fatalf("FetchPage() error = %v, want connection refused", err)
	}
	if !IsNetworkError(err) {
		t.Error("IsNetworkError() = false, want true")
	}
	if !strings.Contains(TroubleshootingHint(err), "softap-server") {
		t.Errorf("hint does not mention the daemon: %s", TroubleshootingHint(err))
	}
}

func TestTroubleshootingHint(t *testing.T) {
	types := []ErrorType{
		ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS,
		ErrTypeHTTP, ErrTypeRejected, ErrTypeParse, ErrTypeValidation, ErrTypeUnavailable,
	}
	for _, et := range types {
		t.Run(et.String(), func(t *testing.T) {
			err := &ClientError{Type: et, Message: "x", StatusCode: 500}
			if TroubleshootingHint(err) == "" {
				t.Error("empty hint")
			}
			if ShortErrorMessage(err) == "" {
				t.Error("empty short message")
			}
		})
	}

	if got := TroubleshootingHint(errors.New("plain")); !strings.Contains(got, "unexpected") {
		t.Errorf("hint for plain error = %q", got)
	}
	if got := ShortErrorMessage(errors.New("plain")); got != "plain" {
		t.Errorf("ShortErrorMessage(plain) = %q", got)
	}
}

func TestClientError_Error(t *testing.T) {
	err := &ClientError{Type: ErrTypeHTTP, Message: "unexpected status code: 500"}
	if err.Error() != "HTTP Error: unexpected status code: 500" {
		t.Errorf("Error() = %q", err.Error())
	}

	wrapped := &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Err: timeoutErr{}}
	if !strings.Contains(wrapped.Error(), "caused by: i/o timeout") {
		t.Errorf("Error() = %q", wrapped.Error())
	}
	if ErrorType(99).String() != "ErrorType(99)" {
		t.Errorf("unknown type String() = %q", ErrorType(99).String())
	}
}
