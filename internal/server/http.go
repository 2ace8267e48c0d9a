package server

import (
	"bytes"
	"fmt"
	"net"
	"strings"

	"github.com/muurk/softap/internal/logging"
	"go.uber.org/zap"
)

// Response bodies. softap-cfg and existing operator scripts match on these.
const (
	SuccessBody  = "<html><body><h1>Wi-Fi configuration saved successfully!</h1></body></html>"
	ErrorBody    = "<html><body><h1>Error: Unable to save Wi-Fi configuration!</h1></body></html>"
	NotFoundBody = "<html><body><h1>404 Not Found</h1></body></html>"
)

// Exact response bytes. No Content-Length is sent; the connection is closed
// after every response.
const (
	pageHeader       = "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\n\r\n"
	successResponse  = "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\n\r\n" + SuccessBody + "\n"
	errorResponse    = "HTTP/1.1 400 Bad Request\r\nContent-Type: text/html\r\n\r\n" + ErrorBody + "\n"
	notFoundResponse = "HTTP/1.1 404 Not Found\r\nContent-Type: text/html\r\n\r\n" + NotFoundBody
)

const headerBodySeparator = "\r\n\r\n"

// Route is the handler a request is dispatched to.
type Route int

const (
	RouteNotFound Route = iota
	RouteIndex
	RouteSave
)

func (r Route) String() string {
	switch r {
	case RouteIndex:
		return "index"
	case RouteSave:
		return "save"
	default:
		return "not-found"
	}
}

// Request is what could be understood from the single read of a connection.
// Nothing here is validated; truncated requests parse as far as they go.
type Request struct {
	Method  string
	Path    string
	Proto   string
	Headers map[string]string

	// Body holds the bytes after the first blank line. HasBody is false when
	// no header/body separator was received.
	Body    []byte
	HasBody bool

	Raw []byte
}

// ParseRequest splits raw into request line, headers and body. It never fails.
func ParseRequest(raw []byte) *Request {
	req := &Request{
		Headers: make(map[string]string),
		Raw:     raw,
	}

	head := raw
	if i := bytes.Index(raw, []byte(headerBodySeparator)); i >= 0 {
		head = raw[:i]
		req.Body = raw[i+len(headerBodySeparator):]
		req.HasBody = true
	}

	lines := strings.Split(string(head), "\r\n")
	if len(lines) > 0 {
		parts := strings.Fields(lines[0])
		if len(parts) > 0 {
			req.Method = parts[0]
		}
		if len(parts) > 1 {
			req.Path = parts[1]
		}
		if len(parts) > 2 {
			req.Proto = parts[2]
		}
	}
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		req.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	return req
}

// Classify picks the route by looking for the request markers anywhere in
// the captured bytes, not only in the request line.
func Classify(raw []byte) Route {
	switch {
	case bytes.Contains(raw, []byte("GET /index.html")):
		return RouteIndex
	case bytes.Contains(raw, []byte("POST /save")):
		return RouteSave
	default:
		return RouteNotFound
	}
}

// writeResponse writes a complete response and logs it. Write failures are
// only logged; the client may already be gone.
func writeResponse(conn net.Conn, remoteAddr string, status int, response string) {
	logging.LogRawBytes("HTTP response", []byte(response))

	n, err := conn.Write([]byte(response))
	if err != nil {
		logging.Warn(fmt.Sprintf("failed to write %d response", status),
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}
	logging.LogHTTPResponse(remoteAddr, status, n)
}
