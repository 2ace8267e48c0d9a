package provclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/softap/internal/netmode"
	"github.com/muurk/softap/internal/payload"
	"github.com/muurk/softap/internal/server"
	"github.com/muurk/softap/internal/statusapi"
)

const (
	// DefaultPagePath is the configuration page served by the daemon
	DefaultPagePath = "/index.html"

	// SavePath is where credentials are posted
	SavePath = "/save"

	// DefaultTimeout covers a whole join attempt plus the fallback, which the
	// daemon completes before answering the save request.
	DefaultTimeout = 90 * time.Second

	// eventGrace is how long Provision waits for the stream to catch up
	// after the save response arrived.
	eventGrace = 2 * time.Second
)

// Client talks to a softap daemon from a machine joined to its access point.
type Client struct {
	// BaseURL is the provisioning endpoint (e.g., "http://192.168.43.1:8080")
	BaseURL string

	// StatusURL is the status API endpoint. Empty when the daemon has it
	// disabled.
	StatusURL string

	// PagePath is requested by FetchPage
	PagePath string

	HTTPClient *http.Client
	Dialer     *websocket.Dialer

	// OnEvent, if set, sees each transition event Provision receives. It
	// runs on the stream goroutine.
	OnEvent func(netmode.Event)
}

// NewClient creates a client for the daemon at host. A statusPort of 0
// means the status API is not available.
func NewClient(host string, port, statusPort int) *Client {
	c := NewClientWithURL("http://"+net.JoinHostPort(host, strconv.Itoa(port)), "")
	if statusPort > 0 {
		c.StatusURL = "http://" + net.JoinHostPort(host, strconv.Itoa(statusPort))
	}
	return c
}

// NewClientWithURL creates a client with full base URLs.
func NewClientWithURL(baseURL, statusURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		StatusURL:  strings.TrimSuffix(statusURL, "/"),
		PagePath:   DefaultPagePath,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Dialer:     websocket.DefaultDialer,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// FetchPage downloads the configuration page.
func (c *Client) FetchPage(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+c.PagePath, nil)
	if err != nil {
		return nil, newNetworkError("failed to create GET request", err, c.host())
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, newNetworkError("GET request failed", err, c.host())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newNetworkError("failed to read response body", err, c.host())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}
	return body, nil
}

// SaveOutcome is how a save request ended from the client's point of view.
type SaveOutcome int

const (
	// SaveAccepted means the daemon answered with its success page. It does
	// not mean the join worked: a failed join is answered the same way once
	// the access point has been restored.
	SaveAccepted SaveOutcome = iota

	// SaveProbablyJoined means no answer arrived. On success the access point
	// goes away, taking the connection with it.
	SaveProbablyJoined
)

func (o SaveOutcome) String() string {
	switch o {
	case SaveAccepted:
		return "accepted"
	case SaveProbablyJoined:
		return "probably joined"
	default:
		return fmt.Sprintf("SaveOutcome(%d)", int(o))
	}
}

// SaveResult reports a save request.
type SaveResult struct {
	Outcome SaveOutcome
	Body    string
	Err     error // transport error behind SaveProbablyJoined
}

// EncodeCredentials renders the body the configuration page posts.
func EncodeCredentials(creds netmode.StationCredentials) string {
	return fmt.Sprintf(`{"ssid":"%s","password":"%s"}`, creds.SSID, creds.Passphrase)
}

// ValidateCredentials rejects values the daemon cannot extract. Empty values
// and values containing payload delimiters would be dropped or split.
func ValidateCredentials(creds netmode.StationCredentials) error {
	check := func(name, value string) error {
		if value == "" {
			return &ClientError{Type: ErrTypeValidation, Message: name + " cannot be empty"}
		}
		if i := strings.IndexAny(value, payload.Delimiters); i >= 0 {
			return &ClientError{Type: ErrTypeValidation,
				Message: fmt.Sprintf("%s cannot contain %q", name, value[i])}
		}
		return nil
	}
	if err := check("SSID", creds.SSID); err != nil {
		return err
	}
	return check("password", creds.Passphrase)
}

// Save posts credentials and waits for the daemon's answer, which comes
// after the join attempt and any fallback have finished.
func (c *Client) Save(ctx context.Context, creds netmode.StationCredentials) (*SaveResult, error) {
	if err := ValidateCredentials(creds); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+SavePath,
		strings.NewReader(EncodeCredentials(creds)))
	if err != nil {
		return nil, newNetworkError("failed to create POST request", err, c.host())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if lostAnswer(err) && ctx.Err() == nil {
			return &SaveResult{Outcome: SaveProbablyJoined, Err: err}, nil
		}
		return nil, newNetworkError("POST request failed", err, c.host())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &SaveResult{Outcome: SaveProbablyJoined, Err: err}, nil
	}

	switch {
	case resp.StatusCode == http.StatusOK && strings.Contains(string(body), server.SuccessBody):
		return &SaveResult{Outcome: SaveAccepted, Body: string(body)}, nil
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &ClientError{Type: ErrTypeRejected, Message: "daemon could not read the credentials",
			StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusOK:
		return nil, newParseError("unrecognized success page", nil)
	default:
		return nil, newHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}
}

// lostAnswer reports errors that mean the request went out but the answer
// never came back.
func lostAnswer(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	ce := ClassifyNetworkError(err, "")
	return ce.Type == ErrTypeTimeout || ce.NetworkSubtype == NetworkErrorConnectionReset
}

// Status reads the daemon's current mode.
func (c *Client) Status(ctx context.Context) (*statusapi.StatusResponse, error) {
	if c.StatusURL == "" {
		return nil, &ClientError{Type: ErrTypeUnavailable, Message: "status API not available"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.StatusURL+statusapi.StatusPath, nil)
	if err != nil {
		return nil, newNetworkError("failed to create GET request", err, c.host())
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, newNetworkError("status request failed", err, c.host())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}

	var status statusapi.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, newParseError("failed to parse status response", err)
	}
	return &status, nil
}

// Watch streams status messages to fn until fn returns false, ctx ends or
// the daemon closes the stream. The first message is a status snapshot.
func (c *Client) Watch(ctx context.Context, fn func(statusapi.Message) bool) error {
	conn, err := c.dialWatch(ctx)
	if err != nil {
		return err
	}
	return c.readMessages(ctx, conn, fn)
}

func (c *Client) dialWatch(ctx context.Context) (*websocket.Conn, error) {
	if c.StatusURL == "" {
		return nil, &ClientError{Type: ErrTypeUnavailable, Message: "status API not available"}
	}

	wsURL, err := websocketURL(c.StatusURL + statusapi.WatchPath)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeValidation, Message: "invalid status URL", Err: err}
	}

	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, newHTTPError(resp.StatusCode, "status stream upgrade refused")
		}
		return nil, newNetworkError("status stream dial failed", err, c.host())
	}
	return conn, nil
}

func (c *Client) readMessages(ctx context.Context, conn *websocket.Conn, fn func(statusapi.Message) bool) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() { _ = conn.Close() }()

	for {
		var msg statusapi.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				return newParseError("malformed status message", err)
			}
			return newNetworkError("status stream failed", err, c.host())
		}
		if !fn(msg) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil
		}
	}
}

// Verdict is the best conclusion Provision could reach.
type Verdict int

const (
	// VerdictUnverified means the daemon accepted the credentials but no
	// status stream was available to tell how the join went.
	VerdictUnverified Verdict = iota
	VerdictJoined
	VerdictProbablyJoined
	VerdictJoinFailed
)

func (v Verdict) String() string {
	switch v {
	case VerdictJoined:
		return "joined"
	case VerdictProbablyJoined:
		return "probably joined"
	case VerdictJoinFailed:
		return "join failed"
	default:
		return "unverified"
	}
}

// ProvisionReport summarizes a provisioning attempt.
type ProvisionReport struct {
	Verdict Verdict

	// StationError is the daemon's description of the failed join stage.
	StationError string

	// FallbackFailed is set when the daemon also failed to restore its
	// access point.
	FallbackFailed bool

	// Events are the transition events seen while the request ran.
	Events []netmode.Event
}

// Provision saves creds while following the status stream, so that a
// failed join can be told apart from a successful one. Without a status
// API the report can only be VerdictUnverified or VerdictProbablyJoined.
func (c *Client) Provision(ctx context.Context, creds netmode.StationCredentials) (*ProvisionReport, error) {
	if err := ValidateCredentials(creds); err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan netmode.Event, 64)
	subscribed := make(chan struct{})
	streamDone := make(chan struct{})
	if conn, err := c.dialWatch(watchCtx); err == nil {
		go func() {
			defer close(streamDone)
			_ = c.readMessages(watchCtx, conn, func(msg statusapi.Message) bool {
				switch {
				case msg.Type == statusapi.MessageStatus:
					select {
					case <-subscribed:
					default:
						close(subscribed)
					}
				case msg.Event != nil:
					if c.OnEvent != nil {
						c.OnEvent(*msg.Event)
					}
					select {
					case events <- *msg.Event:
					default:
					}
				}
				return true
			})
		}()

		// The snapshot is sent once the daemon has subscribed; events from
		// the save cannot be missed after it arrived.
		select {
		case <-subscribed:
		case <-streamDone:
		case <-time.After(eventGrace):
		}
	} else {
		close(streamDone)
	}

	result, err := c.Save(ctx, creds)
	if err != nil {
		return nil, err
	}

	report := &ProvisionReport{}
	if result.Outcome == SaveProbablyJoined {
		report.Verdict = VerdictProbablyJoined
	}

	grace := time.NewTimer(eventGrace)
	defer grace.Stop()
	for settled := false; !settled; {
		select {
		case ev := <-events:
			report.Events = append(report.Events, ev)
			settled = report.apply(ev)
		case <-streamDone:
			settled = true
		case <-grace.C:
			settled = true
		}
	}
	return report, nil
}

// apply folds one event into the report and reports whether the outcome
// is settled.
func (r *ProvisionReport) apply(ev netmode.Event) bool {
	switch {
	case ev.Mode == netmode.ModeStation && ev.Phase == netmode.PhaseSucceeded:
		r.Verdict = VerdictJoined
		return true
	case ev.Mode == netmode.ModeStation && ev.Phase == netmode.PhaseFailed:
		r.Verdict = VerdictJoinFailed
		r.StationError = ev.Error
	case ev.Mode == netmode.ModeAccessPoint && ev.Phase == netmode.PhaseSucceeded:
		return r.Verdict == VerdictJoinFailed
	case ev.Mode == netmode.ModeAccessPoint && ev.Phase == netmode.PhaseFailed:
		r.FallbackFailed = r.Verdict == VerdictJoinFailed
		return r.FallbackFailed
	}
	return false
}

func (c *Client) host() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return c.BaseURL
	}
	return u.Hostname()
}

func websocketURL(httpURL string) (string, error) {
	u, err := url.Parse(httpURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}
