// Package mirror implements the HTTP client for the remote events document.
// The server exposes two endpoints, read and write, operating on the full
// collection at once.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/scoutpluse/scoutsync/internal/bus"
	"github.com/scoutpluse/scoutsync/internal/errs"
	"github.com/scoutpluse/scoutsync/internal/model"
)

// DefaultTimeout bounds every request the client issues.
const DefaultTimeout = 10 * time.Second

const snippetLen = 200

// HTTPError reports a non-2xx response status.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error, status: %d", e.Status)
}

// APIError reports a well-formed response whose success flag is false.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "api error: " + e.Message
}

// BodyError reports a response body that is not valid JSON. Snippet holds
// the leading bytes of the offending body.
type BodyError struct {
	Snippet string
	Err     error
}

func (e *BodyError) Error() string {
	return fmt.Sprintf("invalid response body: %v (body: %q)", e.Err, e.Snippet)
}

func (e *BodyError) Unwrap() error { return e.Err }

// ReadResult is the payload of a successful read.
type ReadResult struct {
	Events      []model.Event `json:"events"`
	TotalEvents int           `json:"totalEvents"`
	LastUpdated string        `json:"lastUpdated"`
	ReadTime    string        `json:"readTime"`
}

// WriteResult is the payload of a successful write.
type WriteResult struct {
	Operation   string `json:"operation"`
	TotalEvents int    `json:"totalEvents"`
	LastUpdated string `json:"lastUpdated"`
}

// LoginResult is the payload of a successful login.
type LoginResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      model.User `json:"user"`
}

// Check is the outcome of a connection diagnostic.
type Check struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	EventsCount int    `json:"eventsCount,omitempty"`
}

type envelope struct {
	Success   bool            `json:"success"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
}

type writeRequest struct {
	Token     string `json:"token"`
	Operation string `json:"operation"`
	Data      any    `json:"data"`
}

// Client talks to the mirror endpoints. It tracks connectivity and rejects
// calls without network I/O while offline.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	online  atomic.Bool
	bus     *bus.Bus
	log     *zap.Logger
	now     func() time.Time
}

// New constructs a Client. A zero timeout falls back to DefaultTimeout.
// The client starts in the online state.
func New(baseURL, token string, timeout time.Duration, b *bus.Bus, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   token,
		bus:     b,
		log:     log,
		now:     time.Now,
	}
	c.online.Store(true)
	return c
}

// Online reports the last known connectivity state.
func (c *Client) Online() bool { return c.online.Load() }

// SetOnline records a connectivity transition and announces it.
func (c *Client) SetOnline(online bool) {
	if c.online.Swap(online) == online {
		return
	}
	c.log.Info("network status changed", zap.Bool("online", online))
	c.bus.Publish(bus.Notification{
		Kind:    bus.NetworkStatusChanged,
		Message: map[bool]string{true: "online", false: "offline"}[online],
	})
}

// ReadEvents fetches the full events document. The query carries a
// millisecond cache-buster so intermediaries never serve a stale copy.
func (c *Client) ReadEvents(ctx context.Context) (ReadResult, error) {
	if !c.Online() {
		return ReadResult{}, errs.ErrOffline
	}
	url := fmt.Sprintf("%s/read?t=%d", c.baseURL, c.now().UnixMilli())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ReadResult{}, fmt.Errorf("build read request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	env, err := c.do(req)
	if err != nil {
		return ReadResult{}, err
	}

	var result ReadResult
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &result); err != nil {
			return ReadResult{}, fmt.Errorf("parse read payload: %w", err)
		}
	}
	if result.Events == nil {
		result.Events = []model.Event{}
	}
	c.log.Debug("read events from server", zap.Int("count", len(result.Events)))
	c.bus.Publish(bus.Notification{
		Kind:   bus.EventsLoaded,
		Source: bus.SourceServer,
		Events: result.Events,
		Count:  len(result.Events),
	})
	return result, nil
}

// Head probes the remote document's modification metadata without
// transferring the body. Returns the Last-Modified header value, which may
// be empty when the server does not emit one.
func (c *Client) Head(ctx context.Context) (string, error) {
	if !c.Online() {
		return "", errs.ErrOffline
	}
	url := fmt.Sprintf("%s/read?t=%d", c.baseURL, c.now().UnixMilli())
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", fmt.Errorf("build head request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", c.wrapTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{Status: resp.StatusCode}
	}
	return resp.Header.Get("Last-Modified"), nil
}

// WriteEvents replaces the remote document with the given array.
func (c *Client) WriteEvents(ctx context.Context, events []model.Event) (WriteResult, error) {
	if events == nil {
		events = []model.Event{}
	}
	result, err := c.write(ctx, "update", map[string]any{
		"events":      events,
		"lastUpdated": c.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return WriteResult{}, err
	}
	c.log.Info("wrote events to server", zap.Int("count", len(events)))
	c.bus.Publish(bus.Notification{
		Kind:   bus.EventsSaved,
		Source: bus.SourceServer,
		Count:  len(events),
	})
	return result, nil
}

// AddEvent sends a single event for the server to append. Identity and
// timestamps are filled client-side when absent; the server assigns them
// otherwise.
func (c *Client) AddEvent(ctx context.Context, e model.Event) (WriteResult, error) {
	if e.ID == "" {
		e.ID = model.NewEventID()
	}
	now := c.now().UTC().Format(time.RFC3339)
	if e.CreatedAt == "" {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	return c.write(ctx, "add", e)
}

// DeleteEvent removes the event by id from the remote document.
func (c *Client) DeleteEvent(ctx context.Context, id string) (WriteResult, error) {
	return c.write(ctx, "delete", map[string]string{"id": id})
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if !c.Online() {
		return LoginResult{}, errs.ErrOffline
	}
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return LoginResult{}, fmt.Errorf("marshal login request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return LoginResult{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := c.do(req)
	if err != nil {
		return LoginResult{}, err
	}
	var result LoginResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return LoginResult{}, fmt.Errorf("parse login payload: %w", err)
	}
	return result, nil
}

// TestConnection performs a read and reports the outcome without failing.
func (c *Client) TestConnection(ctx context.Context) Check {
	result, err := c.ReadEvents(ctx)
	check := Check{}
	if err != nil {
		check.Message = "Connection failed: " + err.Error()
	} else {
		check.Success = true
		check.Message = "Connection successful"
		check.EventsCount = len(result.Events)
	}
	c.bus.Publish(bus.Notification{
		Kind:    bus.ConnectionTested,
		Message: check.Message,
		Count:   check.EventsCount,
	})
	return check
}

func (c *Client) write(ctx context.Context, operation string, data any) (WriteResult, error) {
	if !c.Online() {
		return WriteResult{}, errs.ErrOffline
	}
	body, err := json.Marshal(writeRequest{Token: c.token, Operation: operation, Data: data})
	if err != nil {
		return WriteResult{}, fmt.Errorf("marshal %s request: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/write", bytes.NewReader(body))
	if err != nil {
		return WriteResult{}, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := c.do(req)
	if err != nil {
		return WriteResult{}, err
	}
	var result WriteResult
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &result); err != nil {
			return WriteResult{}, fmt.Errorf("parse %s payload: %w", operation, err)
		}
	}
	return result, nil
}

// do issues the request and parses the common response envelope. The body is
// read as raw text first so a malformed response can be reported with its
// leading bytes intact.
func (c *Client) do(req *http.Request) (envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, c.wrapTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, c.wrapTransport(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return envelope{}, &HTTPError{Status: resp.StatusCode}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		snippet := string(raw)
		if len(snippet) > snippetLen {
			snippet = snippet[:snippetLen]
		}
		c.log.Warn("malformed server response", zap.String("snippet", snippet))
		return envelope{}, &BodyError{Snippet: snippet, Err: err}
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "unknown server error"
		}
		return envelope{}, &APIError{Message: msg}
	}
	return env, nil
}

// wrapTransport maps transport failures onto the sentinel taxonomy.
func (c *Client) wrapTransport(err error) error {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return fmt.Errorf("%w: %v", errs.ErrTimeout, err)
	}
	return fmt.Errorf("request failed: %w", err)
}
