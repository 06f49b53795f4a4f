package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/daniacca/ecogrid/internal/eco"
	"github.com/gorilla/websocket"
)

// ErrNotStarted is returned when the server has no simulation yet.
var ErrNotStarted = errors.New("simulation not started")

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// Unwrap maps 409 Conflict to ErrNotStarted.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusConflict {
		return ErrNotStarted
	}
	return nil
}

// CensusReport is the answer of the census endpoint.
type CensusReport struct {
	Tick     int64        `json:"tick"`
	Census   eco.Census   `json:"census"`
	Activity eco.Activity `json:"activity"`
	Running  bool         `json:"running"`
}

// Client talks to an ecogrid server.
// The baseURL is the server's base URL (e.g., "http://localhost:8080").
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		dialer:     websocket.DefaultDialer,
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	data, err := c.send(ctx, method, path, query, body)
	if err != nil || out == nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// send performs one request and returns the body of a 2xx answer.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

// grid requests a grid and checks it is square with every cell invariant
// holding.
func (c *Client) grid(ctx context.Context, method, path string, body any) (eco.Snapshot, error) {
	data, err := c.send(ctx, method, path, nil, body)
	if err != nil {
		return nil, err
	}
	grid, err := eco.DecodeSnapshotJSON(data)
	if err != nil {
		return nil, err
	}
	if err := eco.ValidateSnapshot(grid, len(grid)); err != nil {
		return nil, fmt.Errorf("server sent an invalid grid: %w", err)
	}
	return grid, nil
}

// Start seeds a new simulation and returns the initial grid.
func (c *Client) Start(ctx context.Context, pop eco.Population) (eco.Snapshot, error) {
	return c.grid(ctx, http.MethodPost, "start-simulation", pop)
}

// Step advances the simulation by one tick and returns the new grid.
func (c *Client) Step(ctx context.Context) (eco.Snapshot, error) {
	return c.grid(ctx, http.MethodGet, "next-iteration", nil)
}

// Grid returns the current grid without advancing it.
func (c *Client) Grid(ctx context.Context) (eco.Snapshot, error) {
	return c.grid(ctx, http.MethodGet, "grid", nil)
}

func (c *Client) Census(ctx context.Context) (CensusReport, error) {
	var report CensusReport
	err := c.do(ctx, http.MethodGet, "census", nil, nil, &report)
	return report, err
}

// Run asks the server to tick every intervalMs milliseconds. Zero uses the
// server's configured interval.
func (c *Client) Run(ctx context.Context, intervalMs int) error {
	var query url.Values
	if intervalMs > 0 {
		query = url.Values{"interval": {strconv.Itoa(intervalMs)}}
	}
	return c.do(ctx, http.MethodPost, "run", query, nil, nil)
}

func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "stop", nil, nil, nil)
}

type registerNotifierRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}

// RegisterWebhook asks the server to POST every tick event, grid
// included, to hookURL.
func (c *Client) RegisterWebhook(ctx context.Context, id, hookURL string, headers map[string]string) error {
	return c.registerWebhook(ctx, id, hookURL, headers, "full")
}

// RegisterCensusWebhook is like RegisterWebhook but the server posts only
// the census and activity of each tick.
func (c *Client) RegisterCensusWebhook(ctx context.Context, id, hookURL string, headers map[string]string) error {
	return c.registerWebhook(ctx, id, hookURL, headers, "census")
}

func (c *Client) registerWebhook(ctx context.Context, id, hookURL string, headers map[string]string, payload string) error {
	config := map[string]any{"url": hookURL, "payload": payload}
	if len(headers) > 0 {
		config["headers"] = headers
	}
	req := registerNotifierRequest{Type: "webhook", ID: id, Config: config}
	return c.do(ctx, http.MethodPost, "notifiers", nil, req, nil)
}

// UnregisterNotifier removes a notifier by ID.
func (c *Client) UnregisterNotifier(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "notifiers/"+url.PathEscape(id), nil, nil, nil)
}

// Watch streams tick events from the server and calls fn for each one until
// ctx is cancelled, the connection drops or fn returns an error. A cancelled
// context is not reported as an error.
func (c *Client) Watch(ctx context.Context, fn func(eco.TickEvent) error) error {
	wsURL, err := c.streamURL()
	if err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream closed: %w", err)
		}

		var event eco.TickEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("failed to decode tick event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.JoinPath("ws").String(), nil
}
