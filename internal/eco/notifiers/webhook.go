package notifiers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/daniacca/ecogrid/internal/eco"
)

const (
	tickHeader    = "X-Ecogrid-Tick"
	payloadHeader = "X-Ecogrid-Payload"
)

// Payload selects how much of a tick a webhook receives.
type Payload string

const (
	// PayloadFull posts the census, the activity and the whole grid.
	PayloadFull Payload = "full"
	// PayloadCensus posts the census and the activity without the grid.
	PayloadCensus Payload = "census"
)

// ParsePayload parses a payload name. The empty string means PayloadFull.
func ParsePayload(s string) (Payload, error) {
	switch Payload(s) {
	case "", PayloadFull:
		return PayloadFull, nil
	case PayloadCensus:
		return PayloadCensus, nil
	}
	return "", fmt.Errorf("unknown webhook payload %q (want %q or %q)", s, PayloadFull, PayloadCensus)
}

// WebhookConfig describes where and what a webhook delivers.
type WebhookConfig struct {
	URL     string
	Headers map[string]string
	Payload Payload
}

// censusEvent is the body of a PayloadCensus delivery.
type censusEvent struct {
	Tick      int64        `json:"tick"`
	Timestamp int64        `json:"timestamp"`
	Census    eco.Census   `json:"census"`
	Activity  eco.Activity `json:"activity"`
}

// WebhookNotifier POSTs every tick to a receiver. Answers are sorted into
// retryable failures (transport errors, 408, 429, 5xx) and rejections
// (other 4xx), which wrap eco.ErrDeliveryRejected so the manager gives up
// on that tick immediately.
type WebhookNotifier struct {
	id      string
	target  *url.URL
	payload Payload
	header  http.Header
	client  *http.Client
}

// NewWebhookNotifier validates cfg and returns a notifier for it. The URL
// must be absolute http or https.
func NewWebhookNotifier(id string, cfg WebhookConfig) (*WebhookNotifier, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("invalid webhook URL %q: want an absolute http or https URL", cfg.URL)
	}

	payload, err := ParsePayload(string(cfg.Payload))
	if err != nil {
		return nil, err
	}

	header := make(http.Header, len(cfg.Headers))
	for k, v := range cfg.Headers {
		header.Set(k, v)
	}

	return &WebhookNotifier{
		id:      id,
		target:  target,
		payload: payload,
		header:  header,
		client:  &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (wn *WebhookNotifier) ID() string {
	return wn.id
}

func (wn *WebhookNotifier) Type() string {
	return "webhook"
}

// URL returns the receiver address.
func (wn *WebhookNotifier) URL() string {
	return wn.target.String()
}

func (wn *WebhookNotifier) Payload() Payload {
	return wn.payload
}

func (wn *WebhookNotifier) body(event eco.TickEvent) ([]byte, error) {
	if wn.payload == PayloadCensus {
		return json.Marshal(censusEvent{
			Tick:      event.Tick,
			Timestamp: event.Timestamp,
			Census:    event.Census,
			Activity:  event.Activity,
		})
	}
	return event.JSON()
}

// Notify posts one tick to the receiver.
func (wn *WebhookNotifier) Notify(ctx context.Context, event eco.TickEvent) error {
	data, err := wn.body(event)
	if err != nil {
		return fmt.Errorf("%w: encoding tick %d: %v", eco.ErrDeliveryRejected, event.Tick, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.target.String(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: building request: %v", eco.ErrDeliveryRejected, err)
	}
	for k, vs := range wn.header {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tickHeader, strconv.FormatInt(event.Tick, 10))
	req.Header.Set(payloadHeader, string(wn.payload))

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting tick %d to %s: %w", event.Tick, wn.target.Host, err)
	}
	defer resp.Body.Close()
	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	return checkStatus(resp.StatusCode, event.Tick)
}

func checkStatus(code int, tick int64) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("webhook answered %d for tick %d", code, tick)
	default:
		return fmt.Errorf("%w: webhook answered %d for tick %d", eco.ErrDeliveryRejected, code, tick)
	}
}

// Close is a no-op; the HTTP client holds no per-notifier resources.
func (wn *WebhookNotifier) Close() error {
	return nil
}
