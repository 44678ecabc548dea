// Package analytics records product events. Events are fire-and-forget:
// a failed capture never fails the request that produced it.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Tracker records product events.
type Tracker interface {
	Capture(ctx context.Context, event Event) error
}

// Event is a single product event keyed by the anonymous device ID.
type Event struct {
	Name       string
	DistinctID string
	Properties map[string]any
}

// PostHogTracker sends events to the PostHog capture API.
type PostHogTracker struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewPostHogTracker creates a PostHog tracker. host defaults to the
// PostHog cloud endpoint when empty.
func NewPostHogTracker(apiKey, host string) *PostHogTracker {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = "https://us.i.posthog.com"
	}
	return &PostHogTracker{
		apiKey:   apiKey,
		endpoint: host + "/capture/",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type captureRequest struct {
	APIKey     string         `json:"api_key"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// Capture sends one event to the capture endpoint.
func (t *PostHogTracker) Capture(ctx context.Context, event Event) error {
	payload := captureRequest{
		APIKey:     t.apiKey,
		Event:      event.Name,
		DistinctID: event.DistinctID,
		Properties: event.Properties,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal capture request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create capture request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posthog request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("posthog error (HTTP %d)", resp.StatusCode)
	}
	return nil
}

// NopTracker discards events. Used when no analytics key is configured.
type NopTracker struct{}

func NewNopTracker() *NopTracker { return &NopTracker{} }

func (NopTracker) Capture(context.Context, Event) error { return nil }
