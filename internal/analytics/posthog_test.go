package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostHogTrackerCapture(t *testing.T) {
	var got captureRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/capture/" {
			t.Errorf("path=%q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tracker := NewPostHogTracker("phc_test", srv.URL)
	err := tracker.Capture(context.Background(), Event{
		Name:       "generation_completed",
		DistinctID: "dev-1",
		Properties: map[string]any{"pro": true},
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if got.APIKey != "phc_test" || got.Event != "generation_completed" || got.DistinctID != "dev-1" {
		t.Fatalf("captured %+v", got)
	}
	if got.Properties["pro"] != true {
		t.Errorf("Properties=%v", got.Properties)
	}
}

func TestPostHogTrackerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tracker := NewPostHogTracker("phc_bad", srv.URL)
	if err := tracker.Capture(context.Background(), Event{Name: "x", DistinctID: "d"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNopTracker(t *testing.T) {
	if err := NewNopTracker().Capture(context.Background(), Event{Name: "anything"}); err != nil {
		t.Fatalf("Capture: %v", err)
	}
}
