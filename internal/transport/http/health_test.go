package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		db     Pinger
		method string
		status int
		want   string
	}{
		{"liveness only", nil, http.MethodGet, http.StatusOK, "ok"},
		{"db reachable", stubPinger{}, http.MethodGet, http.StatusOK, "ok"},
		{"db down", stubPinger{err: errors.New("dial tcp: connection refused")}, http.MethodGet, http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			HandleHealth(tt.db)(rec, httptest.NewRequest(tt.method, "/health", nil))

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			var resp healthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Status != tt.want {
				t.Fatalf("expected status %q, got %q", tt.want, resp.Status)
			}
		})
	}

	rec := httptest.NewRecorder()
	HandleHealth(nil)(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}
