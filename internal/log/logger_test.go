package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentBudget, Output: &buf})
	logger.Info("evaluated", FieldCategory, "Food")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	if entry[FieldComponent] != ComponentBudget || entry[FieldCategory] != "Food" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestMiddlewareSetsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Output: &buf, Component: ComponentApp})

	var seen string
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	if seen == "" || rr.Header().Get("X-Request-ID") != seen {
		t.Fatalf("request id not propagated: ctx=%q header=%q", seen, rr.Header().Get("X-Request-ID"))
	}
	out := buf.String()
	if !strings.Contains(out, "inside handler") || !strings.Contains(out, "status_code=418") {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	if got := ClientIP(r); got != "10.0.0.1" {
		t.Fatalf("ClientIP() = %q", got)
	}
}
