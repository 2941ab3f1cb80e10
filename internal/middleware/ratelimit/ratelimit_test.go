package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(t *testing.T, rpm int) (*Limiter, *fakeClock) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: rpm, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl.now = clock.now
	return rl, clock
}

func TestLimiter_Allow(t *testing.T) {
	rl, clock := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("fourth request in the window should be rejected")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatal("other clients have their own budget")
	}
	if rl.Hits() != 1 {
		t.Fatalf("Hits() = %d, want 1", rl.Hits())
	}

	clock.t = clock.t.Add(time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("a new window should reset the count")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	rl, clock := newTestLimiter(t, 3)
	rl.Allow("a")
	clock.t = clock.t.Add(11 * time.Minute)
	rl.Allow("b")

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("ActiveClients() = %d, want 1", rl.ActiveClients())
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	tests := []struct {
		method string
		want   int
	}{
		{http.MethodPost, http.StatusNoContent},
		{http.MethodGet, http.StatusNoContent},
		{http.MethodDelete, http.StatusTooManyRequests},
		{http.MethodGet, http.StatusNoContent},
	}
	for i, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/", nil))
		if rec.Code != tt.want {
			t.Fatalf("request %d (%s): status = %d, want %d", i, tt.method, rec.Code, tt.want)
		}
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
			t.Fatal("missing Retry-After")
		}
	}
}
