package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	applog "budgetwatch/internal/log"
	"budgetwatch/internal/ports/memory"
	"budgetwatch/internal/services"
)

var fixedNow = time.Date(2024, time.May, 20, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, ready func(context.Context) error, perMinute int) *Server {
	t.Helper()
	store := memory.New()
	logger := applog.New(applog.Config{Output: io.Discard})
	srv := NewServer(":0", Deps{
		Transactions:       services.NewTransactionService(store, store, logger),
		Budgets:            services.NewBudgetService(store, store, nil, logger),
		Logger:             logger,
		RateLimitPerMinute: perMinute,
		Ready:              ready,
		Now:                func() time.Time { return fixedNow },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Body.Len() == 0 {
		return rec, nil
	}
	var out map[string]any
	dec := json.NewDecoder(strings.NewReader(rec.Body.String()))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, target, rec.Body.String(), err)
	}
	return rec, out
}

func TestHealthAndReadiness(t *testing.T) {
	srv := newTestServer(t, nil, 0)
	rec, body := do(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", rec.Code, body)
	}

	down := newTestServer(t, func(context.Context) error { return errors.New("database is locked") }, 0)
	rec, body = do(t, down, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", rec.Code)
	}
	if body["status"] != "not_ready" {
		t.Errorf("readyz body = %v", body)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv := newTestServer(t, nil, 0)
	rec, _ := do(t, srv, http.MethodGet, "/healthz", "")
	for name, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestExpenseLifecycle(t *testing.T) {
	srv := newTestServer(t, nil, 0)

	rec, body := do(t, srv, http.MethodPost, "/api/v1/budget/set", `{"category":"Food","limit":"100"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("set budget = %d %v", rec.Code, body)
	}

	rec, body = do(t, srv, http.MethodPost, "/api/v1/expense/add",
		`{"category":"Food","amount":85,"date":"2024-05-10","paymentMethod":"Card","notes":"groceries"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add = %d %v", rec.Code, body)
	}
	created := body["transaction"].(map[string]any)
	if created["amount"] != json.Number("85.00") {
		t.Errorf("amount = %v, want 85.00", created["amount"])
	}
	alerts := body["alerts"].([]any)
	if len(alerts) != 1 || alerts[0].(map[string]any)["status"] != "warning" {
		t.Fatalf("alerts = %v, want one warning", alerts)
	}

	_, body = do(t, srv, http.MethodPost, "/api/v1/expense/add", `{"category":"Transport","amount":"12,50"}`)
	if body["transaction"].(map[string]any)["date"] != "2024-05-20" {
		t.Errorf("missing date should default to today, got %v", body["transaction"])
	}

	rec, body = do(t, srv, http.MethodGet, "/api/v1/expense/get_all?category=Food", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get_all = %d", rec.Code)
	}
	if body["matched"] != json.Number("1") || body["total"] != json.Number("2") || body["activeFilters"] != json.Number("1") {
		t.Errorf("list counts = %v", body)
	}
	facets := body["facets"].(map[string]any)
	if len(facets["categories"].([]any)) != 2 {
		t.Errorf("facets = %v", facets)
	}

	id := created["id"].(string)
	rec, _ = do(t, srv, http.MethodDelete, "/api/v1/expense/delete/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	rec, _ = do(t, srv, http.MethodDelete, "/api/v1/expense/delete/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rec.Code)
	}
}

func TestExpenseValidation(t *testing.T) {
	srv := newTestServer(t, nil, 0)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"zero amount", `{"category":"Food","amount":"0"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"category":"Food","amount":"-3"}`, http.StatusUnprocessableEntity},
		{"missing category", `{"amount":"3"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"category":"Food","amount":"3","date":"2024-02-30"}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"category":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, srv, http.MethodPost, "/api/v1/expense/add", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%v)", rec.Code, tt.want, body)
			}
			if body["success"] != false {
				t.Errorf("body = %v", body)
			}
		})
	}

	rec, _ := do(t, srv, http.MethodGet, "/api/v1/expense/get_all?dateFrom=2024-05-10&dateTo=2024-05-01", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("inverted range = %d, want 422", rec.Code)
	}
}

func TestBudgetEndpoints(t *testing.T) {
	srv := newTestServer(t, nil, 0)

	do(t, srv, http.MethodPost, "/api/v1/budget/set", `{"category":"Food","limit":"100"}`)
	rec, _ := do(t, srv, http.MethodPost, "/api/v1/budget/set", `{"category":"Food","limit":"50"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate set = %d, want 409", rec.Code)
	}
	rec, _ = do(t, srv, http.MethodPost, "/api/v1/budget/set", `{"category":"Fun","limit":"0"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("zero limit = %d, want 422", rec.Code)
	}

	rec, body := do(t, srv, http.MethodPut, "/api/v1/budget/Food", `{"limit":"200.5"}`)
	if rec.Code != http.StatusOK || body["limit"] != json.Number("200.50") {
		t.Fatalf("update = %d %v", rec.Code, body)
	}

	do(t, srv, http.MethodPost, "/api/v1/expense/add", `{"category":"Food","amount":"30","date":"2024-05-02"}`)
	do(t, srv, http.MethodPost, "/api/v1/expense/add", `{"category":"Food","amount":"99","date":"2024-04-02"}`)

	rec, body = do(t, srv, http.MethodGet, "/api/v1/budget", "")
	if rec.Code != http.StatusOK || body["month"] != "2024-05" {
		t.Fatalf("list = %d %v", rec.Code, body)
	}
	budgets := body["budgets"].([]any)
	if len(budgets) != 1 || budgets[0].(map[string]any)["spent"] != json.Number("30.00") {
		t.Errorf("budgets = %v", budgets)
	}

	_, body = do(t, srv, http.MethodGet, "/api/v1/budget?month=2024-04", "")
	if got := body["budgets"].([]any)[0].(map[string]any)["spent"]; got != json.Number("99.00") {
		t.Errorf("april spent = %v", got)
	}
	rec, _ = do(t, srv, http.MethodGet, "/api/v1/budget?month=2024-13", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad month = %d, want 422", rec.Code)
	}

	rec, body = do(t, srv, http.MethodGet, "/api/v1/spend", "")
	if rec.Code != http.StatusOK || body["total"] != json.Number("30.00") {
		t.Errorf("spend = %d %v", rec.Code, body)
	}

	rec, _ = do(t, srv, http.MethodDelete, "/api/v1/budget/Food", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	rec, _ = do(t, srv, http.MethodDelete, "/api/v1/budget/Food", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rec.Code)
	}
}

func TestReports(t *testing.T) {
	srv := newTestServer(t, nil, 0)
	do(t, srv, http.MethodPost, "/api/v1/budget/set", `{"category":"Food","limit":"100"}`)
	do(t, srv, http.MethodPost, "/api/v1/expense/add", `{"category":"Food","amount":"120","date":"2024-05-03"}`)
	do(t, srv, http.MethodPost, "/api/v1/expense/add", `{"category":"Rent","amount":"80","date":"2024-05-01"}`)

	rec, body := do(t, srv, http.MethodGet, "/api/v1/reports/monthly/2024/5", "")
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("monthly = %d %v", rec.Code, body)
	}
	data := body["data"].(map[string]any)
	if data["totalSpent"] != json.Number("200.00") || data["topCategory"] != "Food" || data["monthName"] != "May" {
		t.Errorf("monthly data = %v", data)
	}
	if over := data["overbudgetCategories"].([]any); len(over) != 1 || over[0] != "Food" {
		t.Errorf("overbudget = %v", over)
	}

	for _, path := range []string{"/api/v1/reports/monthly/2024/13", "/api/v1/reports/monthly/abcd/5"} {
		rec, _ = do(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s = %d, want 422", path, rec.Code)
		}
	}

	rec, body = do(t, srv, http.MethodGet, "/api/v1/reports/recent?limit=2", "")
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("recent = %d %v", rec.Code, body)
	}
	list := body["data"].([]any)
	if len(list) != 2 {
		t.Fatalf("recent len = %d, want 2", len(list))
	}
	if m := list[0].(map[string]any)["month"]; m != json.Number("5") {
		t.Errorf("first month = %v, want 5", m)
	}
	if m := list[1].(map[string]any)["totalSpent"]; m != json.Number("0.00") {
		t.Errorf("april total = %v, want 0.00", m)
	}
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	srv := newTestServer(t, nil, 2)
	for i, category := range []string{"A", "B"} {
		rec, _ := do(t, srv, http.MethodPost, "/api/v1/budget/set", `{"category":"`+category+`","limit":"10"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
	rec, body := do(t, srv, http.MethodPost, "/api/v1/budget/set", `{"category":"C","limit":"10"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third write = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || body["success"] != false {
		t.Errorf("429 response = %v %v", rec.Header(), body)
	}

	rec, _ = do(t, srv, http.MethodGet, "/api/v1/budget", "")
	if rec.Code != http.StatusOK {
		t.Errorf("reads should not be limited, got %d", rec.Code)
	}
}
