package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	applog "budgetwatch/internal/log"
	"budgetwatch/internal/middleware/ratelimit"
	"budgetwatch/internal/middleware/security"
	"budgetwatch/internal/services"
)

// Deps are the collaborators the API serves from.
type Deps struct {
	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Logger       *applog.Logger

	// RateLimitPerMinute bounds mutating requests per client; 0 uses the default.
	RateLimitPerMinute int
	// Ready reports backend readiness for /readyz. Nil means always ready.
	Ready func(ctx context.Context) error
	// Now defaults to time.Now and anchors the default month.
	Now func() time.Time
}

type Server struct {
	http.Server
	tx       *services.TransactionService
	budgets  *services.BudgetService
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	ready    func(ctx context.Context) error
	now      func() time.Time
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		tx:       deps.Transactions,
		budgets:  deps.Budgets,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector: security.NewDetector(),
		ready:    deps.Ready,
		now:      now,
		started:  now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/v1/expense/get_all", s.handleListExpenses)
	mux.HandleFunc("POST /api/v1/expense/add", s.handleCreateExpense)
	mux.HandleFunc("DELETE /api/v1/expense/delete/{id}", s.handleDeleteExpense)
	mux.HandleFunc("GET /api/v1/expense/facets", s.handleFacets)

	mux.HandleFunc("GET /api/v1/budget", s.handleListBudgets)
	mux.HandleFunc("POST /api/v1/budget/set", s.handleSetBudget)
	mux.HandleFunc("PUT /api/v1/budget/{category}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /api/v1/budget/{category}", s.handleDeleteBudget)
	mux.HandleFunc("GET /api/v1/spend", s.handleSpend)

	mux.HandleFunc("GET /api/v1/reports/monthly/{year}/{month}", s.handleMonthlyReport)
	mux.HandleFunc("GET /api/v1/reports/recent", s.handleRecentReports)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ClientIP, s.onRateLimited)(handler)
	handler = s.detector.Middleware(s.onSuspicious)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.Middleware(logger)(handler)
	handler = otelhttp.NewHandler(handler, "budgetwatch.http")

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applog.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}

func (s *Server) onSuspicious(r *http.Request, reason string) {
	ctx := r.Context()
	applog.FromContext(ctx).WarnContext(ctx, "Suspicious request",
		applog.FieldClientIP, s.detector.ClientIP(r),
		applog.FieldPath, r.URL.Path,
		"reason", reason)
}

// Shutdown stops background routines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
