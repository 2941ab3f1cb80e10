package http

import (
	"context"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the backend with a bounded timeout.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.limiter.ActiveClients(), "rejected": s.limiter.Hits()},
	}
	status, code := "ready", http.StatusOK

	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			checks["backend"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	NewJSONResponse().Status(code).Data(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	criteria, err := ParseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.tx.Search(r.Context(), criteria)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(listView{
		Transactions:  newTransactionViews(res.Items),
		Matched:       res.Matched,
		Total:         res.Total,
		ActiveFilters: criteria.ActiveCount(),
		Facets:        newFacetsView(res.Facets),
	}).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	t, err := transactionFromBody(p, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, escalations, err := s.tx.Create(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Data(createdView{Transaction: newTransactionView(saved), Alerts: newAlertViews(escalations)}).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.tx.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	facets, err := s.tx.Facets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newFacetsView(facets)).Write(w)
}

// handleListBudgets returns every limit evaluated against the month's spend.
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonth(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	evals, err := s.budgets.Evaluate(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(budgetsView{Month: month.String(), Budgets: newEvaluationViews(evals)}).Write(w)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	limit, err := limitFromBody(p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.budgets.Set(r.Context(), p.Get("category"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(newBudgetView(b)).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	limit, err := limitFromBody(p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.budgets.Update(r.Context(), r.PathValue("category"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newBudgetView(b)).Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.budgets.Delete(r.Context(), r.PathValue("category")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonth(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	spent, err := s.budgets.Spend(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newSpendView(spent)).Write(w)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	month, err := ParseYearMonthPath(r.PathValue("year"), r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ov, err := s.budgets.MonthlyReport(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Envelope(newOverviewView(ov)).Write(w)
}

// handleRecentReports computes the last N months on every call; reports
// are never stored.
func (s *Server) handleRecentReports(w http.ResponseWriter, r *http.Request) {
	list, err := s.budgets.RecentReports(r.Context(), s.now(), ParseLimit(r.URL.Query(), "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Envelope(newOverviewViews(list)).Write(w)
}
