package services

import (
	"context"
	"fmt"
	"time"

	"budgetwatch/internal/budget"
	"budgetwatch/internal/core"
	applog "budgetwatch/internal/log"
	"budgetwatch/internal/ports"
	"budgetwatch/internal/spend"
)

const (
	DefaultRecentMonths = 3
	MaxRecentMonths     = 12
)

// MonthSpend is the per-category spend of one month.
type MonthSpend struct {
	Month      core.YearMonth
	ByCategory map[string]core.Money
	Total      core.Money
}

// BudgetService manages budget limits and derives the monthly views.
type BudgetService struct {
	store    ports.BudgetStore
	txs      ports.TransactionLister
	recorder Recorder
	logger   *applog.Logger
}

func NewBudgetService(store ports.BudgetStore, txs ports.TransactionLister, recorder Recorder, logger *applog.Logger) *BudgetService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &BudgetService{
		store:    store,
		txs:      txs,
		recorder: recorder,
		logger:   logger.WithComponent(applog.ComponentBudget),
	}
}

func (s *BudgetService) List(ctx context.Context) ([]core.BudgetLimit, error) {
	return s.store.ListBudgets(ctx)
}

// Set creates a limit. A category that already has one yields
// core.ErrDuplicateBudget; use Update to change it.
func (s *BudgetService) Set(ctx context.Context, category string, limit core.Money) (core.BudgetLimit, error) {
	b, err := s.store.CreateBudget(ctx, core.BudgetLimit{Category: category, Limit: limit})
	if err != nil {
		return core.BudgetLimit{}, err
	}
	s.logger.InfoContext(ctx, "Budget set",
		applog.NewFields().WithOperation(applog.OpCreate).WithBudget(b.Category, b.Limit.Cents, "").ToSlice()...)
	return b, nil
}

func (s *BudgetService) Update(ctx context.Context, category string, limit core.Money) (core.BudgetLimit, error) {
	b, err := s.store.UpdateBudget(ctx, category, limit)
	if err != nil {
		return core.BudgetLimit{}, err
	}
	s.logger.InfoContext(ctx, "Budget updated",
		applog.NewFields().WithOperation(applog.OpUpdate).WithBudget(b.Category, b.Limit.Cents, "").ToSlice()...)
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, category string) error {
	if err := s.store.DeleteBudget(ctx, category); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Budget deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldCategory, core.NormalizeLabel(category))
	return nil
}

// Evaluate classifies every limit against the month's spend.
func (s *BudgetService) Evaluate(ctx context.Context, month core.YearMonth) ([]budget.Evaluation, error) {
	limits, txs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	evals, err := budget.EvaluateMonth(txs, limits, month)
	if err != nil {
		return nil, err
	}
	s.recorder.BudgetsEvaluated(ctx, budget.CountByStatus(evals))
	return evals, nil
}

// Spend aggregates the month's transactions by category.
func (s *BudgetService) Spend(ctx context.Context, month core.YearMonth) (MonthSpend, error) {
	txs, err := s.txs.ListTransactions(ctx)
	if err != nil {
		return MonthSpend{}, err
	}
	by := spend.Aggregate(txs, month)
	return MonthSpend{Month: month, ByCategory: by, Total: spend.Total(by)}, nil
}

// MonthlyReport computes the overview of one month. Nothing is persisted.
func (s *BudgetService) MonthlyReport(ctx context.Context, month core.YearMonth) (core.MonthOverview, error) {
	limits, txs, err := s.load(ctx)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return report(txs, limits, month)
}

// RecentReports returns overviews for the n months ending with the month
// containing now, most recent first. n is clamped to [1, MaxRecentMonths].
func (s *BudgetService) RecentReports(ctx context.Context, now time.Time, n int) ([]core.MonthOverview, error) {
	if n < 1 {
		n = DefaultRecentMonths
	}
	if n > MaxRecentMonths {
		n = MaxRecentMonths
	}
	limits, txs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]core.MonthOverview, 0, n)
	month := core.CurrentYearMonth(now)
	for i := 0; i < n; i++ {
		ov, err := report(txs, limits, month)
		if err != nil {
			return nil, err
		}
		out = append(out, ov)
		month = month.Prev()
	}
	return out, nil
}

func report(txs []core.Transaction, limits []core.BudgetLimit, month core.YearMonth) (core.MonthOverview, error) {
	by := spend.Aggregate(txs, month)
	evals, err := budget.Evaluate(limits, by)
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("report %s: %w", month, err)
	}
	return spend.Overview(month, by, budget.OverBudget(evals)), nil
}

func (s *BudgetService) load(ctx context.Context) ([]core.BudgetLimit, []core.Transaction, error) {
	limits, err := s.store.ListBudgets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list budgets: %w", err)
	}
	txs, err := s.txs.ListTransactions(ctx)
	if err != nil {
		return nil, nil, err
	}
	return limits, txs, nil
}
