package services

import (
	"context"

	"budgetwatch/internal/budget"
)

// Recorder receives domain measurements. internal/telemetry provides the
// OpenTelemetry implementation.
type Recorder interface {
	TransactionCreated(ctx context.Context, category string)
	TransactionsFiltered(ctx context.Context, matched, total int)
	BudgetsEvaluated(ctx context.Context, counts map[budget.Status]int)
	AlertPublished(ctx context.Context, status budget.Status, err error)
}

type nopRecorder struct{}

func (nopRecorder) TransactionCreated(context.Context, string)              {}
func (nopRecorder) TransactionsFiltered(context.Context, int, int)          {}
func (nopRecorder) BudgetsEvaluated(context.Context, map[budget.Status]int) {}
func (nopRecorder) AlertPublished(context.Context, budget.Status, error)    {}
