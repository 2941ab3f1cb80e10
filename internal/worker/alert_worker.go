// Package worker consumes budget escalations and keeps the alert log.
package worker

import (
	"context"
	"fmt"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/core"
	applog "budgetwatch/internal/log"
	"budgetwatch/internal/storage"
)

// AlertStore persists escalations. *storage.SQLiteRepository implements it.
type AlertStore interface {
	RecordAlert(ctx context.Context, a storage.Alert) (bool, error)
}

// AlertWorker records budget alerts received from AMQP.
type AlertWorker struct {
	store  AlertStore
	logger *applog.Logger
}

func NewAlertWorker(store AlertStore, logger *applog.Logger) *AlertWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &AlertWorker{
		store:  store,
		logger: logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleBudgetAlert implements amqp.AlertHandler. A repeated
// (category, month, status) is acknowledged without a second record.
func (w *AlertWorker) HandleBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	month, err := msg.YearMonth()
	if err != nil {
		return fmt.Errorf("alert month: %w", err)
	}

	alert := storage.Alert{
		Category:      core.NormalizeLabel(msg.Category),
		Month:         month,
		Status:        msg.Status,
		Spent:         core.Money{Cents: msg.SpentCents},
		Limit:         core.Money{Cents: msg.LimitCents},
		TransactionID: msg.TransactionID,
	}
	inserted, err := w.store.RecordAlert(ctx, alert)
	if err != nil {
		return fmt.Errorf("record alert: %w", err)
	}

	fields := applog.NewFields().
		WithBudget(alert.Category, alert.Limit.Cents, alert.Status)
	fields[applog.FieldMonth] = month.String()
	fields[applog.FieldTransactionID] = msg.TransactionID
	if !inserted {
		w.logger.DebugContext(ctx, "Budget alert already recorded", fields.ToSlice()...)
		return nil
	}
	fields[applog.FieldAmountCents] = alert.Spent.Cents
	w.logger.InfoContext(ctx, "Budget alert recorded", fields.ToSlice()...)
	return nil
}
