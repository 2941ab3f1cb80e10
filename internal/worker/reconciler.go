package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgetwatch/internal/budget"
	"budgetwatch/internal/core"
	applog "budgetwatch/internal/log"
	"budgetwatch/internal/storage"
)

// Evaluator classifies the month's budgets. *services.BudgetService implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, month core.YearMonth) ([]budget.Evaluation, error)
}

// ReconcilerConfig holds configuration for the reconciler
type ReconcilerConfig struct {
	// Interval is how often the current month is re-evaluated (default: 10m)
	Interval time.Duration
}

// DefaultReconcilerConfig returns sensible defaults
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{Interval: 10 * time.Minute}
}

// Reconciler periodically evaluates the current month and records any
// warning or alert that has no entry yet. It covers escalations whose AMQP
// message was lost or published while the worker was down.
type Reconciler struct {
	evaluator Evaluator
	store     AlertStore
	config    ReconcilerConfig
	logger    *applog.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReconciler(evaluator Evaluator, store AlertStore, config ReconcilerConfig, logger *applog.Logger) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = DefaultReconcilerConfig().Interval
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Reconciler{
		evaluator: evaluator,
		store:     store,
		config:    config,
		logger:    logger.WithComponent(applog.ComponentWorker),
		now:       time.Now,
	}
}

// Start begins the reconcile loop. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)

	r.logger.InfoContext(ctx, "Reconciler started", "interval", r.config.Interval)
	return nil
}

// Stop signals the loop and waits for it to finish or ctx to expire.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		r.logger.InfoContext(ctx, "Reconciler stopped")
		return nil
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Reconciler stop timed out")
		return ctx.Err()
	}
}

func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reconciler) runLoop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.reconcileLogged(ctx)
	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcileLogged(ctx)
		}
	}
}

func (r *Reconciler) reconcileLogged(ctx context.Context) {
	if _, err := r.Reconcile(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Reconcile failed", applog.FieldError, err.Error())
	}
}

// Reconcile runs one pass over the current month and returns the number of
// alerts it recorded.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	month := core.CurrentYearMonth(r.now())
	evals, err := r.evaluator.Evaluate(ctx, month)
	if err != nil {
		return 0, fmt.Errorf("evaluate %s: %w", month, err)
	}

	recorded := 0
	for _, ev := range evals {
		for _, status := range reached(ev.Status) {
			inserted, err := r.store.RecordAlert(ctx, storage.Alert{
				Category: ev.Category,
				Month:    month,
				Status:   string(status),
				Spent:    ev.Spent,
				Limit:    ev.Limit,
			})
			if err != nil {
				return recorded, fmt.Errorf("record alert %q: %w", ev.Category, err)
			}
			if inserted {
				recorded++
				r.logger.InfoContext(ctx, "Missed budget alert recorded",
					applog.NewFields().
						WithBudget(ev.Category, ev.Limit.Cents, string(status)).
						ToSlice()...)
			}
		}
	}
	if recorded > 0 {
		r.logger.InfoContext(ctx, "Reconcile completed",
			applog.FieldMonth, month.String(),
			"recorded", recorded)
	}
	return recorded, nil
}

// reached lists the alertable statuses a category has passed through on
// its way to s.
func reached(s budget.Status) []budget.Status {
	switch s {
	case budget.StatusAlert:
		return []budget.Status{budget.StatusWarning, budget.StatusAlert}
	case budget.StatusWarning:
		return []budget.Status{budget.StatusWarning}
	default:
		return nil
	}
}
