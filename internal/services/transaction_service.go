package services

import (
	"context"
	"fmt"
	"time"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/budget"
	"budgetwatch/internal/cache"
	"budgetwatch/internal/core"
	"budgetwatch/internal/filter"
	applog "budgetwatch/internal/log"
	"budgetwatch/internal/ports"
	"budgetwatch/internal/spend"
)

const snapshotKey = "transactions"

// AlertPublisher delivers budget escalations. *amqp.Client implements it.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}

// Escalation is a budget evaluation whose status became more severe
// because of a new transaction.
type Escalation struct {
	budget.Evaluation
	Previous budget.Status
}

// SearchResult is a filtered listing together with the facets of the whole
// collection.
type SearchResult struct {
	filter.Result
	Facets filter.FacetSet
}

// TransactionService orchestrates transaction writes, cached reads and
// escalation alerts.
type TransactionService struct {
	store     ports.TransactionStore
	budgets   ports.BudgetStore
	publisher AlertPublisher
	snapshots *cache.LRUCache[[]core.Transaction]
	recorder  Recorder
	logger    *applog.Logger
}

var _ ports.TransactionStore = (*TransactionService)(nil)

// Option configures optional collaborators.
type Option func(*TransactionService)

// WithPublisher enables escalation alerts.
func WithPublisher(p AlertPublisher) Option {
	return func(s *TransactionService) { s.publisher = p }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *TransactionService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithCacheTTL caches the transaction listing for ttl. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *TransactionService) {
		if ttl > 0 {
			s.snapshots = cache.NewLRUCache[[]core.Transaction](1, ttl)
		} else {
			s.snapshots = nil
		}
	}
}

func NewTransactionService(store ports.TransactionStore, budgets ports.BudgetStore, logger *applog.Logger, opts ...Option) *TransactionService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	s := &TransactionService{
		store:    store,
		budgets:  budgets,
		recorder: nopRecorder{},
		logger:   logger.WithComponent(applog.ComponentExpense),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshots exposes the listing cache so it can be registered for cleanup.
// It is nil when caching is disabled.
func (s *TransactionService) Snapshots() *cache.LRUCache[[]core.Transaction] {
	return s.snapshots
}

// ListTransactions returns every transaction, served from cache when fresh.
// The returned slice is the caller's to modify.
func (s *TransactionService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if s.snapshots != nil {
		if txs, ok := s.snapshots.Get(snapshotKey); ok {
			return append([]core.Transaction(nil), txs...), nil
		}
	}
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if s.snapshots != nil {
		s.snapshots.Set(snapshotKey, append([]core.Transaction(nil), txs...))
	}
	return txs, nil
}

// Search filters the collection and computes facets over all of it.
func (s *TransactionService) Search(ctx context.Context, c filter.Criteria) (SearchResult, error) {
	if err := c.Validate(); err != nil {
		return SearchResult{}, err
	}
	txs, err := s.ListTransactions(ctx)
	if err != nil {
		return SearchResult{}, err
	}
	res := filter.Run(txs, c)
	s.recorder.TransactionsFiltered(ctx, res.Matched, res.Total)
	s.logger.DebugContext(ctx, "Transactions filtered",
		applog.FieldOperation, applog.OpFilter,
		applog.FieldMatched, res.Matched,
		applog.FieldTotal, res.Total)
	return SearchResult{Result: res, Facets: filter.Facets(txs)}, nil
}

// Facets returns the distinct categories and payment methods on record.
func (s *TransactionService) Facets(ctx context.Context) (filter.FacetSet, error) {
	txs, err := s.ListTransactions(ctx)
	if err != nil {
		return filter.FacetSet{}, err
	}
	return filter.Facets(txs), nil
}

// AppendTransaction implements ports.TransactionWriter; see Create.
func (s *TransactionService) AppendTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	saved, _, err := s.Create(ctx, t)
	return saved, err
}

// Create stores a transaction and returns the budget statuses it
// escalated. Escalations are published when a publisher is configured; a
// publish or evaluation failure is logged and never fails the write.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, []Escalation, error) {
	t = t.Normalized()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, nil, err
	}

	before, err := s.ListTransactions(ctx)
	if err != nil {
		return core.Transaction{}, nil, err
	}

	saved, err := s.store.AppendTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, nil, fmt.Errorf("save transaction: %w", err)
	}
	s.invalidate()
	s.recorder.TransactionCreated(ctx, saved.Category)
	s.logger.InfoContext(ctx, "Transaction created",
		applog.NewFields().
			WithOperation(applog.OpCreate).
			WithTransaction(saved.ID, saved.Category, saved.Amount.Cents).
			ToSlice()...)

	escalated, err := s.escalations(ctx, before, saved)
	if err != nil {
		s.logger.WarnContext(ctx, "Budget evaluation skipped",
			applog.FieldTransactionID, saved.ID,
			applog.FieldError, err.Error())
		return saved, nil, nil
	}
	for _, ev := range escalated {
		s.publish(ctx, saved, ev)
	}
	return saved, escalated, nil
}

// escalations compares the category's status before and after adding t in
// t's month.
func (s *TransactionService) escalations(ctx context.Context, before []core.Transaction, t core.Transaction) ([]Escalation, error) {
	if s.budgets == nil {
		return nil, nil
	}
	limits, err := s.budgets.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	var limit *core.BudgetLimit
	for i := range limits {
		if core.NormalizeLabel(limits[i].Category) == t.Category {
			limit = &limits[i]
			break
		}
	}
	if limit == nil {
		return nil, nil
	}

	month := core.CurrentYearMonth(t.Date.Time)
	spentBefore := spend.Aggregate(before, month)[t.Category]
	prev, err := budget.Classify(spentBefore, limit.Limit)
	if err != nil {
		return nil, err
	}
	next, err := budget.Classify(spentBefore.Add(t.Amount), limit.Limit)
	if err != nil {
		return nil, err
	}
	next.Category = t.Category
	s.logger.DebugContext(ctx, "Budget evaluated",
		applog.NewFields().
			WithOperation(applog.OpEvaluate).
			WithBudget(t.Category, limit.Limit.Cents, string(next.Status)).
			ToSlice()...)
	if !budget.Escalated(prev.Status, next.Status) {
		return nil, nil
	}
	return []Escalation{{Evaluation: next, Previous: prev.Status}}, nil
}

func (s *TransactionService) publish(ctx context.Context, t core.Transaction, ev Escalation) {
	if s.publisher == nil {
		return
	}
	month := core.CurrentYearMonth(t.Date.Time)
	msg := amqp.NewBudgetAlertMessage(t.ID, ev.Category, month,
		string(ev.Previous), string(ev.Status), ev.Spent, ev.Limit,
		fmt.Sprintf("%.2f", ev.Percentage))
	err := s.publisher.PublishBudgetAlert(ctx, msg)
	s.recorder.AlertPublished(ctx, ev.Status, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish budget alert",
			applog.NewFields().
				WithOperation(applog.OpPublish).
				WithBudget(ev.Category, ev.Limit.Cents, string(ev.Status)).
				WithError(err).
				ToSlice()...)
	}
}

// DeleteTransaction removes a transaction by ID.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "Transaction deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldTransactionID, id)
	return nil
}

func (s *TransactionService) invalidate() {
	if s.snapshots != nil {
		s.snapshots.Purge()
	}
}
