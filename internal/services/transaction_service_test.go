package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/budget"
	"budgetwatch/internal/core"
	"budgetwatch/internal/filter"
	"budgetwatch/internal/ports/memory"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.BudgetAlertMessage
	err  error
}

func (p *fakePublisher) PublishBudgetAlert(_ context.Context, msg *amqp.BudgetAlertMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

type fakeRecorder struct {
	created   int
	filtered  int
	evaluated map[budget.Status]int
	published []error
}

func (r *fakeRecorder) TransactionCreated(context.Context, string)     { r.created++ }
func (r *fakeRecorder) TransactionsFiltered(context.Context, int, int) { r.filtered++ }
func (r *fakeRecorder) BudgetsEvaluated(_ context.Context, c map[budget.Status]int) {
	r.evaluated = c
}
func (r *fakeRecorder) AlertPublished(_ context.Context, _ budget.Status, err error) {
	r.published = append(r.published, err)
}

// countingStore counts listing calls to observe caching.
type countingStore struct {
	*memory.Store
	lists int
}

func (c *countingStore) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	c.lists++
	return c.Store.ListTransactions(ctx)
}

func food(cents int64, day int) core.Transaction {
	return core.Transaction{Category: "Food", Amount: core.Money{Cents: cents}, Date: core.NewDate(2024, 5, day), PaymentMethod: "Card"}
}

func TestCreatePublishesOnlyEscalations(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if _, err := store.CreateBudget(ctx, core.BudgetLimit{Category: "Food", Limit: core.Money{Cents: 10000}}); err != nil {
		t.Fatal(err)
	}
	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	svc := NewTransactionService(store, store, nil, WithPublisher(pub), WithRecorder(rec), WithCacheTTL(time.Minute))

	steps := []struct {
		tx       core.Transaction
		wantEsc  bool
		wantPrev budget.Status
		wantNext budget.Status
	}{
		{food(5000, 1), false, "", ""},
		{food(2900, 2), false, "", ""},
		{food(100, 3), true, budget.StatusNormal, budget.StatusWarning},
		{food(1000, 4), false, "", ""},
		{food(1000, 5), true, budget.StatusWarning, budget.StatusAlert},
		{food(1000, 6), false, "", ""},
	}
	for i, step := range steps {
		saved, esc, err := svc.Create(ctx, step.tx)
		if err != nil {
			t.Fatalf("step %d: Create() error = %v", i, err)
		}
		if saved.ID == "" {
			t.Fatalf("step %d: missing ID", i)
		}
		if got := len(esc) == 1; got != step.wantEsc {
			t.Fatalf("step %d: escalations = %+v", i, esc)
		}
		if step.wantEsc && (esc[0].Previous != step.wantPrev || esc[0].Status != step.wantNext) {
			t.Fatalf("step %d: escalation %s -> %s", i, esc[0].Previous, esc[0].Status)
		}
	}

	if len(pub.msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.msgs))
	}
	last := pub.msgs[1]
	if last.Status != "alert" || last.PreviousStatus != "warning" || last.Month != "2024-05" || last.SpentCents != 10000 {
		t.Fatalf("unexpected message: %+v", last)
	}
	if rec.created != len(steps) || len(rec.published) != 2 {
		t.Fatalf("recorder = %+v", rec)
	}
}

func TestCreateEvaluatesWithinTransactionMonth(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.CreateBudget(ctx, core.BudgetLimit{Category: "Food", Limit: core.Money{Cents: 1000}})
	svc := NewTransactionService(store, store, nil)

	if _, _, err := svc.Create(ctx, core.Transaction{Category: "Food", Amount: core.Money{Cents: 900}, Date: core.NewDate(2024, 4, 30)}); err != nil {
		t.Fatal(err)
	}
	_, esc, err := svc.Create(ctx, core.Transaction{Category: "Food", Amount: core.Money{Cents: 500}, Date: core.NewDate(2024, 5, 1)})
	if err != nil {
		t.Fatal(err)
	}
	if len(esc) != 0 {
		t.Fatalf("April spend must not count toward May: %+v", esc)
	}
}

func TestCreatePublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.CreateBudget(ctx, core.BudgetLimit{Category: "Food", Limit: core.Money{Cents: 100}})
	rec := &fakeRecorder{}
	svc := NewTransactionService(store, store, nil, WithPublisher(&fakePublisher{err: errors.New("broker down")}), WithRecorder(rec))

	saved, esc, err := svc.Create(ctx, food(500, 1))
	if err != nil || saved.ID == "" || len(esc) != 1 {
		t.Fatalf("Create() = %+v, %+v, %v", saved, esc, err)
	}
	if len(rec.published) != 1 || rec.published[0] == nil {
		t.Fatalf("publish failure not recorded: %+v", rec.published)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	svc := NewTransactionService(memory.New(), nil, nil)
	tests := []struct {
		name string
		tx   core.Transaction
		want error
	}{
		{"no date", core.Transaction{Category: "Food", Amount: core.Money{Cents: 1}}, core.ErrInvalidDate},
		{"blank category", core.Transaction{Category: " ", Amount: core.Money{Cents: 1}, Date: core.NewDate(2024, 1, 1)}, core.ErrEmptyCategory},
		{"zero amount", core.Transaction{Category: "Food", Date: core.NewDate(2024, 1, 1)}, core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.Create(context.Background(), tt.tx); !errors.Is(err, tt.want) {
				t.Fatalf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestListTransactionsCachesUntilWrite(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: memory.New()}
	svc := NewTransactionService(store, nil, nil, WithCacheTTL(time.Minute))

	saved, _, err := svc.Create(ctx, food(100, 1))
	if err != nil {
		t.Fatal(err)
	}
	store.lists = 0

	for i := 0; i < 3; i++ {
		if txs, _ := svc.ListTransactions(ctx); len(txs) != 1 {
			t.Fatalf("len = %d", len(txs))
		}
	}
	if store.lists != 1 {
		t.Fatalf("store listed %d times, want 1", store.lists)
	}

	if err := svc.DeleteTransaction(ctx, saved.ID); err != nil {
		t.Fatal(err)
	}
	if txs, _ := svc.ListTransactions(ctx); len(txs) != 0 {
		t.Fatalf("cache not invalidated after delete: %+v", txs)
	}

	// Callers may mutate what they get back.
	svc.Create(ctx, food(100, 2))
	txs, _ := svc.ListTransactions(ctx)
	txs[0].Category = "mutated"
	again, _ := svc.ListTransactions(ctx)
	if again[0].Category != "Food" {
		t.Fatalf("cached snapshot was mutated")
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	svc := NewTransactionService(memory.New(), nil, nil, WithRecorder(rec))
	svc.Create(ctx, food(100, 1))
	svc.Create(ctx, core.Transaction{Category: "Transport", Amount: core.Money{Cents: 300}, Date: core.NewDate(2024, 5, 2), PaymentMethod: "Cash"})

	res, err := svc.Search(ctx, filter.Criteria{PaymentMethod: "Cash"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Matched != 1 || res.Total != 2 || len(res.Facets.Categories) != 2 {
		t.Fatalf("Search() = %+v", res)
	}
	if rec.filtered != 1 {
		t.Fatalf("filter not recorded")
	}

	_, err = svc.Search(ctx, filter.Criteria{DateFrom: core.NewDate(2024, 6, 1), DateTo: core.NewDate(2024, 5, 1)})
	if !errors.Is(err, filter.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestDeleteUnknown(t *testing.T) {
	svc := NewTransactionService(memory.New(), nil, nil)
	if err := svc.DeleteTransaction(context.Background(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
