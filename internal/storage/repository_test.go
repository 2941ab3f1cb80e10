package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"budgetwatch/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsApplied(t *testing.T) {
	repo := newTestRepo(t)
	if repo.SchemaVersion() != 3 {
		t.Fatalf("SchemaVersion() = %d, want 3", repo.SchemaVersion())
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "again.db")
	first, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	first.Close()

	second, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	second.Close()
}

func TestTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	inputs := []core.Transaction{
		{Category: " Food", Amount: core.Money{Cents: 1200}, Date: core.NewDate(2024, 5, 1), PaymentMethod: "Cash", Notes: "Groceries", Icon: "cart"},
		{Category: "Transport", Amount: core.Money{Cents: 300}, Date: core.NewDate(2024, 5, 2)},
	}
	var saved []core.Transaction
	for _, in := range inputs {
		tx, err := repo.AppendTransaction(ctx, in)
		if err != nil {
			t.Fatalf("AppendTransaction() error = %v", err)
		}
		saved = append(saved, tx)
	}

	got, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != saved[0].ID || got[0].Category != "Food" || got[0].Notes != "Groceries" || got[0].Icon != "cart" {
		t.Fatalf("unexpected first row: %+v", got[0])
	}
	if got[0].Date.CompareDay(core.NewDate(2024, 5, 1)) != 0 {
		t.Fatalf("date not preserved: %v", got[0].Date)
	}

	if err := repo.DeleteTransaction(ctx, saved[0].ID); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	if err := repo.DeleteTransaction(ctx, saved[0].ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.AppendTransaction(context.Background(), core.Transaction{Category: "  ", Amount: core.Money{Cents: 1}, Date: core.NewDate(2024, 1, 1)})
	if !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
}

func TestBudgets(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.CreateBudget(ctx, core.BudgetLimit{Category: "Food", Limit: core.Money{Cents: 10000}}); err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}
	if _, err := repo.CreateBudget(ctx, core.BudgetLimit{Category: "Food ", Limit: core.Money{Cents: 5000}}); !errors.Is(err, core.ErrDuplicateBudget) {
		t.Fatalf("expected ErrDuplicateBudget, got %v", err)
	}
	if _, err := repo.CreateBudget(ctx, core.BudgetLimit{Category: "Rent", Limit: core.Money{Cents: 0}}); !errors.Is(err, core.ErrInvalidBudget) {
		t.Fatalf("expected ErrInvalidBudget, got %v", err)
	}

	b, err := repo.UpdateBudget(ctx, "Food", core.Money{Cents: 20000})
	if err != nil || b.Limit.Cents != 20000 || b.ID == "" {
		t.Fatalf("UpdateBudget() = %+v, %v", b, err)
	}
	if _, err := repo.UpdateBudget(ctx, "Nope", core.Money{Cents: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := repo.ListBudgets(ctx)
	if err != nil || len(list) != 1 || list[0].Limit.Cents != 20000 {
		t.Fatalf("ListBudgets() = %+v, %v", list, err)
	}

	if err := repo.DeleteBudget(ctx, "Food"); err != nil {
		t.Fatalf("DeleteBudget() error = %v", err)
	}
	if err := repo.DeleteBudget(ctx, "Food"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordAlertDeduplicates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	month := core.YearMonth{Year: 2024, Month: 5}

	alert := Alert{Category: "Food", Month: month, Status: "warning", Spent: core.Money{Cents: 8000}, Limit: core.Money{Cents: 10000}, TransactionID: "t1"}
	inserted, err := repo.RecordAlert(ctx, alert)
	if err != nil || !inserted {
		t.Fatalf("first RecordAlert() = %v, %v", inserted, err)
	}
	inserted, err = repo.RecordAlert(ctx, alert)
	if err != nil || inserted {
		t.Fatalf("duplicate RecordAlert() = %v, %v", inserted, err)
	}

	alert.Status = "alert"
	if inserted, _ := repo.RecordAlert(ctx, alert); !inserted {
		t.Fatalf("a new status for the same month should be recorded")
	}

	alerts, err := repo.ListAlerts(ctx, month)
	if err != nil || len(alerts) != 2 {
		t.Fatalf("ListAlerts() = %+v, %v", alerts, err)
	}
	if alerts[0].Status != "warning" || alerts[1].Status != "alert" {
		t.Fatalf("unexpected order: %+v", alerts)
	}
	if other, _ := repo.ListAlerts(ctx, month.Prev()); len(other) != 0 {
		t.Fatalf("alerts leaked across months: %+v", other)
	}
}
