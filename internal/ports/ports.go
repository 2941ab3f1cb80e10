// Package ports declares the storage ports the services depend on. The
// memory, SQLite and Google Sheets backends all implement them.
package ports

import (
	"context"

	"budgetwatch/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionWriter persists a validated transaction and returns it with
	// its assigned ID.
	TransactionWriter interface {
		AppendTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	}

	// TransactionLister returns every stored transaction in insertion order.
	TransactionLister interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	// TransactionDeleter removes a transaction by ID. Unknown IDs yield core.ErrNotFound.
	TransactionDeleter interface {
		DeleteTransaction(ctx context.Context, id string) error
	}

	// BudgetStore manages monthly limits, keyed by normalized category.
	// CreateBudget fails with core.ErrDuplicateBudget when the category already
	// has a limit; UpdateBudget and DeleteBudget fail with core.ErrNotFound when
	// it has none.
	BudgetStore interface {
		ListBudgets(ctx context.Context) ([]core.BudgetLimit, error)
		CreateBudget(ctx context.Context, b core.BudgetLimit) (core.BudgetLimit, error)
		UpdateBudget(ctx context.Context, category string, limit core.Money) (core.BudgetLimit, error)
		DeleteBudget(ctx context.Context, category string) error
	}

	// TransactionStore groups the transaction ports.
	TransactionStore interface {
		TransactionWriter
		TransactionLister
		TransactionDeleter
	}

	// Store is everything a data backend provides.
	Store interface {
		TransactionStore
		BudgetStore
	}
)
