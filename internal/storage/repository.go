package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"budgetwatch/internal/core"
	"budgetwatch/internal/ports"
)

var _ ports.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db            *sql.DB
	schemaVersion uint
}

// Alert is a recorded budget escalation.
type Alert struct {
	ID            int64
	Category      string
	Month         core.YearMonth
	Status        string
	Spent         core.Money
	Limit         core.Money
	TransactionID string
	CreatedAt     time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, schemaVersion: version}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SchemaVersion returns the migration version applied at open time.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) AppendTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = t.Normalized()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, category, amount_cents, date, payment_method, notes, icon)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Category, t.Amount.Cents, nullableDate(t.Date), t.PaymentMethod, t.Notes, t.Icon)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"transaction_id", t.ID,
		"category", t.Category,
		"amount_cents", t.Amount.Cents,
		"date", t.Date.String())
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, amount_cents, date, payment_method, notes, icon
		 FROM transactions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		var (
			t    core.Transaction
			date sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Category, &t.Amount.Cents, &date, &t.PaymentMethod, &t.Notes, &t.Icon); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if date.Valid {
			// A malformed stored date degrades to "no date" rather than failing the listing.
			if d, err := core.ParseDate(date.String); err == nil {
				t.Date = d
			}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("transaction %q: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.BudgetLimit, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, category, limit_cents FROM budgets ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := make([]core.BudgetLimit, 0)
	for rows.Next() {
		var b core.BudgetLimit
		if err := rows.Scan(&b.ID, &b.Category, &b.Limit.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.BudgetLimit) (core.BudgetLimit, error) {
	b.Category = core.NormalizeLabel(b.Category)
	if err := b.Validate(); err != nil {
		return core.BudgetLimit{}, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, category, limit_cents) VALUES (?, ?, ?)`,
		b.ID, b.Category, b.Limit.Cents)
	if err != nil {
		if isUniqueViolation(err) {
			return core.BudgetLimit{}, fmt.Errorf("%w: %q", core.ErrDuplicateBudget, b.Category)
		}
		return core.BudgetLimit{}, fmt.Errorf("insert budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved to SQLite", "category", b.Category, "limit_cents", b.Limit.Cents)
	return b, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, category string, limit core.Money) (core.BudgetLimit, error) {
	b := core.BudgetLimit{Category: core.NormalizeLabel(category), Limit: limit}
	if err := b.Validate(); err != nil {
		return core.BudgetLimit{}, err
	}

	err := r.db.QueryRowContext(ctx,
		`UPDATE budgets SET limit_cents = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE category = ? RETURNING id`,
		b.Limit.Cents, b.Category).Scan(&b.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetLimit{}, fmt.Errorf("budget %q: %w", b.Category, core.ErrNotFound)
	}
	if err != nil {
		return core.BudgetLimit{}, fmt.Errorf("update budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, category string) error {
	category = core.NormalizeLabel(category)
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE category = ?`, category)
	if err != nil {
		return fmt.Errorf("delete budget %s: %w", category, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("budget %q: %w", category, core.ErrNotFound)
	}
	return nil
}

// RecordAlert stores an escalation. It returns false without error when the
// same (category, month, status) was already recorded.
func (r *SQLiteRepository) RecordAlert(ctx context.Context, a Alert) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budget_alerts (category, month, status, spent_cents, limit_cents, transaction_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (category, month, status) DO NOTHING`,
		core.NormalizeLabel(a.Category), a.Month.String(), a.Status, a.Spent.Cents, a.Limit.Cents, a.TransactionID)
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("alert rows affected: %w", err)
	}
	return n == 1, nil
}

// ListAlerts returns alerts recorded for a month, oldest first.
func (r *SQLiteRepository) ListAlerts(ctx context.Context, month core.YearMonth) ([]Alert, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, status, spent_cents, limit_cents, transaction_id, created_at
		 FROM budget_alerts WHERE month = ? ORDER BY id`, month.String())
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	out := make([]Alert, 0)
	for rows.Next() {
		a := Alert{Month: month}
		if err := rows.Scan(&a.ID, &a.Category, &a.Status, &a.Spent.Cents, &a.Limit.Cents, &a.TransactionID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullableDate(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return d.String()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
