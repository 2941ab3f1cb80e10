package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"budgetwatch/internal/core"
	"budgetwatch/internal/ports"
)

var _ ports.Store = (*Store)(nil)

// Store keeps transactions and budgets in process memory.
type Store struct {
	mu      sync.RWMutex
	txs     []core.Transaction
	budgets []core.BudgetLimit
}

func New() *Store {
	return &Store{}
}

// NewFromFiles seeds budgets from <base>/seed_budgets.txt, one
// "Category: 300.00" per line. Blank lines and # comments are skipped and
// malformed lines are ignored.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_budgets.txt")) {
		name, amount, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		cents, err := core.ParseDecimalToCents(strings.TrimSpace(amount))
		if err != nil {
			continue
		}
		_, _ = s.CreateBudget(context.Background(), core.BudgetLimit{Category: name, Limit: core.Money{Cents: cents}})
	}
	return s
}

func (s *Store) AppendTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	t = t.Normalized()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, t)
	return t, nil
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction(nil), s.txs...), nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.txs {
		if t.ID == id {
			s.txs = append(s.txs[:i:i], s.txs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %q: %w", id, core.ErrNotFound)
}

func (s *Store) ListBudgets(_ context.Context) ([]core.BudgetLimit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.BudgetLimit(nil), s.budgets...), nil
}

func (s *Store) CreateBudget(_ context.Context, b core.BudgetLimit) (core.BudgetLimit, error) {
	b.Category = core.NormalizeLabel(b.Category)
	if err := b.Validate(); err != nil {
		return core.BudgetLimit{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(b.Category) >= 0 {
		return core.BudgetLimit{}, fmt.Errorf("%w: %q", core.ErrDuplicateBudget, b.Category)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	s.budgets = append(s.budgets, b)
	return b, nil
}

func (s *Store) UpdateBudget(_ context.Context, category string, limit core.Money) (core.BudgetLimit, error) {
	category = core.NormalizeLabel(category)
	if err := (core.BudgetLimit{Category: category, Limit: limit}).Validate(); err != nil {
		return core.BudgetLimit{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(category)
	if i < 0 {
		return core.BudgetLimit{}, fmt.Errorf("budget %q: %w", category, core.ErrNotFound)
	}
	s.budgets[i].Limit = limit
	return s.budgets[i], nil
}

func (s *Store) DeleteBudget(_ context.Context, category string) error {
	category = core.NormalizeLabel(category)
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(category)
	if i < 0 {
		return fmt.Errorf("budget %q: %w", category, core.ErrNotFound)
	}
	s.budgets = append(s.budgets[:i:i], s.budgets[i+1:]...)
	return nil
}

// indexOf must be called with mu held.
func (s *Store) indexOf(category string) int {
	for i, b := range s.budgets {
		if b.Category == category {
			return i
		}
	}
	return -1
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
