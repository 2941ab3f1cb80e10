// Package budget classifies category spend against monthly budget limits.
package budget

import (
	"fmt"

	"github.com/shopspring/decimal"

	"budgetwatch/internal/core"
	"budgetwatch/internal/spend"
)

// Status is the classification of a category's spend relative to its limit.
type Status string

const (
	StatusNormal  Status = "normal"
	StatusWarning Status = "warning"
	StatusAlert   Status = "alert"
)

// Thresholds in percent of the limit. Both are inclusive lower bounds.
var (
	warningPercent = decimal.NewFromInt(80)
	alertPercent   = decimal.NewFromInt(100)
	hundred        = decimal.NewFromInt(100)
)

// ErrInvalidBudget is returned for a non-positive limit.
var ErrInvalidBudget = core.ErrInvalidBudget

// Evaluation is the outcome of classifying one category.
type Evaluation struct {
	Category string
	Spent    core.Money
	Limit    core.Money
	Status   Status
	// Percentage is the raw spend/limit ratio in percent, used for classification.
	Percentage float64
	// Progress is Percentage clamped to [0,100] for progress bars.
	Progress float64
	// Over is how far spend exceeds the limit; zero unless Status is alert.
	Over core.Money
}

func (s Status) rank() int {
	switch s {
	case StatusAlert:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Escalated reports whether after is a more severe status than before.
func Escalated(before, after Status) bool {
	return after.rank() > before.rank()
}

// Classify computes the status of spend against limit.
func Classify(spent, limit core.Money) (Evaluation, error) {
	if limit.Cents <= 0 {
		return Evaluation{}, fmt.Errorf("%w: limit must be positive, got %s", ErrInvalidBudget, limit)
	}

	pct := spent.Decimal().Div(limit.Decimal()).Mul(hundred)

	ev := Evaluation{
		Spent:      spent,
		Limit:      limit,
		Status:     StatusNormal,
		Percentage: pct.InexactFloat64(),
	}
	switch {
	case pct.GreaterThanOrEqual(alertPercent):
		ev.Status = StatusAlert
		if over := spent.Sub(limit); over.Cents > 0 {
			ev.Over = over
		}
	case pct.GreaterThanOrEqual(warningPercent):
		ev.Status = StatusWarning
	}

	ev.Progress = ev.Percentage
	if ev.Progress > 100 {
		ev.Progress = 100
	}
	if ev.Progress < 0 {
		ev.Progress = 0
	}
	return ev, nil
}

// Evaluate produces one evaluation per budget limit, in input order. Spend
// for categories without a limit is ignored. Two limits for the same
// category are rejected with core.ErrDuplicateBudget.
func Evaluate(limits []core.BudgetLimit, spent map[string]core.Money) ([]Evaluation, error) {
	out := make([]Evaluation, 0, len(limits))
	seen := make(map[string]struct{}, len(limits))
	for _, l := range limits {
		category := core.NormalizeLabel(l.Category)
		if _, dup := seen[category]; dup {
			return nil, fmt.Errorf("%w: %q", core.ErrDuplicateBudget, category)
		}
		seen[category] = struct{}{}

		if err := l.Validate(); err != nil {
			return nil, err
		}
		ev, err := Classify(spent[category], l.Limit)
		if err != nil {
			return nil, fmt.Errorf("classify %q: %w", category, err)
		}
		ev.Category = category
		out = append(out, ev)
	}
	return out, nil
}

// EvaluateMonth aggregates txs for month and evaluates every limit.
func EvaluateMonth(txs []core.Transaction, limits []core.BudgetLimit, month core.YearMonth) ([]Evaluation, error) {
	return Evaluate(limits, spend.Aggregate(txs, month))
}

// OverBudget returns the categories in alert, in evaluation order.
func OverBudget(evals []Evaluation) []string {
	var out []string
	for _, ev := range evals {
		if ev.Status == StatusAlert {
			out = append(out, ev.Category)
		}
	}
	return out
}

// CountByStatus tallies evaluations per status.
func CountByStatus(evals []Evaluation) map[Status]int {
	counts := map[Status]int{StatusNormal: 0, StatusWarning: 0, StatusAlert: 0}
	for _, ev := range evals {
		counts[ev.Status]++
	}
	return counts
}
