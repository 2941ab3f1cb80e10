package google

import (
	"fmt"
	"strings"

	"budgetwatch/internal/core"
)

const (
	txColID = iota
	txColDate
	txColCategory
	txColAmount
	txColPayment
	txColNotes
	txColIcon
)

func transactionRow(t core.Transaction) []any {
	return []any{t.ID, t.Date.String(), t.Category, t.Amount.Euros(), t.PaymentMethod, t.Notes, t.Icon}
}

func budgetRow(b core.BudgetLimit) []any {
	return []any{b.ID, b.Category, b.Limit.Euros()}
}

// parseTransactions is best-effort: rows without an ID or category are
// skipped, unreadable dates become absent and unreadable amounts become zero.
func parseTransactions(values [][]any) []core.Transaction {
	out := make([]core.Transaction, 0, len(values))
	for i, row := range values {
		if i == 0 && isHeader(row) {
			continue
		}
		id := cell(row, txColID)
		category := core.NormalizeLabel(cell(row, txColCategory))
		if id == "" || category == "" {
			continue
		}
		date, err := core.ParseDate(cell(row, txColDate))
		if err != nil {
			date = core.Date{}
		}
		out = append(out, core.Transaction{
			ID:            id,
			Date:          date,
			Category:      category,
			Amount:        core.ParseAmountLenient(cell(row, txColAmount)),
			PaymentMethod: core.NormalizeLabel(cell(row, txColPayment)),
			Notes:         cell(row, txColNotes),
			Icon:          cell(row, txColIcon),
		})
	}
	return out
}

func parseBudgets(values [][]any) []core.BudgetLimit {
	out := make([]core.BudgetLimit, 0, len(values))
	for i, row := range values {
		if i == 0 && isHeader(row) {
			continue
		}
		category := core.NormalizeLabel(cell(row, 1))
		if category == "" {
			continue
		}
		out = append(out, core.BudgetLimit{
			ID:       cell(row, 0),
			Category: category,
			Limit:    core.ParseAmountLenient(cell(row, 2)),
		})
	}
	return out
}

// findRow returns the 1-based sheet row whose column col equals target after
// normalization, or -1.
func findRow(values [][]any, col int, target string) int {
	target = core.NormalizeLabel(target)
	if target == "" {
		return -1
	}
	for i, row := range values {
		if core.NormalizeLabel(cell(row, col)) == target {
			return i + 1
		}
	}
	return -1
}

var (
	transactionHeader = []any{"ID", "Date", "Category", "Amount", "Payment method", "Notes", "Icon"}
	budgetHeader      = []any{"ID", "Category", "Limit"}
)

// needsHeader reports whether the first row of a sheet is missing its header.
// Only an empty sheet qualifies; existing data is never shifted.
func needsHeader(values [][]any) bool {
	return len(values) == 0 || (len(values[0]) == 0 && len(values) == 1)
}

func isHeader(row []any) bool {
	return strings.EqualFold(cell(row, 0), "id")
}

func cell(row []any, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}
