// Package spend groups transactions by category for one calendar month.
package spend

import (
	"sort"

	"budgetwatch/internal/core"
)

// Aggregate sums transaction amounts per normalized category for the
// transactions dated inside month. Records without a date or a category are
// skipped; categories with no matching transaction are absent from the result.
func Aggregate(txs []core.Transaction, month core.YearMonth) map[string]core.Money {
	out := make(map[string]core.Money)
	for _, t := range txs {
		category := core.NormalizeLabel(t.Category)
		if category == "" || t.Date.IsEmpty() {
			continue
		}
		if !month.Contains(t.Date) {
			continue
		}
		amount := t.Amount
		if amount.Cents < 0 {
			amount = core.Money{}
		}
		out[category] = out[category].Add(amount)
	}
	return out
}

// Total returns the sum of all category amounts.
func Total(byCategory map[string]core.Money) core.Money {
	var total core.Money
	for _, v := range byCategory {
		total = total.Add(v)
	}
	return total
}

// Ranked returns the categories ordered by amount (highest first), ties by name.
func Ranked(byCategory map[string]core.Money) []core.CategoryAmount {
	list := make([]core.CategoryAmount, 0, len(byCategory))
	for name, amount := range byCategory {
		list = append(list, core.CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Amount.Cents != list[j].Amount.Cents {
			return list[i].Amount.Cents > list[j].Amount.Cents
		}
		return list[i].Name < list[j].Name
	})
	return list
}

// Overview builds the month summary from already aggregated spend.
// overBudget lists the categories whose budget is exceeded, in budget order.
func Overview(month core.YearMonth, byCategory map[string]core.Money, overBudget []string) core.MonthOverview {
	ranked := Ranked(byCategory)
	ov := core.MonthOverview{
		Year:       month.Year,
		Month:      int(month.Month),
		Total:      Total(byCategory),
		ByCategory: ranked,
		OverBudget: append([]string{}, overBudget...),
	}
	if len(ranked) > 0 {
		ov.TopCategory = ranked[0].Name
	}
	return ov
}
