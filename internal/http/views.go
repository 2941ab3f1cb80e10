package http

import (
	"encoding/json"

	"budgetwatch/internal/budget"
	"budgetwatch/internal/core"
	"budgetwatch/internal/filter"
	"budgetwatch/internal/services"
)

// JSON views. Amounts are exact decimal numbers in currency units.

type transactionView struct {
	ID            string      `json:"id"`
	Category      string      `json:"category"`
	Amount        json.Number `json:"amount"`
	Date          string      `json:"date,omitempty"`
	PaymentMethod string      `json:"paymentMethod,omitempty"`
	Notes         string      `json:"notes,omitempty"`
	Icon          string      `json:"icon,omitempty"`
}

type facetsView struct {
	Categories     []string `json:"categories"`
	PaymentMethods []string `json:"paymentMethods"`
}

type listView struct {
	Transactions  []transactionView `json:"transactions"`
	Matched       int               `json:"matched"`
	Total         int               `json:"total"`
	ActiveFilters int               `json:"activeFilters"`
	Facets        facetsView        `json:"facets"`
}

type alertView struct {
	Category       string      `json:"category"`
	PreviousStatus string      `json:"previousStatus"`
	Status         string      `json:"status"`
	Spent          json.Number `json:"spent"`
	Limit          json.Number `json:"limit"`
	Percentage     float64     `json:"percentage"`
}

type createdView struct {
	Transaction transactionView `json:"transaction"`
	Alerts      []alertView     `json:"alerts"`
}

type budgetView struct {
	ID       string      `json:"id,omitempty"`
	Category string      `json:"category"`
	Limit    json.Number `json:"limit"`
}

type evaluationView struct {
	Category   string      `json:"category"`
	Limit      json.Number `json:"limit"`
	Spent      json.Number `json:"spent"`
	Percentage float64     `json:"percentage"`
	Progress   float64     `json:"progress"`
	Status     string      `json:"status"`
	Over       json.Number `json:"over"`
}

type budgetsView struct {
	Month   string           `json:"month"`
	Budgets []evaluationView `json:"budgets"`
}

type spendView struct {
	Month      string                 `json:"month"`
	ByCategory map[string]json.Number `json:"byCategory"`
	Total      json.Number            `json:"total"`
}

type categoryAmountView struct {
	Name   string      `json:"name"`
	Amount json.Number `json:"amount"`
}

type overviewView struct {
	Year                 int                  `json:"year"`
	Month                int                  `json:"month"`
	MonthName            string               `json:"monthName"`
	TotalSpent           json.Number          `json:"totalSpent"`
	TopCategory          string               `json:"topCategory"`
	OverbudgetCategories []string             `json:"overbudgetCategories"`
	ByCategory           []categoryAmountView `json:"byCategory"`
}

func amount(m core.Money) json.Number {
	return json.Number(m.String())
}

func newTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:            t.ID,
		Category:      t.Category,
		Amount:        amount(t.Amount),
		Date:          t.Date.String(),
		PaymentMethod: t.PaymentMethod,
		Notes:         t.Notes,
		Icon:          t.Icon,
	}
}

func newTransactionViews(txs []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionView(t))
	}
	return out
}

func newFacetsView(f filter.FacetSet) facetsView {
	v := facetsView{Categories: f.Categories, PaymentMethods: f.PaymentMethods}
	if v.Categories == nil {
		v.Categories = []string{}
	}
	if v.PaymentMethods == nil {
		v.PaymentMethods = []string{}
	}
	return v
}

func newAlertViews(escalations []services.Escalation) []alertView {
	out := make([]alertView, 0, len(escalations))
	for _, e := range escalations {
		out = append(out, alertView{
			Category:       e.Category,
			PreviousStatus: string(e.Previous),
			Status:         string(e.Status),
			Spent:          amount(e.Spent),
			Limit:          amount(e.Limit),
			Percentage:     e.Percentage,
		})
	}
	return out
}

func newBudgetView(b core.BudgetLimit) budgetView {
	return budgetView{ID: b.ID, Category: b.Category, Limit: amount(b.Limit)}
}

func newEvaluationViews(evals []budget.Evaluation) []evaluationView {
	out := make([]evaluationView, 0, len(evals))
	for _, ev := range evals {
		out = append(out, evaluationView{
			Category:   ev.Category,
			Limit:      amount(ev.Limit),
			Spent:      amount(ev.Spent),
			Percentage: ev.Percentage,
			Progress:   ev.Progress,
			Status:     string(ev.Status),
			Over:       amount(ev.Over),
		})
	}
	return out
}

func newSpendView(s services.MonthSpend) spendView {
	by := make(map[string]json.Number, len(s.ByCategory))
	for category, m := range s.ByCategory {
		by[category] = amount(m)
	}
	return spendView{Month: s.Month.String(), ByCategory: by, Total: amount(s.Total)}
}

func newOverviewView(o core.MonthOverview) overviewView {
	v := overviewView{
		Year:                 o.Year,
		Month:                o.Month,
		MonthName:            o.MonthName(),
		TotalSpent:           amount(o.Total),
		TopCategory:          o.TopCategory,
		OverbudgetCategories: o.OverBudget,
		ByCategory:           make([]categoryAmountView, 0, len(o.ByCategory)),
	}
	if v.OverbudgetCategories == nil {
		v.OverbudgetCategories = []string{}
	}
	for _, c := range o.ByCategory {
		v.ByCategory = append(v.ByCategory, categoryAmountView{Name: c.Name, Amount: amount(c.Amount)})
	}
	return v
}

func newOverviewViews(list []core.MonthOverview) []overviewView {
	out := make([]overviewView, 0, len(list))
	for _, o := range list {
		out = append(out, newOverviewView(o))
	}
	return out
}
