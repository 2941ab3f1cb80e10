// Package filter evaluates conjunctive filter criteria over transactions and
// derives the facet values used to populate filter choices.
package filter

import (
	"errors"
	"sort"
	"strings"

	"budgetwatch/internal/core"
)

// ErrInvalidRange is returned when DateFrom is after DateTo.
var ErrInvalidRange = errors.New("date range start is after its end")

// Dimension names a single filter criterion.
type Dimension string

const (
	DimCategory      Dimension = "category"
	DimPaymentMethod Dimension = "paymentMethod"
	DimDateFrom      Dimension = "dateFrom"
	DimDateTo        Dimension = "dateTo"
	DimSearch        Dimension = "searchText"
)

// Criteria holds the five independent filter dimensions. The zero value of
// each field means unset, and an unset dimension matches everything.
type Criteria struct {
	Category      string
	PaymentMethod string
	DateFrom      core.Date
	DateTo        core.Date
	SearchText    string
}

// FacetSet lists the distinct selectable values of a transaction collection.
type FacetSet struct {
	Categories     []string
	PaymentMethods []string
}

// Result is a filtered view with the counts shown next to it.
type Result struct {
	Items   []core.Transaction
	Matched int
	Total   int
}

func (c Criteria) Validate() error {
	if !c.DateFrom.IsEmpty() && !c.DateTo.IsEmpty() && c.DateFrom.CompareDay(c.DateTo) > 0 {
		return ErrInvalidRange
	}
	return nil
}

// IsEmpty reports whether no dimension is set.
func (c Criteria) IsEmpty() bool {
	return c.ActiveCount() == 0
}

// ActiveCount returns the number of set dimensions.
func (c Criteria) ActiveCount() int {
	n := 0
	if core.NormalizeLabel(c.Category) != "" {
		n++
	}
	if core.NormalizeLabel(c.PaymentMethod) != "" {
		n++
	}
	if !c.DateFrom.IsEmpty() {
		n++
	}
	if !c.DateTo.IsEmpty() {
		n++
	}
	if c.SearchText != "" {
		n++
	}
	return n
}

// Without returns a copy of c with one dimension cleared.
func (c Criteria) Without(d Dimension) Criteria {
	switch d {
	case DimCategory:
		c.Category = ""
	case DimPaymentMethod:
		c.PaymentMethod = ""
	case DimDateFrom:
		c.DateFrom = core.Date{}
	case DimDateTo:
		c.DateTo = core.Date{}
	case DimSearch:
		c.SearchText = ""
	}
	return c
}

// Matches reports whether t satisfies every set dimension.
func (c Criteria) Matches(t core.Transaction) bool {
	if want := core.NormalizeLabel(c.Category); want != "" && core.NormalizeLabel(t.Category) != want {
		return false
	}
	if want := core.NormalizeLabel(c.PaymentMethod); want != "" && core.NormalizeLabel(t.PaymentMethod) != want {
		return false
	}
	// A transaction without a date cannot be placed inside a bound.
	if !c.DateFrom.IsEmpty() && (t.Date.IsEmpty() || t.Date.CompareDay(c.DateFrom) < 0) {
		return false
	}
	if !c.DateTo.IsEmpty() && (t.Date.IsEmpty() || t.Date.CompareDay(c.DateTo) > 0) {
		return false
	}
	if c.SearchText != "" && !matchesSearch(t, strings.ToLower(c.SearchText)) {
		return false
	}
	return true
}

func matchesSearch(t core.Transaction, needle string) bool {
	for _, field := range []string{t.Category, t.Notes, t.PaymentMethod} {
		if field != "" && strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Apply returns the transactions matching c, preserving their relative order.
// The result is a fresh slice and never nil.
func Apply(txs []core.Transaction, c Criteria) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if c.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Run filters txs and reports matched and total counts.
func Run(txs []core.Transaction, c Criteria) Result {
	items := Apply(txs, c)
	return Result{Items: items, Matched: len(items), Total: len(txs)}
}

// Facets returns the sorted distinct non-blank categories and payment methods
// across the whole collection. It does not depend on any criteria.
func Facets(txs []core.Transaction) FacetSet {
	cats := make(map[string]struct{})
	methods := make(map[string]struct{})
	for _, t := range txs {
		if v := core.NormalizeLabel(t.Category); v != "" {
			cats[v] = struct{}{}
		}
		if v := core.NormalizeLabel(t.PaymentMethod); v != "" {
			methods[v] = struct{}{}
		}
	}
	return FacetSet{Categories: sortedKeys(cats), PaymentMethods: sortedKeys(methods)}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
