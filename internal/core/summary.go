package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year        int
	Month       int // 1-12
	Total       Money
	ByCategory  []CategoryAmount
	TopCategory string
	OverBudget  []string
}

// MonthName returns the English month name, e.g. "May".
func (o MonthOverview) MonthName() string {
	if o.Month < 1 || o.Month > 12 {
		return ""
	}
	return time.Month(o.Month).String()
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// CurrentYearMonth returns the calendar month containing now.
func CurrentYearMonth(now time.Time) YearMonth {
	return YearMonth{Year: now.Year(), Month: now.Month()}
}

// NewYearMonth validates and builds a YearMonth.
func NewYearMonth(year, month int) (YearMonth, error) {
	if month < 1 || month > 12 {
		return YearMonth{}, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	if year < 1 || year > 9999 {
		return YearMonth{}, fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}
	return YearMonth{Year: year, Month: time.Month(month)}, nil
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	y, m, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidYear, y)
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidMonth, m)
	}
	return NewYearMonth(year, month)
}

// Contains reports whether d falls inside the month. Absent dates never do.
func (ym YearMonth) Contains(d Date) bool {
	if d.IsZero() {
		return false
	}
	y, m, _ := d.Date()
	return y == ym.Year && m == ym.Month
}

// Prev returns the preceding calendar month.
func (ym YearMonth) Prev() YearMonth {
	if ym.Month == time.January {
		return YearMonth{Year: ym.Year - 1, Month: time.December}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month - 1}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}
