package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxNotesLength = 200

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single recorded expense. Optional text fields are
	// empty when absent and a zero Date means the record carries no date.
	Transaction struct {
		ID            string
		Category      string
		Amount        Money
		Date          Date
		PaymentMethod string
		Notes         string
		Icon          string
	}

	// BudgetLimit is a monthly spending ceiling for one category.
	BudgetLimit struct {
		ID       string
		Category string
		Limit    Money
	}
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidYear     = errors.New("invalid year")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidBudget   = errors.New("invalid budget")
	ErrDuplicateBudget = errors.New("duplicate budget category")
	ErrNotFound        = errors.New("not found")
)

// NormalizeLabel is the single normalization rule for free-text labels
// (categories and payment methods): surrounding whitespace is dropped and
// case is preserved.
func NormalizeLabel(s string) string {
	return strings.TrimSpace(s)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time of day, keeping the calendar date as seen in t's location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts "2006-01-02" and full RFC 3339 timestamps; the time of
// day is discarded.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// IsEmpty returns true if the date is absent
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// CompareDay compares two dates at day granularity and returns -1, 0 or +1.
func (d Date) CompareDay(o Date) int {
	return DateOf(d.Time).Time.Compare(DateOf(o.Time).Time)
}

// String formats the date as YYYY-MM-DD, or "" when absent.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if NormalizeLabel(t.Category) == "" {
		return ErrEmptyCategory
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(t.Notes) > maxNotesLength {
		return errors.New("notes too long (max 200 characters)")
	}
	return nil
}

// Normalized returns a copy with labels trimmed.
func (t Transaction) Normalized() Transaction {
	t.Category = NormalizeLabel(t.Category)
	t.PaymentMethod = NormalizeLabel(t.PaymentMethod)
	t.Notes = strings.TrimSpace(t.Notes)
	return t
}

func (b BudgetLimit) Validate() error {
	if NormalizeLabel(b.Category) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidBudget, ErrEmptyCategory)
	}
	if b.Limit.Cents <= 0 {
		return fmt.Errorf("%w: limit for %q must be positive", ErrInvalidBudget, b.Category)
	}
	return nil
}
