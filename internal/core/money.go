// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents and decimal representations.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt(1<<63 - 1)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.344") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Signs and exponents are not amounts a user types in a form.
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return 0, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) || !cents.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// ParseAmountLenient reads an amount from loosely typed input. Absent,
// non-numeric or negative values count as zero; it never fails.
func ParseAmountLenient(s string) Money {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return Money{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return Money{}
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) {
		return Money{}
	}
	return Money{Cents: cents.IntPart()}
}

// MoneyFromDecimal converts a decimal amount (e.g. from JSON) to cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}

// Decimal returns the amount as an exact decimal in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Euros returns the value in currency units as a float64 for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

// String renders the amount with two decimals, e.g. "12.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}
