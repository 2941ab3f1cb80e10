// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"budgetwatch/internal/core"
	"budgetwatch/internal/filter"
)

const maxBodyBytes = 1 << 20

// ParseCriteria reads filter criteria from query parameters. Blank values
// leave a dimension unset; a malformed date is an error.
func ParseCriteria(query url.Values) (filter.Criteria, error) {
	c := filter.Criteria{
		Category:      sanitizeInput(query.Get("category")),
		PaymentMethod: sanitizeInput(query.Get("paymentMethod")),
		SearchText:    sanitizeInput(query.Get("search")),
	}
	var err error
	if c.DateFrom, err = core.ParseDate(query.Get("dateFrom")); err != nil {
		return filter.Criteria{}, fmt.Errorf("dateFrom: %w", err)
	}
	if c.DateTo, err = core.ParseDate(query.Get("dateTo")); err != nil {
		return filter.Criteria{}, fmt.Errorf("dateTo: %w", err)
	}
	return c, nil
}

// ParseMonth reads the "month" query parameter as YYYY-MM, defaulting to
// the month containing now.
func ParseMonth(query url.Values, now time.Time) (core.YearMonth, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return core.CurrentYearMonth(now), nil
	}
	return core.ParseYearMonth(v)
}

// ParseYearMonthPath validates the {year}/{month} path segments.
func ParseYearMonthPath(year, month string) (core.YearMonth, error) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return core.YearMonth{}, fmt.Errorf("%w: %q", core.ErrInvalidYear, year)
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return core.YearMonth{}, fmt.Errorf("%w: %q", core.ErrInvalidMonth, month)
	}
	return core.NewYearMonth(y, m)
}

// ParseLimit reads a positive integer parameter; anything else yields 0.
func ParseLimit(query url.Values, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(query.Get(key)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser reads at most maxBodyBytes of the request body once.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// transactionFromBody builds a transaction from add-expense input. The
// amount must be a positive decimal; a missing date means today.
func transactionFromBody(p *RequestBodyParser, now time.Time) (core.Transaction, error) {
	cents, err := core.ParseDecimalToCents(p.Get("amount"))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", p.Get("amount"), err)
	}
	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		return core.Transaction{}, err
	}
	if date.IsEmpty() {
		date = core.DateOf(now)
	}
	return core.Transaction{
		Category:      p.Get("category"),
		Amount:        core.Money{Cents: cents},
		Date:          date,
		PaymentMethod: p.Get("paymentMethod"),
		Notes:         p.Get("notes"),
		Icon:          p.Get("icon"),
	}, nil
}

// limitFromBody reads a budget limit; non-positive or malformed input is an
// invalid budget.
func limitFromBody(p *RequestBodyParser) (core.Money, error) {
	raw := p.Get("limit")
	cents, err := core.ParseDecimalToCents(raw)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: limit %q must be a positive amount", core.ErrInvalidBudget, raw)
	}
	return core.Money{Cents: cents}, nil
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
