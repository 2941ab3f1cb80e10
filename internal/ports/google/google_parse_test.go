package google

import (
	"context"
	"strings"
	"testing"

	"budgetwatch/internal/core"
)

func TestParseTransactions(t *testing.T) {
	values := [][]any{
		{"ID", "Date", "Category", "Amount", "Payment method", "Notes", "Icon"},
		{"a1", "2024-05-01", " Food ", 12.5, "Cash", "Groceries", "cart"},
		{"a2", "not a date", "Transport", "3,20", "Card"},
		{"a3", "2024-05-03", "Fun", "abc"},
		{},
		{"", "2024-05-04", "Food", 1.0},
		{"a5", "2024-05-05", "   ", 9.0},
	}

	got := parseTransactions(values)
	if len(got) != 3 {
		t.Fatalf("parseTransactions() len = %d, want 3: %+v", len(got), got)
	}
	if got[0].Category != "Food" || got[0].Amount.Cents != 1250 || got[0].Icon != "cart" {
		t.Errorf("unexpected first row: %+v", got[0])
	}
	if got[0].Date.CompareDay(core.NewDate(2024, 5, 1)) != 0 {
		t.Errorf("date = %v", got[0].Date)
	}
	if !got[1].Date.IsEmpty() || got[1].Amount.Cents != 320 {
		t.Errorf("bad date should be absent and comma amount parsed: %+v", got[1])
	}
	if got[2].Amount.Cents != 0 {
		t.Errorf("non-numeric amount should count as zero, got %d", got[2].Amount.Cents)
	}
}

func TestParseBudgets(t *testing.T) {
	values := [][]any{
		{"id", "Category", "Limit"},
		{"b1", "Food", 300.0},
		{"b2", "Transport", "80.50"},
		{"b3", ""},
	}
	got := parseBudgets(values)
	if len(got) != 2 {
		t.Fatalf("parseBudgets() len = %d", len(got))
	}
	if got[0].Limit.Cents != 30000 || got[1].Limit.Cents != 8050 {
		t.Fatalf("unexpected limits: %+v", got)
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{
		{"id", "Category"},
		{"b1", "Food"},
		{},
		{"b2", " Transport "},
	}
	tests := []struct {
		col    int
		target string
		want   int
	}{
		{1, "Food", 2},
		{1, "Transport", 4},
		{1, "food", -1},
		{0, "b2", 4},
		{1, "", -1},
	}
	for _, tt := range tests {
		if got := findRow(values, tt.col, tt.target); got != tt.want {
			t.Errorf("findRow(%d, %q) = %d, want %d", tt.col, tt.target, got, tt.want)
		}
	}
}

func TestTransactionRowRoundTrip(t *testing.T) {
	tx := core.Transaction{ID: "x", Date: core.NewDate(2024, 2, 29), Category: "Food", Amount: core.Money{Cents: 4599}, PaymentMethod: "Card", Notes: "n"}
	got := parseTransactions([][]any{transactionRow(tx)})
	if len(got) != 1 || got[0] != tx {
		t.Fatalf("round trip = %+v, want %+v", got, tx)
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := New(context.Background(), Config{}); err == nil || !strings.Contains(err.Error(), "spreadsheet") {
		t.Fatalf("expected missing spreadsheet error, got %v", err)
	}
	_, err := New(context.Background(), Config{SpreadsheetID: "abc"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
	_, err = New(context.Background(), Config{SpreadsheetID: "abc", ServiceAccountFile: "/does/not/exist.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestUninitializedClient(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	_, err := c.AppendTransaction(context.Background(), core.Transaction{Category: "Food", Amount: core.Money{Cents: 1}, Date: core.NewDate(2024, 1, 1)})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized error, got %v", err)
	}
	if _, err := c.AppendTransaction(context.Background(), core.Transaction{}); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error first, got %v", err)
	}
	if _, err := c.EnsureHeaders(context.Background()); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
}

func TestNeedsHeader(t *testing.T) {
	tests := []struct {
		name   string
		values [][]any
		want   bool
	}{
		{"empty sheet", nil, true},
		{"single blank row", [][]any{{}}, true},
		{"header present", [][]any{transactionHeader}, false},
		{"data without header", [][]any{{"abc", "2024-05-01", "Food", "3"}}, false},
		{"blank first row then data", [][]any{{}, {"abc"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needsHeader(tt.values); got != tt.want {
				t.Errorf("needsHeader() = %v, want %v", got, tt.want)
			}
		})
	}
	if !isHeader(budgetHeader) {
		t.Error("budget header should be recognised as a header row")
	}
}
