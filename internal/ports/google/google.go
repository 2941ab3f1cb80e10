// Package google stores transactions and budgets in a Google Sheets
// spreadsheet. Each kind lives on its own sheet with a header row:
//
//	Transactions: ID | Date | Category | Amount | Payment method | Notes | Icon
//	Budgets:      ID | Category | Limit
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgetwatch/internal/core"
	"budgetwatch/internal/ports"
)

var _ ports.Store = (*Client)(nil)

// Config selects the spreadsheet and credentials.
type Config struct {
	SpreadsheetID      string
	TransactionsSheet  string
	BudgetsSheet       string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	budgetsSheet      string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	txSheet := strings.TrimSpace(cfg.TransactionsSheet)
	if txSheet == "" {
		txSheet = "Transactions"
	}
	budgetSheet := strings.TrimSpace(cfg.BudgetsSheet)
	if budgetSheet == "" {
		budgetSheet = "Budgets"
	}

	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", spreadsheetID,
		"transactions_sheet", txSheet,
		"budgets_sheet", budgetSheet)

	return &Client{
		svc:               svc,
		spreadsheetID:     spreadsheetID,
		transactionsSheet: txSheet,
		budgetsSheet:      budgetSheet,
	}, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (c *Client) ready() error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	return nil
}

func (c *Client) readRange(ctx context.Context, rng string) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) appendRow(ctx context.Context, sheet string, row []any) error {
	rng := fmt.Sprintf("%s!A:A", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	return nil
}

// clearRow blanks a 1-based row; blank rows are skipped when parsing.
func (c *Client) clearRow(ctx context.Context, sheet string, row int, lastCol string) error {
	rng := fmt.Sprintf("%s!A%d:%s%d", sheet, row, lastCol, row)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

func (c *Client) AppendTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = t.Normalized()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validation failed: %w", err)
	}
	if err := c.ready(); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := c.appendRow(ctx, c.transactionsSheet, transactionRow(t)); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	values, err := c.readRange(ctx, fmt.Sprintf("%s!A:G", c.transactionsSheet))
	if err != nil {
		return nil, err
	}
	return parseTransactions(values), nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	values, err := c.readRange(ctx, fmt.Sprintf("%s!A:A", c.transactionsSheet))
	if err != nil {
		return err
	}
	row := findRow(values, 0, id)
	if row < 0 {
		return fmt.Errorf("transaction %q: %w", id, core.ErrNotFound)
	}
	return c.clearRow(ctx, c.transactionsSheet, row, "G")
}

func (c *Client) ListBudgets(ctx context.Context) ([]core.BudgetLimit, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	values, err := c.readRange(ctx, fmt.Sprintf("%s!A:C", c.budgetsSheet))
	if err != nil {
		return nil, err
	}
	return parseBudgets(values), nil
}

func (c *Client) CreateBudget(ctx context.Context, b core.BudgetLimit) (core.BudgetLimit, error) {
	b.Category = core.NormalizeLabel(b.Category)
	if err := b.Validate(); err != nil {
		return core.BudgetLimit{}, err
	}
	if err := c.ready(); err != nil {
		return core.BudgetLimit{}, err
	}
	values, err := c.readRange(ctx, fmt.Sprintf("%s!A:C", c.budgetsSheet))
	if err != nil {
		return core.BudgetLimit{}, err
	}
	if findRow(values, 1, b.Category) >= 0 {
		return core.BudgetLimit{}, fmt.Errorf("%w: %q", core.ErrDuplicateBudget, b.Category)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if err := c.appendRow(ctx, c.budgetsSheet, budgetRow(b)); err != nil {
		return core.BudgetLimit{}, err
	}
	return b, nil
}

func (c *Client) UpdateBudget(ctx context.Context, category string, limit core.Money) (core.BudgetLimit, error) {
	b := core.BudgetLimit{Category: core.NormalizeLabel(category), Limit: limit}
	if err := b.Validate(); err != nil {
		return core.BudgetLimit{}, err
	}
	if err := c.ready(); err != nil {
		return core.BudgetLimit{}, err
	}
	values, err := c.readRange(ctx, fmt.Sprintf("%s!A:C", c.budgetsSheet))
	if err != nil {
		return core.BudgetLimit{}, err
	}
	row := findRow(values, 1, b.Category)
	if row < 0 {
		return core.BudgetLimit{}, fmt.Errorf("budget %q: %w", b.Category, core.ErrNotFound)
	}
	b.ID = cell(values[row-1], 0)

	rng := fmt.Sprintf("%s!C%d", c.budgetsSheet, row)
	vr := &gsheet.ValueRange{Values: [][]any{{limit.Euros()}}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return core.BudgetLimit{}, fmt.Errorf("update %s: %w", rng, err)
	}
	return b, nil
}

func (c *Client) DeleteBudget(ctx context.Context, category string) error {
	if err := c.ready(); err != nil {
		return err
	}
	category = core.NormalizeLabel(category)
	values, err := c.readRange(ctx, fmt.Sprintf("%s!A:C", c.budgetsSheet))
	if err != nil {
		return err
	}
	row := findRow(values, 1, category)
	if row < 0 {
		return fmt.Errorf("budget %q: %w", category, core.ErrNotFound)
	}
	return c.clearRow(ctx, c.budgetsSheet, row, "C")
}

// EnsureHeaders writes the header row to each sheet that is still empty and
// returns the names of the sheets it initialized.
func (c *Client) EnsureHeaders(ctx context.Context) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var initialized []string
	for _, sheet := range []struct {
		name   string
		header []any
	}{
		{c.transactionsSheet, transactionHeader},
		{c.budgetsSheet, budgetHeader},
	} {
		values, err := c.readRange(ctx, fmt.Sprintf("%s!A1:G2", sheet.name))
		if err != nil {
			return initialized, err
		}
		if !needsHeader(values) {
			continue
		}
		rng := fmt.Sprintf("%s!A1", sheet.name)
		vr := &gsheet.ValueRange{Values: [][]any{sheet.header}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return initialized, fmt.Errorf("write header to %s: %w", sheet.name, err)
		}
		initialized = append(initialized, sheet.name)
	}
	return initialized, nil
}
