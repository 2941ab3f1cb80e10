package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"budgetwatch/internal/core"
)

// BudgetAlertMessage announces that a transaction moved a category's budget
// status to a more severe level for a month.
type BudgetAlertMessage struct {
	TransactionID  string    `json:"transaction_id"`
	Category       string    `json:"category"`
	Month          string    `json:"month"` // YYYY-MM
	PreviousStatus string    `json:"previous_status"`
	Status         string    `json:"status"`
	SpentCents     int64     `json:"spent_cents"`
	LimitCents     int64     `json:"limit_cents"`
	Percentage     string    `json:"percentage"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewBudgetAlertMessage creates a new alert message stamped with the current time.
func NewBudgetAlertMessage(transactionID, category string, month core.YearMonth, previous, status string, spent, limit core.Money, percentage string) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		TransactionID:  transactionID,
		Category:       category,
		Month:          month.String(),
		PreviousStatus: previous,
		Status:         status,
		SpentCents:     spent.Cents,
		LimitCents:     limit.Cents,
		Percentage:     percentage,
		Timestamp:      time.Now().UTC(),
	}
}

// YearMonth parses the Month field.
func (m *BudgetAlertMessage) YearMonth() (core.YearMonth, error) {
	return core.ParseYearMonth(m.Month)
}

// Validate reports messages the worker cannot act on.
func (m *BudgetAlertMessage) Validate() error {
	if core.NormalizeLabel(m.Category) == "" {
		return errors.New("alert message without category")
	}
	if m.Status == "" {
		return errors.New("alert message without status")
	}
	if _, err := m.YearMonth(); err != nil {
		return fmt.Errorf("alert message month: %w", err)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetAlertMessageFromJSON decodes and validates a message.
func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
