// Package ledger provides the account data shown behind the reveal gate:
// transactions, balance, and a mock provider that simulates a flaky remote
// API.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind tells whether money left or entered the account.
type Kind string

const (
	Debit  Kind = "debit"
	Credit Kind = "credit"
)

// Amounts are in minor units (cents).
type Transaction struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Kind        Kind      `json:"type"`
	Category    string    `json:"category,omitempty"`
	Merchant    string    `json:"merchant,omitempty"`
}

type Balance struct {
	Available int64  `json:"available"`
	Pending   int64  `json:"pending"`
	Currency  string `json:"currency"`
}

type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	HasMore      bool          `json:"hasMore"`
	NextCursor   string        `json:"nextCursor,omitempty"`
}

// Query narrows a transaction listing. Zero values mean "no constraint".
type Query struct {
	Limit  int
	Cursor string
	Start  time.Time
	End    time.Time
}

// Provider is the source of account data.
type Provider interface {
	Transactions(ctx context.Context, q Query) (TransactionPage, error)
	Balance(ctx context.Context) (Balance, error)
	Refresh(ctx context.Context) (TransactionPage, error)
	Transaction(ctx context.Context, id string) (Transaction, error)
}

const (
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeNotFound           = "NOT_FOUND"
)

// APIError is a classified provider failure.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("ledger: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("ledger: %d %s: %s", e.Status, e.Code, e.Message)
}

// Temporary reports whether retrying later may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// Message returns the user-facing text for err: the APIError message when
// there is one, fallback otherwise.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
