package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidDateRange indicates a statement period that ends before it starts.
var ErrInvalidDateRange = errors.New("invalid date range")

// DateLayout is the calendar date format of statement periods and date filters.
const DateLayout = "2006-01-02"

// Statement summarises one account's transactions over a period.
type Statement struct {
	ID               int64           `json:"id"`
	AccountID        int64           `json:"account_id"`
	PeriodStart      time.Time       `json:"statement_period_start"`
	PeriodEnd        time.Time       `json:"statement_period_end"`
	OpeningBalance   decimal.Decimal `json:"opening_balance"`
	ClosingBalance   decimal.Decimal `json:"closing_balance"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// CreateStatementParams is the input data to persist a statement.
type CreateStatementParams struct {
	AccountID        int64
	PeriodStart      time.Time
	PeriodEnd        time.Time
	OpeningBalance   decimal.Decimal
	ClosingBalance   decimal.Decimal
	TotalDeposits    decimal.Decimal
	TotalWithdrawals decimal.Decimal
}
