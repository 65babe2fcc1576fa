package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrConflict indicates that a concurrent commit or an identifier collision invalidated the unit of work.
	ErrConflict = errors.New("concurrent update conflict, try again")
	// ErrLockTimeout indicates that an account lock was not acquired in time.
	ErrLockTimeout = errors.New("account is busy, try again later")
)

// LedgerTx is a unit of work over a set of exclusively locked accounts.
//
// Writes become visible to others only when the unit commits; a unit that returns an
// error leaves no trace.
//
//go:generate mockgen -source ledger.go -destination ledger_mock.go -package domain
type LedgerTx interface {
	Account(ctx context.Context, id int64) (Account, error)
	SetBalance(ctx context.Context, id int64, balance decimal.Decimal) (Account, error)
	CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error)
	CreateTransfer(ctx context.Context, arg CreateMoneyTransferParams) (MoneyTransfer, error)
	ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error)
	CreateStatement(ctx context.Context, arg CreateStatementParams) (Statement, error)
}

// TxFunc is the body of a unit of work.
type TxFunc func(tx LedgerTx) error
