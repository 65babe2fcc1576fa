package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount indicates a malformed, non-positive, too precise or too large amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds indicates that the account balance does not cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrBalanceLimit indicates that the resulting balance would not fit into the ledger.
	ErrBalanceLimit = errors.New("balance limit exceeded")
	// ErrForbidden indicates that the caller does not own the source account.
	ErrForbidden = errors.New("you can only transfer from your own accounts")
	// ErrInvalidTransfer indicates a transfer from an account to itself.
	ErrInvalidTransfer = errors.New("cannot transfer to the same account")
	// ErrTransferNotFound indicates that the transfer is not found.
	ErrTransferNotFound = errors.New("transfer not found")
)

// TransferStatus is the lifecycle state of a money transfer.
type TransferStatus string

// Transfer statuses.
const (
	TransferPending   TransferStatus = "PENDING"
	TransferCompleted TransferStatus = "COMPLETED"
	TransferFailed    TransferStatus = "FAILED"
)

// MoneyTransfer holds transfer data between two accounts.
type MoneyTransfer struct {
	ID            string          `json:"transfer_id"`
	FromAccountID int64           `json:"from_account_id"`
	ToAccountID   int64           `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Status        TransferStatus  `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// CreateTransferParams is the input data for the transfer transaction.
type CreateTransferParams struct {
	FromAccountID int64  `json:"from_account_id"`
	ToAccountID   int64  `json:"to_account_id"`
	Amount        string `json:"amount"`
	Description   string `json:"description"`
}

// CreateMoneyTransferParams is the record persisted for a transfer.
type CreateMoneyTransferParams struct {
	ID            string
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
	Description   string
	Status        TransferStatus
	CompletedAt   *time.Time
}

// ListTransfersParams selects transfers touching any account of the owner.
type ListTransfersParams struct {
	Owner  string
	Limit  int32
	Offset int32
}

// TransferResult is the result of the transfer transaction as seen by the sender.
type TransferResult struct {
	Transfer        MoneyTransfer `json:"transfer"`
	FromAccount     Account       `json:"from_account"`
	FromTransaction Transaction   `json:"from_transaction"`
}
