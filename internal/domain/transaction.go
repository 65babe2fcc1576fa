package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the direction and origin of a balance change.
type TransactionKind string

// Transaction kinds.
const (
	KindDeposit     TransactionKind = "DEPOSIT"
	KindWithdrawal  TransactionKind = "WITHDRAWAL"
	KindTransferIn  TransactionKind = "TRANSFER_IN"
	KindTransferOut TransactionKind = "TRANSFER_OUT"
)

// IsCredit reports whether the kind increases the balance.
func (k TransactionKind) IsCredit() bool {
	return k == KindDeposit || k == KindTransferIn
}

// IsValid reports whether k is one of the known kinds.
func (k TransactionKind) IsValid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindTransferIn, KindTransferOut:
		return true
	}

	return false
}

// Transaction is an immutable record of one balance change of an account.
type Transaction struct {
	ID           string          `json:"transaction_id"`
	AccountID    int64           `json:"account_id"`
	Kind         TransactionKind `json:"transaction_type"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Reference    string          `json:"reference_number,omitempty"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SignedAmount returns the amount with the sign of its effect on the balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Kind.IsCredit() {
		return t.Amount
	}

	return t.Amount.Neg()
}

// CreateTransactionParams is the input data to append a transaction.
type CreateTransactionParams struct {
	ID           string
	AccountID    int64
	Kind         TransactionKind
	Amount       decimal.Decimal
	Description  string
	Reference    string
	BalanceAfter decimal.Decimal
}

// ListTransactionsParams filters an account's history.
//
// From and To are calendar dates compared against the UTC date of CreatedAt, both inclusive.
// Zero values disable the corresponding filter. Limit 0 means no limit.
type ListTransactionsParams struct {
	AccountID int64
	Kind      TransactionKind
	From      time.Time
	To        time.Time
	Limit     int32
	Offset    int32
}

// BalanceResult is the result of a deposit or a withdrawal.
type BalanceResult struct {
	Account     Account     `json:"account"`
	Transaction Transaction `json:"transaction"`
}
