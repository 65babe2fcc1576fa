// Package domain provides definitions of all entities.
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound indicates that the account is not found or is not owned by the caller.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountInactive indicates that the account was deactivated.
	ErrAccountInactive = errors.New("account is inactive")
	// ErrOwnerNotFound indicates that the owner for the account is not found.
	ErrOwnerNotFound = errors.New("owner not found")
	// ErrInvalidAccountType indicates an unsupported account type.
	ErrInvalidAccountType = errors.New("invalid account type")
)

// AccountType is the product kind of an account.
type AccountType string

// Supported account types.
const (
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeSavings  AccountType = "SAVINGS"
	AccountTypeBusiness AccountType = "BUSINESS"
)

// SupportedAccountTypes holds all the supported account types.
var SupportedAccountTypes = []AccountType{
	AccountTypeChecking,
	AccountTypeSavings,
	AccountTypeBusiness,
}

// IsSupportedAccountType returns true if the account type is supported.
func IsSupportedAccountType(t string) bool {
	for _, at := range SupportedAccountTypes {
		if string(at) == t {
			return true
		}
	}

	return false
}

// Account holds the balance of one account holder's account.
type Account struct {
	ID        int64           `json:"id"`
	Number    string          `json:"account_number"`
	Owner     string          `json:"owner"`
	Type      AccountType     `json:"account_type"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CreateAccountParams is the input data to open an account.
type CreateAccountParams struct {
	Number  string
	Owner   string
	Type    AccountType
	Balance decimal.Decimal
}
