// Package balanceservice manages deposits, withdrawals and the transaction history of accounts.
package balanceservice

import (
	"context"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/idpkg"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/go-petr/pet-ledger/pkg/retrypkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Default transaction descriptions.
const (
	DepositDescription    = "Deposit"
	WithdrawalDescription = "Withdrawal"
)

// Repo provides data access layer interface needed by balance service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package balanceservice
type Repo interface {
	GetAccount(ctx context.Context, id int64) (domain.Account, error)
	ExecTx(ctx context.Context, accountIDs []int64, fn domain.TxFunc) error
	ListTransactions(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error)
}

// Service facilitates balance service layer logic.
type Service struct {
	repo        Repo
	maxAttempts int
}

// New returns balance service.
//
// maxAttempts bounds how many times a unit of work is run when its commit conflicts.
func New(r Repo, maxAttempts int) *Service {
	return &Service{repo: r, maxAttempts: maxAttempts}
}

// Deposit credits amount to the owner's account and records a DEPOSIT transaction.
func (s *Service) Deposit(ctx context.Context, owner string, accountID int64, amount, description string) (domain.BalanceResult, error) {
	if description == "" {
		description = DepositDescription
	}

	return s.apply(ctx, owner, accountID, domain.KindDeposit, amount, description)
}

// Withdraw debits amount from the owner's account and records a WITHDRAWAL transaction.
func (s *Service) Withdraw(ctx context.Context, owner string, accountID int64, amount, description string) (domain.BalanceResult, error) {
	if description == "" {
		description = WithdrawalDescription
	}

	return s.apply(ctx, owner, accountID, domain.KindWithdrawal, amount, description)
}

func (s *Service) apply(
	ctx context.Context,
	owner string,
	accountID int64,
	kind domain.TransactionKind,
	rawAmount, description string,
) (domain.BalanceResult, error) {
	l := zerolog.Ctx(ctx)

	amount, err := moneypkg.ParseAmount(rawAmount)
	if err != nil {
		l.Info().Err(err).Str("amount", rawAmount).Send()
		return domain.BalanceResult{}, domain.ErrInvalidAmount
	}

	var result domain.BalanceResult

	err = retrypkg.Do(ctx, s.maxAttempts, domain.ErrConflict, func(attempt int) error {
		if attempt > 1 {
			l.Warn().Int("attempt", attempt).Int64("account_id", accountID).Msg("retrying balance change")
		}

		return s.repo.ExecTx(ctx, []int64{accountID}, func(tx domain.LedgerTx) error {
			account, err := tx.Account(ctx, accountID)
			if err != nil {
				return err
			}

			if account.Owner != owner {
				return domain.ErrAccountNotFound
			}

			if !account.IsActive {
				return domain.ErrAccountInactive
			}

			balance, err := nextBalance(account.Balance, kind, amount)
			if err != nil {
				return err
			}

			account, err = tx.SetBalance(ctx, accountID, balance)
			if err != nil {
				return err
			}

			txn, err := tx.CreateTransaction(ctx, domain.CreateTransactionParams{
				ID:           idpkg.TransactionID(),
				AccountID:    accountID,
				Kind:         kind,
				Amount:       amount,
				Description:  description,
				BalanceAfter: balance,
			})
			if err != nil {
				return err
			}

			result = domain.BalanceResult{Account: account, Transaction: txn}

			return nil
		})
	})
	if err != nil {
		l.Info().Err(err).Int64("account_id", accountID).Str("kind", string(kind)).Send()
		return domain.BalanceResult{}, err
	}

	return result, nil
}

func nextBalance(balance decimal.Decimal, kind domain.TransactionKind, amount decimal.Decimal) (decimal.Decimal, error) {
	if !kind.IsCredit() {
		if balance.LessThan(amount) {
			return decimal.Decimal{}, domain.ErrInsufficientFunds
		}

		return balance.Sub(amount), nil
	}

	next := balance.Add(amount)
	if !moneypkg.WithinBalanceLimit(next) {
		return decimal.Decimal{}, domain.ErrBalanceLimit
	}

	return next, nil
}

// ListTransactions returns the owner's account history, newest first.
func (s *Service) ListTransactions(ctx context.Context, owner string, arg domain.ListTransactionsParams) ([]domain.Transaction, error) {
	if !arg.From.IsZero() && !arg.To.IsZero() && arg.To.Before(arg.From) {
		return nil, domain.ErrInvalidDateRange
	}

	account, err := s.repo.GetAccount(ctx, arg.AccountID)
	if err != nil {
		return nil, err
	}

	if account.Owner != owner {
		zerolog.Ctx(ctx).Warn().Int64("account_id", arg.AccountID).Str("owner", owner).Msg("account owner mismatch")
		return nil, domain.ErrAccountNotFound
	}

	return s.repo.ListTransactions(ctx, arg)
}
