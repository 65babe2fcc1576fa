// Package statementservice generates and lists account statements.
package statementservice

import (
	"context"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/retrypkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repo provides data access layer interface needed by statement service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package statementservice
type Repo interface {
	GetAccount(ctx context.Context, id int64) (domain.Account, error)
	ExecTx(ctx context.Context, accountIDs []int64, fn domain.TxFunc) error
	ListStatements(ctx context.Context, accountID int64, limit, offset int32) ([]domain.Statement, error)
}

// Service facilitates statement service layer logic.
type Service struct {
	repo        Repo
	maxAttempts int
}

// New returns statement service.
func New(r Repo, maxAttempts int) *Service {
	return &Service{repo: r, maxAttempts: maxAttempts}
}

func date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Generate summarises the owner's account over the inclusive period and stores the statement.
//
// The closing balance is the balance at generation time and the opening balance is derived
// from it, so transactions after periodEnd shift both.
func (s *Service) Generate(ctx context.Context, owner string, accountID int64, periodStart, periodEnd time.Time) (domain.Statement, error) {
	l := zerolog.Ctx(ctx)

	periodStart, periodEnd = date(periodStart), date(periodEnd)
	if periodEnd.Before(periodStart) {
		return domain.Statement{}, domain.ErrInvalidDateRange
	}

	var statement domain.Statement

	err := retrypkg.Do(ctx, s.maxAttempts, domain.ErrConflict, func(attempt int) error {
		return s.repo.ExecTx(ctx, []int64{accountID}, func(tx domain.LedgerTx) error {
			account, err := tx.Account(ctx, accountID)
			if err != nil {
				return err
			}

			if account.Owner != owner {
				return domain.ErrAccountNotFound
			}

			txns, err := tx.ListTransactions(ctx, domain.ListTransactionsParams{
				AccountID: accountID,
				From:      periodStart,
				To:        periodEnd,
			})
			if err != nil {
				return err
			}

			deposits, withdrawals := decimal.Zero, decimal.Zero

			for _, txn := range txns {
				if txn.Kind.IsCredit() {
					deposits = deposits.Add(txn.Amount)
				} else {
					withdrawals = withdrawals.Add(txn.Amount)
				}
			}

			statement, err = tx.CreateStatement(ctx, domain.CreateStatementParams{
				AccountID:        accountID,
				PeriodStart:      periodStart,
				PeriodEnd:        periodEnd,
				OpeningBalance:   account.Balance.Sub(deposits).Add(withdrawals),
				ClosingBalance:   account.Balance,
				TotalDeposits:    deposits,
				TotalWithdrawals: withdrawals,
			})

			return err
		})
	})
	if err != nil {
		l.Info().Err(err).Int64("account_id", accountID).Send()
		return domain.Statement{}, err
	}

	return statement, nil
}

// List returns statements of the owner's account, most recent first.
func (s *Service) List(ctx context.Context, owner string, accountID int64, pageSize, pageID int32) ([]domain.Statement, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account.Owner != owner {
		return nil, domain.ErrAccountNotFound
	}

	return s.repo.ListStatements(ctx, accountID, pageSize, (pageID-1)*pageSize)
}
