// Package transferservice manages business logic layer of transfers.
package transferservice

import (
	"context"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/idpkg"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/go-petr/pet-ledger/pkg/retrypkg"
	"github.com/rs/zerolog"
)

// Repo provides data access layer interface needed by transfer service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package transferservice
type Repo interface {
	GetAccount(ctx context.Context, id int64) (domain.Account, error)
	ExecTx(ctx context.Context, accountIDs []int64, fn domain.TxFunc) error
	ListTransfers(ctx context.Context, arg domain.ListTransfersParams) ([]domain.MoneyTransfer, error)
}

// Service facilitates transfer service layer logic.
type Service struct {
	repo        Repo
	maxAttempts int
}

// New return transfer service struct to manage transfer bussines logic.
func New(tr Repo, maxAttempts int) *Service {
	return &Service{
		repo:        tr,
		maxAttempts: maxAttempts,
	}
}

// Transfer moves money from one of owner's accounts to any other active account.
//
// Both accounts are changed in one unit of work: the source is debited, the destination
// credited and each side gets a transaction referencing the completed transfer.
func (s *Service) Transfer(ctx context.Context, owner string, arg domain.CreateTransferParams) (domain.TransferResult, error) {
	l := zerolog.Ctx(ctx)

	from, err := s.repo.GetAccount(ctx, arg.FromAccountID)
	if err != nil && err != domain.ErrAccountNotFound {
		return domain.TransferResult{}, err
	}

	if err != nil || from.Owner != owner {
		l.Info().Int64("from_account_id", arg.FromAccountID).Str("owner", owner).Msg("transfer from foreign account")
		return domain.TransferResult{}, domain.ErrForbidden
	}

	if arg.FromAccountID == arg.ToAccountID {
		return domain.TransferResult{}, domain.ErrInvalidTransfer
	}

	amount, err := moneypkg.ParseAmount(arg.Amount)
	if err != nil {
		l.Info().Err(err).Str("amount", arg.Amount).Send()
		return domain.TransferResult{}, domain.ErrInvalidAmount
	}

	var result domain.TransferResult

	err = retrypkg.Do(ctx, s.maxAttempts, domain.ErrConflict, func(attempt int) error {
		if attempt > 1 {
			l.Warn().Int("attempt", attempt).Msg("retrying transfer")
		}

		return s.repo.ExecTx(ctx, []int64{arg.FromAccountID, arg.ToAccountID}, func(tx domain.LedgerTx) error {
			from, err := tx.Account(ctx, arg.FromAccountID)
			if err != nil {
				return err
			}

			if !from.IsActive {
				return domain.ErrAccountInactive
			}

			if from.Balance.LessThan(amount) {
				return domain.ErrInsufficientFunds
			}

			to, err := tx.Account(ctx, arg.ToAccountID)
			if err != nil {
				return err
			}

			if !to.IsActive {
				return domain.ErrAccountInactive
			}

			toBalance := to.Balance.Add(amount)
			if !moneypkg.WithinBalanceLimit(toBalance) {
				return domain.ErrBalanceLimit
			}

			completedAt := time.Now().UTC()

			transfer, err := tx.CreateTransfer(ctx, domain.CreateMoneyTransferParams{
				ID:            idpkg.TransferID(),
				FromAccountID: from.ID,
				ToAccountID:   to.ID,
				Amount:        amount,
				Description:   arg.Description,
				Status:        domain.TransferCompleted,
				CompletedAt:   &completedAt,
			})
			if err != nil {
				return err
			}

			fromAccount, err := tx.SetBalance(ctx, from.ID, from.Balance.Sub(amount))
			if err != nil {
				return err
			}

			fromTxn, err := tx.CreateTransaction(ctx, domain.CreateTransactionParams{
				ID:           idpkg.TransactionID(),
				AccountID:    from.ID,
				Kind:         domain.KindTransferOut,
				Amount:       amount,
				Description:  "Transfer to " + to.Number,
				Reference:    transfer.ID,
				BalanceAfter: fromAccount.Balance,
			})
			if err != nil {
				return err
			}

			if _, err := tx.SetBalance(ctx, to.ID, toBalance); err != nil {
				return err
			}

			_, err = tx.CreateTransaction(ctx, domain.CreateTransactionParams{
				ID:           idpkg.TransactionID(),
				AccountID:    to.ID,
				Kind:         domain.KindTransferIn,
				Amount:       amount,
				Description:  "Transfer from " + from.Number,
				Reference:    transfer.ID,
				BalanceAfter: toBalance,
			})
			if err != nil {
				return err
			}

			result = domain.TransferResult{
				Transfer:        transfer,
				FromAccount:     fromAccount,
				FromTransaction: fromTxn,
			}

			return nil
		})
	})
	if err != nil {
		l.Info().Err(err).Int64("from_account_id", arg.FromAccountID).Int64("to_account_id", arg.ToAccountID).Send()
		return domain.TransferResult{}, err
	}

	return result, nil
}

// List returns transfers from or to any account of the owner, newest first.
func (s *Service) List(ctx context.Context, owner string, pageSize, pageID int32) ([]domain.MoneyTransfer, error) {
	return s.repo.ListTransfers(ctx, domain.ListTransfersParams{
		Owner:  owner,
		Limit:  pageSize,
		Offset: (pageID - 1) * pageSize,
	})
}
