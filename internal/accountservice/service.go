// Package accountservice manages business logic layer of accounts.
package accountservice

import (
	"context"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/idpkg"
	"github.com/go-petr/pet-ledger/pkg/retrypkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repo provides data access layer interface needed by account service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package accountservice
type Repo interface {
	Create(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error)
	Get(ctx context.Context, id int64) (domain.Account, error)
	List(ctx context.Context, owner string, limit, offset int32) ([]domain.Account, error)
	Deactivate(ctx context.Context, id int64) (domain.Account, error)
}

// Service facilitates account service layer logic.
type Service struct {
	repo        Repo
	maxAttempts int
}

// New returns account service struct to manage account bussines logic.
//
// maxAttempts bounds the number of account numbers tried when a generated one is taken.
func New(ar Repo, maxAttempts int) *Service {
	return &Service{repo: ar, maxAttempts: maxAttempts}
}

// Create opens an empty account of the given type for the owner.
func (s *Service) Create(ctx context.Context, owner string, accountType domain.AccountType) (domain.Account, error) {
	if !domain.IsSupportedAccountType(string(accountType)) {
		return domain.Account{}, domain.ErrInvalidAccountType
	}

	var account domain.Account

	err := retrypkg.Do(ctx, s.maxAttempts, domain.ErrConflict, func(attempt int) error {
		arg := domain.CreateAccountParams{
			Number:  idpkg.AccountNumber(),
			Owner:   owner,
			Type:    accountType,
			Balance: decimal.Zero,
		}

		var err error

		account, err = s.repo.Create(ctx, arg)
		if err == domain.ErrConflict {
			zerolog.Ctx(ctx).Warn().Int("attempt", attempt).Str("number", arg.Number).Msg("account number taken")
		}

		return err
	})
	if err != nil {
		return domain.Account{}, err
	}

	return account, nil
}

// Get returns the account with the given id if it belongs to owner.
//
// An account of another owner is reported as not found.
func (s *Service) Get(ctx context.Context, owner string, id int64) (domain.Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}

	if account.Owner != owner {
		zerolog.Ctx(ctx).Warn().Int64("account_id", id).Str("owner", owner).Msg("account owner mismatch")
		return domain.Account{}, domain.ErrAccountNotFound
	}

	return account, nil
}

// List returns accounts that are owned by the given user.
func (s *Service) List(ctx context.Context, owner string, pageSize, pageID int32) ([]domain.Account, error) {
	limit := pageSize
	offset := (pageID - 1) * pageSize

	return s.repo.List(ctx, owner, limit, offset)
}

// Deactivate closes the owner's account for further balance changes.
//
// Deactivating an inactive account returns it unchanged.
func (s *Service) Deactivate(ctx context.Context, owner string, id int64) (domain.Account, error) {
	account, err := s.Get(ctx, owner, id)
	if err != nil {
		return domain.Account{}, err
	}

	if !account.IsActive {
		return account, nil
	}

	return s.repo.Deactivate(ctx, id)
}
