//go:build integration

package accountrepo_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/integrationtest"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/idpkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	dbDriver string
	dbSource string
)

func TestMain(m *testing.M) {
	config, err := configpkg.Load(integrationtest.ConfigPath)
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	dbDriver = config.DBDriver
	dbSource = config.DBSource

	os.Exit(m.Run())
}

func TestCreate(t *testing.T) {
	t.Parallel()

	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)
	user := integrationtest.SeedUser(t, tx)

	arg := domain.CreateAccountParams{
		Number:  idpkg.AccountNumber(),
		Owner:   user.Username,
		Type:    domain.AccountTypeSavings,
		Balance: randompkg.MoneyAmountBetween(100, 1000),
	}

	got, err := repo.Create(context.Background(), arg)
	require.NoError(t, err)

	want := domain.Account{
		Number:   arg.Number,
		Owner:    arg.Owner,
		Type:     arg.Type,
		Balance:  arg.Balance,
		IsActive: true,
	}

	ignoreFields := cmpopts.IgnoreFields(domain.Account{}, "ID", "CreatedAt", "UpdatedAt")
	if diff := cmp.Diff(want, got, ignoreFields); diff != "" {
		t.Errorf("repo.Create(context.Background(), %+v) returned unexpected difference (-want +got):\n%s", arg, diff)
	}

	require.NotZero(t, got.ID)
	require.NotZero(t, got.CreatedAt)
}

func TestCreateConstraintViolations(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		arg     func(owner string, existing domain.Account) domain.CreateAccountParams
		wantErr error
	}{
		{
			name: "OwnerNotFound",
			arg: func(owner string, existing domain.Account) domain.CreateAccountParams {
				return domain.CreateAccountParams{
					Number: idpkg.AccountNumber(),
					Owner:  "notfound",
					Type:   domain.AccountTypeChecking,
				}
			},
			wantErr: domain.ErrOwnerNotFound,
		},
		{
			name: "NumberTaken",
			arg: func(owner string, existing domain.Account) domain.CreateAccountParams {
				return domain.CreateAccountParams{
					Number: existing.Number,
					Owner:  owner,
					Type:   domain.AccountTypeChecking,
				}
			},
			wantErr: domain.ErrConflict,
		},
		{
			name: "UnsupportedType",
			arg: func(owner string, existing domain.Account) domain.CreateAccountParams {
				return domain.CreateAccountParams{
					Number: idpkg.AccountNumber(),
					Owner:  owner,
					Type:   "CRYPTO",
				}
			},
			wantErr: domain.ErrInvalidAccountType,
		},
		{
			name: "NegativeBalance",
			arg: func(owner string, existing domain.Account) domain.CreateAccountParams {
				return domain.CreateAccountParams{
					Number:  idpkg.AccountNumber(),
					Owner:   owner,
					Type:    domain.AccountTypeChecking,
					Balance: decimal.NewFromInt(-1),
				}
			},
			wantErr: domain.ErrInvalidAmount,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tx := integrationtest.SetupTX(t, dbDriver, dbSource)
			user := integrationtest.SeedUser(t, tx)
			existing := integrationtest.SeedAccount(t, tx, user.Username, decimal.Zero)

			got, err := accountrepo.NewRepoPGS(tx).Create(context.Background(), tc.arg(user.Username, existing))
			require.ErrorIs(t, err, tc.wantErr)
			require.Empty(t, got)
		})
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)
	user := integrationtest.SeedUser(t, tx)
	want := integrationtest.SeedAccount(t, tx, user.Username, randompkg.MoneyAmountBetween(100, 1000))

	got, err := repo.Get(context.Background(), want.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("repo.Get(context.Background(), %d) returned unexpected difference (-want +got):\n%s", want.ID, diff)
	}

	_, err = repo.Get(context.Background(), want.ID+1_000_000)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestList(t *testing.T) {
	t.Parallel()

	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)
	user := integrationtest.SeedUser(t, tx)
	other := integrationtest.SeedUser(t, tx)

	var want []domain.Account
	for i := 0; i < 5; i++ {
		want = append(want, integrationtest.SeedAccount(t, tx, user.Username, decimal.Zero))
	}

	integrationtest.SeedAccount(t, tx, other.Username, decimal.Zero)

	got, err := repo.List(context.Background(), user.Username, 3, 1)
	require.NoError(t, err)

	if diff := cmp.Diff(want[1:4], got, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("repo.List(context.Background(), %q, 3, 1) returned unexpected difference (-want +got):\n%s",
			user.Username, diff)
	}

	got, err = repo.List(context.Background(), "nobody", 10, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDeactivate(t *testing.T) {
	t.Parallel()

	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)
	user := integrationtest.SeedUser(t, tx)
	account := integrationtest.SeedAccount(t, tx, user.Username, decimal.Zero)

	got, err := repo.Deactivate(context.Background(), account.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
	require.Equal(t, account.Number, got.Number)

	_, err = repo.Deactivate(context.Background(), account.ID+1_000_000)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}
