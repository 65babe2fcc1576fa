package balanceservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/ledgerrepo"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/idpkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func openAccount(t *testing.T, repo *ledgerrepo.RepoMem, owner string, balance string) domain.Account {
	t.Helper()

	account, err := repo.CreateAccount(context.Background(), domain.CreateAccountParams{
		Number:  idpkg.AccountNumber(),
		Owner:   owner,
		Type:    domain.AccountTypeChecking,
		Balance: decimal.RequireFromString(balance),
	})
	require.NoError(t, err)

	return account
}

func history(t *testing.T, repo *ledgerrepo.RepoMem, accountID int64) []domain.Transaction {
	t.Helper()

	txns, err := repo.ListTransactions(context.Background(), domain.ListTransactionsParams{AccountID: accountID})
	require.NoError(t, err)

	return txns
}

func TestApplyErrors(t *testing.T) {
	t.Parallel()

	owner := randompkg.Owner()
	account := domain.Account{
		ID:       7,
		Number:   idpkg.AccountNumber(),
		Owner:    owner,
		Type:     domain.AccountTypeChecking,
		Balance:  decimal.NewFromInt(100),
		IsActive: true,
	}

	inactive := account
	inactive.IsActive = false

	runTx := func(ledgerTx domain.LedgerTx) func(context.Context, []int64, domain.TxFunc) error {
		return func(_ context.Context, _ []int64, fn domain.TxFunc) error {
			return fn(ledgerTx)
		}
	}

	testCases := []struct {
		name       string
		amount     string
		withdraw   bool
		buildStubs func(repo *MockRepo, ledgerTx *domain.MockLedgerTx)
		wantErr    error
	}{
		{
			name:   "MalformedAmount",
			amount: "ten",
			buildStubs: func(repo *MockRepo, ledgerTx *domain.MockLedgerTx) {
				repo.EXPECT().ExecTx(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:   "ZeroAmount",
			amount: "0",
			buildStubs: func(repo *MockRepo, ledgerTx *domain.MockLedgerTx) {
				repo.EXPECT().ExecTx(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:   "NegativeAmount",
			amount: "-5.00",
			buildStubs: func(repo *MockRepo, ledgerTx *domain.MockLedgerTx) {
				repo.EXPECT().ExecTx(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:   "SubCentAmount",
			amount: "1.005",
			buildStubs: func(repo *MockRepo, ledgerTx *domain.MockLedgerTx) {
				repo.EXPECT().ExecTx(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:   "AmountTooLarge",
			amount: "100000000",
			buildStubs: func(repo *MockRepo, ledgerTx *domain.MockLedgerTx) {
				repo.EXPECT().ExecTx(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:   "AccountNotFound",
			amount: "10",
			buildStubs: func(repo *MockRepo, ledgerTx *domain.MockLedgerTx) {
				repo.EXPECT().ExecTx(gomock.Any(), []int64{account.ID}, gomock.Any()).Times(1).DoAndReturn(runTx(ledgerTx))
				ledgerTx.EXPECT().Account(gomock.Any(), account.ID).Times(1).Return(domain.Account{}, domain.ErrAccountNotFound)
				ledgerTx.EXPECT().SetBalance(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name:   "NotOwner",
			amount: "10",
			buildStubs: func(repo *MockRepo, ledgerTx *domain.MockLedgerTx) {
				stranger := account
				stranger.Owner = "stranger"

				repo.EXPECT().ExecTx(gomock.Any(), []int64{account.ID}, gomock.Any()).Times(1).DoAndReturn(runTx(ledgerTx))
				ledgerTx.EXPECT().Account(gomock.Any(), account.ID).Times(1).Return(stranger, nil)
				ledgerTx.EXPECT().SetBalance(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name:   "Inactive",
			amount: "10",
			buildStubs: func(repo *MockRepo, ledgerTx *domain.MockLedgerTx) {
				repo.EXPECT().ExecTx(gomock.Any(), []int64{account.ID}, gomock.Any()).Times(1).DoAndReturn(runTx(ledgerTx))
				ledgerTx.EXPECT().Account(gomock.Any(), account.ID).Times(1).Return(inactive, nil)
				ledgerTx.EXPECT().SetBalance(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrAccountInactive,
		},
		{
			name:     "InsufficientFunds",
			amount:   "100.01",
			withdraw: true,
			buildStubs: func(repo *MockRepo, ledgerTx *domain.MockLedgerTx) {
				repo.EXPECT().ExecTx(gomock.Any(), []int64{account.ID}, gomock.Any()).Times(1).DoAndReturn(runTx(ledgerTx))
				ledgerTx.EXPECT().Account(gomock.Any(), account.ID).Times(1).Return(account, nil)
				ledgerTx.EXPECT().SetBalance(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrInsufficientFunds,
		},
		{
			name:   "BalanceLimit",
			amount: "99999999.99",
			buildStubs: func(repo *MockRepo, ledgerTx *domain.MockLedgerTx) {
				rich := account
				rich.Balance = decimal.RequireFromString("9950000000")

				repo.EXPECT().ExecTx(gomock.Any(), []int64{account.ID}, gomock.Any()).Times(1).DoAndReturn(runTx(ledgerTx))
				ledgerTx.EXPECT().Account(gomock.Any(), account.ID).Times(1).Return(rich, nil)
				ledgerTx.EXPECT().SetBalance(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrBalanceLimit,
		},
		{
			name:   "TransactionInsertFails",
			amount: "10",
			buildStubs: func(repo *MockRepo, ledgerTx *domain.MockLedgerTx) {
				repo.EXPECT().ExecTx(gomock.Any(), []int64{account.ID}, gomock.Any()).Times(1).DoAndReturn(runTx(ledgerTx))
				ledgerTx.EXPECT().Account(gomock.Any(), account.ID).Times(1).Return(account, nil)
				ledgerTx.EXPECT().
					SetBalance(gomock.Any(), account.ID, gomock.Any()).
					Times(1).
					Return(account, nil)
				ledgerTx.EXPECT().
					CreateTransaction(gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Transaction{}, errorspkg.ErrInternal)
			},
			wantErr: errorspkg.ErrInternal,
		},
		{
			name:   "ConflictEveryAttempt",
			amount: "10",
			buildStubs: func(repo *MockRepo, ledgerTx *domain.MockLedgerTx) {
				repo.EXPECT().ExecTx(gomock.Any(), []int64{account.ID}, gomock.Any()).Times(3).Return(domain.ErrConflict)
			},
			wantErr: domain.ErrConflict,
		},
		{
			name:   "LockTimeoutIsNotRetried",
			amount: "10",
			buildStubs: func(repo *MockRepo, ledgerTx *domain.MockLedgerTx) {
				repo.EXPECT().ExecTx(gomock.Any(), []int64{account.ID}, gomock.Any()).Times(1).Return(domain.ErrLockTimeout)
			},
			wantErr: domain.ErrLockTimeout,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := NewMockRepo(ctrl)
			ledgerTx := domain.NewMockLedgerTx(ctrl)
			tc.buildStubs(repo, ledgerTx)

			service := New(repo, 3)

			var (
				got domain.BalanceResult
				err error
			)

			if tc.withdraw {
				got, err = service.Withdraw(context.Background(), owner, account.ID, tc.amount, "")
			} else {
				got, err = service.Deposit(context.Background(), owner, account.ID, tc.amount, "")
			}

			require.ErrorIs(t, err, tc.wantErr)
			require.Empty(t, got)
		})
	}
}

func TestConflictRetriedWithFreshIDs(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	owner := randompkg.Owner()
	account := domain.Account{ID: 3, Owner: owner, Balance: decimal.NewFromInt(50), IsActive: true}

	repo := NewMockRepo(ctrl)
	ledgerTx := domain.NewMockLedgerTx(ctrl)

	var ids []string

	ledgerTx.EXPECT().Account(gomock.Any(), account.ID).Times(2).Return(account, nil)
	ledgerTx.EXPECT().SetBalance(gomock.Any(), account.ID, gomock.Any()).Times(2).Return(account, nil)
	ledgerTx.EXPECT().
		CreateTransaction(gomock.Any(), gomock.Any()).
		Times(2).
		DoAndReturn(func(_ context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
			ids = append(ids, arg.ID)
			return domain.Transaction{ID: arg.ID}, nil
		})

	gomock.InOrder(
		repo.EXPECT().
			ExecTx(gomock.Any(), []int64{account.ID}, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ []int64, fn domain.TxFunc) error {
				if err := fn(ledgerTx); err != nil {
					return err
				}

				return domain.ErrConflict
			}),
		repo.EXPECT().
			ExecTx(gomock.Any(), []int64{account.ID}, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ []int64, fn domain.TxFunc) error {
				return fn(ledgerTx)
			}),
	)

	got, err := New(repo, 3).Deposit(context.Background(), owner, account.ID, "25", "")
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.NotEqual(t, ids[0], ids[1])
	require.Equal(t, ids[1], got.Transaction.ID)
}

func TestDepositWithdrawScenario(t *testing.T) {
	t.Parallel()

	repo := ledgerrepo.NewRepoMem()
	service := New(repo, 3)
	owner := randompkg.Owner()
	account := openAccount(t, repo, owner, "1000.00")

	got, err := service.Deposit(context.Background(), owner, account.ID, "500.00", "")
	require.NoError(t, err)
	require.True(t, got.Account.Balance.Equal(decimal.NewFromInt(1500)), "balance = %s", got.Account.Balance)
	require.Equal(t, domain.KindDeposit, got.Transaction.Kind)
	require.Equal(t, DepositDescription, got.Transaction.Description)
	require.True(t, got.Transaction.BalanceAfter.Equal(got.Account.Balance))
	require.True(t, idpkg.Valid(idpkg.TransactionPrefix, got.Transaction.ID))

	got, err = service.Withdraw(context.Background(), owner, account.ID, "200", "ATM")
	require.NoError(t, err)
	require.True(t, got.Account.Balance.Equal(decimal.NewFromInt(1300)), "balance = %s", got.Account.Balance)
	require.Equal(t, domain.KindWithdrawal, got.Transaction.Kind)
	require.Equal(t, "ATM", got.Transaction.Description)

	committed, err := repo.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, committed.Balance.Equal(decimal.NewFromInt(1300)))
}

func TestInsufficientFundsLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	repo := ledgerrepo.NewRepoMem()
	service := New(repo, 3)
	owner := randompkg.Owner()
	account := openAccount(t, repo, owner, "0")

	_, err := service.Deposit(context.Background(), owner, account.ID, "40.50", "")
	require.NoError(t, err)

	before := history(t, repo, account.ID)

	_, err = service.Withdraw(context.Background(), owner, account.ID, "40.51", "")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	committed, err := repo.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, committed.Balance.Equal(decimal.RequireFromString("40.50")))

	if diff := cmp.Diff(before, history(t, repo, account.ID)); diff != "" {
		t.Errorf("history changed after a failed withdrawal (-before +after):\n%s", diff)
	}
}

func TestBalanceEqualsSignedSum(t *testing.T) {
	t.Parallel()

	repo := ledgerrepo.NewRepoMem()
	service := New(repo, 3)
	owner := randompkg.Owner()
	account := openAccount(t, repo, owner, "0")

	for i := 0; i < 50; i++ {
		amount := randompkg.MoneyAmountBetween(1, 100).String()

		var err error
		if randompkg.Intn(3) == 0 {
			_, err = service.Withdraw(context.Background(), owner, account.ID, amount, "")
		} else {
			_, err = service.Deposit(context.Background(), owner, account.ID, amount, "")
		}

		if err != nil {
			require.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}
	}

	txns := history(t, repo, account.ID)
	sum := decimal.Zero

	for _, txn := range txns {
		sum = sum.Add(txn.SignedAmount())
	}

	committed, err := repo.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, committed.Balance.Equal(sum), "balance %s, signed sum %s", committed.Balance, sum)

	// History is newest first, so each record's balance_after is the previous one's plus its own amount.
	for i := 0; i+1 < len(txns); i++ {
		want := txns[i+1].BalanceAfter.Add(txns[i].SignedAmount())
		require.True(t, txns[i].BalanceAfter.Equal(want), "transaction %s breaks the balance chain", txns[i].ID)
	}
}

func TestConcurrentWithdrawals(t *testing.T) {
	t.Parallel()

	repo := ledgerrepo.NewRepoMem(ledgerrepo.WithLockTimeout(5 * time.Second))
	service := New(repo, 3)
	owner := randompkg.Owner()
	account := openAccount(t, repo, owner, "100")

	const workers = 10

	results := make([]error, workers)

	var g errgroup.Group

	for i := 0; i < workers; i++ {
		i := i

		g.Go(func() error {
			_, results[i] = service.Withdraw(context.Background(), owner, account.ID, "100", "")
			return nil
		})
	}

	require.NoError(t, g.Wait())

	var succeeded int

	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientFunds):
		default:
			t.Fatalf("Withdraw returned unexpected error: %v", err)
		}
	}

	require.Equal(t, 1, succeeded)

	committed, err := repo.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, committed.Balance.IsZero())
	require.Len(t, history(t, repo, account.ID), 1)
}

func TestListTransactions(t *testing.T) {
	t.Parallel()

	repo := ledgerrepo.NewRepoMem()
	service := New(repo, 3)
	owner := randompkg.Owner()
	account := openAccount(t, repo, owner, "0")

	for _, amount := range []string{"10", "20", "30"} {
		_, err := service.Deposit(context.Background(), owner, account.ID, amount, "")
		require.NoError(t, err)
	}

	_, err := service.Withdraw(context.Background(), owner, account.ID, "5", "")
	require.NoError(t, err)

	testCases := []struct {
		name        string
		owner       string
		arg         domain.ListTransactionsParams
		wantAmounts []string
		wantErr     error
	}{
		{
			name:        "All",
			owner:       owner,
			arg:         domain.ListTransactionsParams{AccountID: account.ID},
			wantAmounts: []string{"5", "30", "20", "10"},
		},
		{
			name:        "DepositsPaged",
			owner:       owner,
			arg:         domain.ListTransactionsParams{AccountID: account.ID, Kind: domain.KindDeposit, Limit: 2, Offset: 1},
			wantAmounts: []string{"20", "10"},
		},
		{
			name:    "NotOwner",
			owner:   "stranger",
			arg:     domain.ListTransactionsParams{AccountID: account.ID},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name:    "MissingAccount",
			owner:   owner,
			arg:     domain.ListTransactionsParams{AccountID: account.ID + 100},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name:  "ReversedDates",
			owner: owner,
			arg: domain.ListTransactionsParams{
				AccountID: account.ID,
				From:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				To:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			wantErr: domain.ErrInvalidDateRange,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := service.ListTransactions(context.Background(), tc.owner, tc.arg)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)

			var amounts []decimal.Decimal
			for _, txn := range got {
				amounts = append(amounts, txn.Amount)
			}

			var want []decimal.Decimal
			for _, a := range tc.wantAmounts {
				want = append(want, decimal.RequireFromString(a))
			}

			if diff := cmp.Diff(want, amounts, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ListTransactions(%+v) returned unexpected amounts (-want +got):\n%s", tc.arg, diff)
			}
		})
	}
}
