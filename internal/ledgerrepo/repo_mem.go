package ledgerrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
)

// RepoMem is an in-memory ledger store with the same contract as RepoPGS.
//
// Every account is guarded by a weighted semaphore of size one. Units of work stage their
// writes and publish them under the store mutex on commit.
type RepoMem struct {
	mu          sync.RWMutex
	now         func() time.Time
	lockTimeout time.Duration

	locks           map[int64]*semaphore.Weighted
	accounts        map[int64]domain.Account
	transactions    []memTransaction
	transactionIDs  map[string]struct{}
	transfers       []memTransfer
	transferIDs     map[string]struct{}
	statements      []domain.Statement
	lastAccountID   int64
	lastStatementID int64
	seq             int64
}

// memTransaction keeps the commit sequence next to the record for stable ordering of equal timestamps.
type memTransaction struct {
	domain.Transaction
	seq int64
}

type memTransfer struct {
	domain.MoneyTransfer
	seq int64
}

// MemOption configures RepoMem.
type MemOption func(*RepoMem)

// WithClock sets the time source used for created_at and updated_at values.
func WithClock(now func() time.Time) MemOption {
	return func(r *RepoMem) {
		r.now = now
	}
}

// WithLockTimeout bounds the wait for every account lock taken by ExecTx.
func WithLockTimeout(d time.Duration) MemOption {
	return func(r *RepoMem) {
		r.lockTimeout = d
	}
}

// NewRepoMem returns an empty RepoMem.
func NewRepoMem(opts ...MemOption) *RepoMem {
	r := &RepoMem{
		now:            time.Now,
		locks:          make(map[int64]*semaphore.Weighted),
		accounts:       make(map[int64]domain.Account),
		transactionIDs: make(map[string]struct{}),
		transferIDs:    make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *RepoMem) clock() time.Time {
	return r.now().UTC()
}

// CreateAccount opens an account, assigning the next id.
func (r *RepoMem) CreateAccount(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if arg.Balance.IsNegative() {
		return domain.Account{}, domain.ErrInsufficientFunds
	}

	for _, a := range r.accounts {
		if a.Number == arg.Number {
			return domain.Account{}, domain.ErrConflict
		}
	}

	r.lastAccountID++
	now := r.clock()

	a := domain.Account{
		ID:        r.lastAccountID,
		Number:    arg.Number,
		Owner:     arg.Owner,
		Type:      arg.Type,
		Balance:   arg.Balance,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.accounts[a.ID] = a
	r.locks[a.ID] = semaphore.NewWeighted(1)

	return a, nil
}

// DeactivateAccount marks the account inactive.
func (r *RepoMem) DeactivateAccount(ctx context.Context, id int64) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return a, domain.ErrAccountNotFound
	}

	a.IsActive = false
	a.UpdatedAt = r.clock()
	r.accounts[id] = a

	return a, nil
}

// GetAccount returns the committed state of the account.
func (r *RepoMem) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return a, domain.ErrAccountNotFound
	}

	return a, nil
}

// ExecTx runs fn holding the locks of the given accounts.
//
// Ids of accounts that do not exist are skipped; fn observes them as ErrAccountNotFound.
// Staged writes are published atomically when fn returns nil and dropped otherwise.
func (r *RepoMem) ExecTx(ctx context.Context, accountIDs []int64, fn domain.TxFunc) error {
	locked := make([]int64, 0, len(accountIDs))

	defer func() {
		r.mu.RLock()
		defer r.mu.RUnlock()

		for i := len(locked) - 1; i >= 0; i-- {
			r.locks[locked[i]].Release(1)
		}
	}()

	for _, id := range lockOrder(accountIDs) {
		r.mu.RLock()
		sem, ok := r.locks[id]
		r.mu.RUnlock()

		if !ok {
			continue
		}

		if err := r.acquire(ctx, sem); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("account_id", id).Msg("cannot lock account")
			return err
		}

		locked = append(locked, id)
	}

	tx := &memTx{
		repo:     r,
		locked:   locked,
		accounts: make(map[int64]domain.Account),
	}

	if err := fn(tx); err != nil {
		return err
	}

	return r.commit(tx)
}

func (r *RepoMem) acquire(ctx context.Context, sem *semaphore.Weighted) error {
	if r.lockTimeout <= 0 {
		return sem.Acquire(ctx, 1)
	}

	lockCtx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	if err := sem.Acquire(lockCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return domain.ErrLockTimeout
	}

	return nil
}

func (r *RepoMem) commit(tx *memTx) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tx.transactions {
		if _, ok := r.transactionIDs[t.ID]; ok {
			return domain.ErrConflict
		}
	}

	for _, t := range tx.transfers {
		if _, ok := r.transferIDs[t.ID]; ok {
			return domain.ErrConflict
		}
	}

	for id, a := range tx.accounts {
		r.accounts[id] = a
	}

	for _, t := range tx.transactions {
		r.seq++
		r.transactions = append(r.transactions, memTransaction{Transaction: t, seq: r.seq})
		r.transactionIDs[t.ID] = struct{}{}
	}

	for _, t := range tx.transfers {
		r.seq++
		r.transfers = append(r.transfers, memTransfer{MoneyTransfer: t, seq: r.seq})
		r.transferIDs[t.ID] = struct{}{}
	}

	r.statements = append(r.statements, tx.statements...)

	return nil
}

func matchTransaction(t domain.Transaction, arg domain.ListTransactionsParams) bool {
	if t.AccountID != arg.AccountID {
		return false
	}

	if arg.Kind != "" && t.Kind != arg.Kind {
		return false
	}

	created := t.CreatedAt.UTC()

	if !arg.From.IsZero() {
		from := time.Date(arg.From.Year(), arg.From.Month(), arg.From.Day(), 0, 0, 0, 0, time.UTC)
		if created.Before(from) {
			return false
		}
	}

	if !arg.To.IsZero() {
		to := time.Date(arg.To.Year(), arg.To.Month(), arg.To.Day()+1, 0, 0, 0, 0, time.UTC)
		if !created.Before(to) {
			return false
		}
	}

	return true
}

func page[T any](items []T, limit, offset int32) []T {
	if offset < 0 {
		offset = 0
	}

	if int(offset) >= len(items) {
		return []T{}
	}

	items = items[offset:]

	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}

	return items
}

// ListTransactions returns the account's committed transactions matching arg, newest first.
func (r *RepoMem) ListTransactions(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.listTransactions(arg, nil), nil
}

func (r *RepoMem) listTransactions(arg domain.ListTransactionsParams, staged []domain.Transaction) []domain.Transaction {
	matched := make([]memTransaction, 0)

	for _, t := range r.transactions {
		if matchTransaction(t.Transaction, arg) {
			matched = append(matched, t)
		}
	}

	for i, t := range staged {
		if matchTransaction(t, arg) {
			matched = append(matched, memTransaction{Transaction: t, seq: r.seq + int64(i) + 1})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}

		return matched[i].seq > matched[j].seq
	})

	items := make([]domain.Transaction, 0, len(matched))
	for _, t := range page(matched, arg.Limit, arg.Offset) {
		items = append(items, t.Transaction)
	}

	return items
}

// ListTransfers returns transfers sent from or received by any account of the owner, newest first.
func (r *RepoMem) ListTransfers(ctx context.Context, arg domain.ListTransfersParams) ([]domain.MoneyTransfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]memTransfer, 0)

	for _, t := range r.transfers {
		if r.accounts[t.FromAccountID].Owner == arg.Owner || r.accounts[t.ToAccountID].Owner == arg.Owner {
			matched = append(matched, t)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}

		return matched[i].seq > matched[j].seq
	})

	items := make([]domain.MoneyTransfer, 0, len(matched))
	for _, t := range page(matched, arg.Limit, arg.Offset) {
		items = append(items, t.MoneyTransfer)
	}

	return items, nil
}

// ListStatements returns the account's statements, most recently generated first.
func (r *RepoMem) ListStatements(ctx context.Context, accountID int64, limit, offset int32) ([]domain.Statement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Statement, 0)

	for i := len(r.statements) - 1; i >= 0; i-- {
		if r.statements[i].AccountID == accountID {
			matched = append(matched, r.statements[i])
		}
	}

	return page(matched, limit, offset), nil
}

// memTx is the LedgerTx handed to RepoMem.ExecTx callbacks.
type memTx struct {
	repo         *RepoMem
	locked       []int64
	accounts     map[int64]domain.Account
	transactions []domain.Transaction
	transfers    []domain.MoneyTransfer
	statements   []domain.Statement
}

func (t *memTx) Account(ctx context.Context, id int64) (domain.Account, error) {
	if a, ok := t.accounts[id]; ok {
		return a, nil
	}

	return t.repo.GetAccount(ctx, id)
}

func (t *memTx) SetBalance(ctx context.Context, id int64, balance decimal.Decimal) (domain.Account, error) {
	if !contains(t.locked, id) {
		zerolog.Ctx(ctx).Error().Err(errNotLocked).Int64("account_id", id).Send()
		return domain.Account{}, errorspkg.ErrInternal
	}

	a, err := t.Account(ctx, id)
	if err != nil {
		return a, err
	}

	if balance.IsNegative() {
		return domain.Account{}, domain.ErrInsufficientFunds
	}

	if !moneypkg.WithinBalanceLimit(balance) {
		return domain.Account{}, domain.ErrBalanceLimit
	}

	a.Balance = balance
	a.UpdatedAt = t.repo.clock()
	t.accounts[id] = a

	return a, nil
}

func (t *memTx) CreateTransaction(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
	if !contains(t.locked, arg.AccountID) {
		zerolog.Ctx(ctx).Error().Err(errNotLocked).Int64("account_id", arg.AccountID).Send()
		return domain.Transaction{}, errorspkg.ErrInternal
	}

	if !arg.Kind.IsValid() {
		return domain.Transaction{}, errorspkg.ErrInternal
	}

	if arg.Amount.LessThan(decimal.New(1, -moneypkg.Scale)) {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}

	for _, staged := range t.transactions {
		if staged.ID == arg.ID {
			return domain.Transaction{}, domain.ErrConflict
		}
	}

	txn := domain.Transaction{
		ID:           arg.ID,
		AccountID:    arg.AccountID,
		Kind:         arg.Kind,
		Amount:       arg.Amount,
		Description:  arg.Description,
		Reference:    arg.Reference,
		BalanceAfter: arg.BalanceAfter,
		CreatedAt:    t.repo.clock(),
	}

	t.transactions = append(t.transactions, txn)

	return txn, nil
}

func (t *memTx) CreateTransfer(ctx context.Context, arg domain.CreateMoneyTransferParams) (domain.MoneyTransfer, error) {
	if arg.FromAccountID == arg.ToAccountID {
		return domain.MoneyTransfer{}, domain.ErrInvalidTransfer
	}

	for _, id := range []int64{arg.FromAccountID, arg.ToAccountID} {
		if _, err := t.Account(ctx, id); err != nil {
			return domain.MoneyTransfer{}, err
		}
	}

	if !arg.Amount.IsPositive() {
		return domain.MoneyTransfer{}, domain.ErrInvalidAmount
	}

	status := arg.Status
	if status == "" {
		status = domain.TransferPending
	}

	transfer := domain.MoneyTransfer{
		ID:            arg.ID,
		FromAccountID: arg.FromAccountID,
		ToAccountID:   arg.ToAccountID,
		Amount:        arg.Amount,
		Description:   arg.Description,
		Status:        status,
		CreatedAt:     t.repo.clock(),
		CompletedAt:   arg.CompletedAt,
	}

	t.transfers = append(t.transfers, transfer)

	return transfer, nil
}

func (t *memTx) ListTransactions(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error) {
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()

	return t.repo.listTransactions(arg, t.transactions), nil
}

func (t *memTx) CreateStatement(ctx context.Context, arg domain.CreateStatementParams) (domain.Statement, error) {
	if arg.PeriodEnd.Before(arg.PeriodStart) {
		return domain.Statement{}, domain.ErrInvalidDateRange
	}

	if !contains(t.locked, arg.AccountID) {
		zerolog.Ctx(ctx).Error().Err(errNotLocked).Int64("account_id", arg.AccountID).Send()
		return domain.Statement{}, errorspkg.ErrInternal
	}

	t.repo.mu.Lock()
	t.repo.lastStatementID++
	id := t.repo.lastStatementID
	t.repo.mu.Unlock()

	s := domain.Statement{
		ID:               id,
		AccountID:        arg.AccountID,
		PeriodStart:      arg.PeriodStart,
		PeriodEnd:        arg.PeriodEnd,
		OpeningBalance:   arg.OpeningBalance,
		ClosingBalance:   arg.ClosingBalance,
		TotalDeposits:    arg.TotalDeposits,
		TotalWithdrawals: arg.TotalWithdrawals,
		GeneratedAt:      t.repo.clock(),
	}

	t.statements = append(t.statements, s)

	return s, nil
}
