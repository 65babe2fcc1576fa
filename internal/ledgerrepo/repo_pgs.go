package ledgerrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RepoPGS facilitates ledger repository layer logic on Postgres.
type RepoPGS struct {
	db          dbpkg.SQLInterface
	conn        *sql.DB
	lockTimeout time.Duration
}

// NewRepoPGS returns ledger RepoPGS with connection to start transactions.
//
// lockTimeout bounds the wait for every row lock taken by ExecTx; zero waits forever.
func NewRepoPGS(conn *sql.DB, lockTimeout time.Duration) *RepoPGS {
	return &RepoPGS{
		db:          conn,
		conn:        conn,
		lockTimeout: lockTimeout,
	}
}

// NewTxRepoPGS returns ledger RepoPGS running its queries on the given db or transaction.
//
// The returned repo cannot start transactions on its own.
func NewTxRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

// mapError translates driver errors into domain errors.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return errorspkg.ErrInternal
	}

	switch pqErr.Code.Name() {
	case "lock_not_available":
		return domain.ErrLockTimeout
	case "serialization_failure", "deadlock_detected", "unique_violation":
		return domain.ErrConflict
	case "foreign_key_violation":
		return domain.ErrAccountNotFound
	case "numeric_value_out_of_range":
		return domain.ErrBalanceLimit
	case "check_violation":
		switch pqErr.Constraint {
		case "accounts_balance_check":
			return domain.ErrInsufficientFunds
		case "transactions_amount_check", "transfers_amount_check":
			return domain.ErrInvalidAmount
		case "transfers_check":
			return domain.ErrInvalidTransfer
		case "statements_check":
			return domain.ErrInvalidDateRange
		}
	}

	return errorspkg.ErrInternal
}

const setLockTimeoutQuery = `SELECT set_config('lock_timeout', $1, true)`

// ExecTx runs fn inside a database transaction holding FOR UPDATE locks on the given accounts.
//
// Ids of accounts that do not exist are skipped; fn observes them as ErrAccountNotFound.
// The transaction commits when fn returns nil and is rolled back on every other path.
func (r *RepoPGS) ExecTx(ctx context.Context, accountIDs []int64, fn domain.TxFunc) error {
	l := zerolog.Ctx(ctx)

	if r.conn == nil {
		l.Error().Msg("ExecTx called on a repo without connection")
		return errorspkg.ErrInternal
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			l.Error().Err(err).Send()
		}
	}()

	if r.lockTimeout > 0 {
		setting := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, setLockTimeoutQuery, setting); err != nil {
			l.Error().Err(err).Send()
			return mapError(err)
		}
	}

	txRepo := NewTxRepoPGS(tx)
	locked := lockOrder(accountIDs)

	for _, id := range locked {
		if _, err := txRepo.lockAccount(ctx, id); err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
	}

	if err := fn(&ledgerTxPGS{repo: txRepo, locked: locked}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return mapError(err)
	}

	return nil
}

const accountColumns = `id, number, owner, type, balance, is_active, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (domain.Account, error) {
	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Number,
		&a.Owner,
		&a.Type,
		&a.Balance,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

const getAccountQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
`

// GetAccount returns the account with the given id without locking it.
func (r *RepoPGS) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, getAccountQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Int64("account_id", id).Send()

		return a, mapError(err)
	}

	return a, nil
}

const lockAccountQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
FOR UPDATE
`

func (r *RepoPGS) lockAccount(ctx context.Context, id int64) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, lockAccountQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Int64("account_id", id).Msg("cannot lock account")

		return a, mapError(err)
	}

	return a, nil
}

const setBalanceQuery = `
UPDATE accounts
SET balance = $1, updated_at = now()
WHERE id = $2
RETURNING ` + accountColumns

func (r *RepoPGS) setBalance(ctx context.Context, id int64, balance decimal.Decimal) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, setBalanceQuery, balance, id))
	if err != nil {
		l.Error().Err(err).Int64("account_id", id).Send()

		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAccountNotFound
		}

		return a, mapError(err)
	}

	return a, nil
}

const transactionColumns = `id, account_id, kind, amount, description, reference, balance_after, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (domain.Transaction, error) {
	var t domain.Transaction

	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.Kind,
		&t.Amount,
		&t.Description,
		&t.Reference,
		&t.BalanceAfter,
		&t.CreatedAt,
	)

	return t, err
}

const createTransactionQuery = `
INSERT INTO
    transactions (id, account_id, kind, amount, description, reference, balance_after)
VALUES
    ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + transactionColumns

func (r *RepoPGS) createTransaction(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createTransactionQuery,
		arg.ID,
		arg.AccountID,
		arg.Kind,
		arg.Amount,
		arg.Description,
		arg.Reference,
		arg.BalanceAfter,
	)

	t, err := scanTransaction(row)
	if err != nil {
		l.Error().Err(err).Msgf("createTransaction(ctx, %+v)", arg)
		return t, mapError(err)
	}

	return t, nil
}

const listTransactionsQuery = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE account_id = $1
  AND ($2::varchar = '' OR kind = $2::varchar)
  AND ($3::date IS NULL OR created_at >= ($3::date)::timestamp AT TIME ZONE 'UTC')
  AND ($4::date IS NULL OR created_at < ($4::date + 1)::timestamp AT TIME ZONE 'UTC')
ORDER BY created_at DESC, id DESC
LIMIT $5 OFFSET $6
`

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}

	return sql.NullString{String: t.UTC().Format(domain.DateLayout), Valid: true}
}

func nullLimit(limit int32) sql.NullInt32 {
	if limit <= 0 {
		return sql.NullInt32{}
	}

	return sql.NullInt32{Int32: limit, Valid: true}
}

// ListTransactions returns the account's transactions matching arg, newest first.
func (r *RepoPGS) ListTransactions(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listTransactionsQuery,
		arg.AccountID,
		string(arg.Kind),
		nullDate(arg.From),
		nullDate(arg.To),
		nullLimit(arg.Limit),
		arg.Offset,
	)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Transaction{}

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, t)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

const transferColumns = `id, from_account_id, to_account_id, amount, description, status, created_at, completed_at`

func scanTransfer(row interface{ Scan(...any) error }) (domain.MoneyTransfer, error) {
	var (
		t           domain.MoneyTransfer
		completedAt sql.NullTime
	)

	err := row.Scan(
		&t.ID,
		&t.FromAccountID,
		&t.ToAccountID,
		&t.Amount,
		&t.Description,
		&t.Status,
		&t.CreatedAt,
		&completedAt,
	)

	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}

	return t, err
}

const createTransferQuery = `
INSERT INTO
    transfers (id, from_account_id, to_account_id, amount, description, status, completed_at)
VALUES
    ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + transferColumns

func (r *RepoPGS) createTransfer(ctx context.Context, arg domain.CreateMoneyTransferParams) (domain.MoneyTransfer, error) {
	l := zerolog.Ctx(ctx)

	var completedAt sql.NullTime
	if arg.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *arg.CompletedAt, Valid: true}
	}

	row := r.db.QueryRowContext(ctx, createTransferQuery,
		arg.ID,
		arg.FromAccountID,
		arg.ToAccountID,
		arg.Amount,
		arg.Description,
		arg.Status,
		completedAt,
	)

	t, err := scanTransfer(row)
	if err != nil {
		l.Error().Err(err).Msgf("createTransfer(ctx, %+v)", arg)
		return t, mapError(err)
	}

	return t, nil
}

const listTransfersQuery = `
SELECT ` + transferColumns + `
FROM transfers
WHERE from_account_id IN (SELECT id FROM accounts WHERE owner = $1)
   OR to_account_id IN (SELECT id FROM accounts WHERE owner = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`

// ListTransfers returns transfers sent from or received by any account of the owner, newest first.
func (r *RepoPGS) ListTransfers(ctx context.Context, arg domain.ListTransfersParams) ([]domain.MoneyTransfer, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listTransfersQuery, arg.Owner, nullLimit(arg.Limit), arg.Offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.MoneyTransfer{}

	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, t)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

const statementColumns = `id, account_id, period_start, period_end, opening_balance, closing_balance,
	total_deposits, total_withdrawals, generated_at`

func scanStatement(row interface{ Scan(...any) error }) (domain.Statement, error) {
	var s domain.Statement

	err := row.Scan(
		&s.ID,
		&s.AccountID,
		&s.PeriodStart,
		&s.PeriodEnd,
		&s.OpeningBalance,
		&s.ClosingBalance,
		&s.TotalDeposits,
		&s.TotalWithdrawals,
		&s.GeneratedAt,
	)

	return s, err
}

const createStatementQuery = `
INSERT INTO statements (
    account_id,
    period_start,
    period_end,
    opening_balance,
    closing_balance,
    total_deposits,
    total_withdrawals
) VALUES (
    $1, $2::date, $3::date, $4, $5, $6, $7
) RETURNING ` + statementColumns

func (r *RepoPGS) createStatement(ctx context.Context, arg domain.CreateStatementParams) (domain.Statement, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createStatementQuery,
		arg.AccountID,
		arg.PeriodStart.Format(domain.DateLayout),
		arg.PeriodEnd.Format(domain.DateLayout),
		arg.OpeningBalance,
		arg.ClosingBalance,
		arg.TotalDeposits,
		arg.TotalWithdrawals,
	)

	s, err := scanStatement(row)
	if err != nil {
		l.Error().Err(err).Msgf("createStatement(ctx, %+v)", arg)
		return s, mapError(err)
	}

	return s, nil
}

const listStatementsQuery = `
SELECT ` + statementColumns + `
FROM statements
WHERE account_id = $1
ORDER BY generated_at DESC, id DESC
LIMIT $2 OFFSET $3
`

// ListStatements returns the account's statements, most recently generated first.
func (r *RepoPGS) ListStatements(ctx context.Context, accountID int64, limit, offset int32) ([]domain.Statement, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listStatementsQuery, accountID, nullLimit(limit), offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Statement{}

	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, s)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

// ledgerTxPGS is the LedgerTx handed to ExecTx callbacks.
type ledgerTxPGS struct {
	repo   *RepoPGS
	locked []int64
}

var errNotLocked = errors.New("account is not locked by this unit of work")

func (t *ledgerTxPGS) Account(ctx context.Context, id int64) (domain.Account, error) {
	return t.repo.GetAccount(ctx, id)
}

func (t *ledgerTxPGS) SetBalance(ctx context.Context, id int64, balance decimal.Decimal) (domain.Account, error) {
	if !contains(t.locked, id) {
		zerolog.Ctx(ctx).Error().Err(errNotLocked).Int64("account_id", id).Send()
		return domain.Account{}, errorspkg.ErrInternal
	}

	return t.repo.setBalance(ctx, id, balance)
}

func (t *ledgerTxPGS) CreateTransaction(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
	if !contains(t.locked, arg.AccountID) {
		zerolog.Ctx(ctx).Error().Err(errNotLocked).Int64("account_id", arg.AccountID).Send()
		return domain.Transaction{}, errorspkg.ErrInternal
	}

	return t.repo.createTransaction(ctx, arg)
}

func (t *ledgerTxPGS) CreateTransfer(ctx context.Context, arg domain.CreateMoneyTransferParams) (domain.MoneyTransfer, error) {
	return t.repo.createTransfer(ctx, arg)
}

func (t *ledgerTxPGS) ListTransactions(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error) {
	return t.repo.ListTransactions(ctx, arg)
}

func (t *ledgerTxPGS) CreateStatement(ctx context.Context, arg domain.CreateStatementParams) (domain.Statement, error) {
	return t.repo.createStatement(ctx, arg)
}
