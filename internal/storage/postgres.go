package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/airtimebot/internal/errs"
	"github.com/and161185/airtimebot/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStorage struct {
	db *pgxpool.Pool
}

func (store *PostgresStorage) initSchema(ctx context.Context) error {
	const initSchemaQuery = `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		referred_by TEXT NOT NULL DEFAULT '',
		referrals TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMP DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS withdrawals (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		amount BIGINT NOT NULL,
		phone TEXT NOT NULL,
		network TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT NOW()
	);`

	_, err := store.db.Exec(ctx, initSchemaQuery)
	return err
}

func NewPostgresStorage(ctx context.Context, databaseURI string) (*PostgresStorage, error) {
	db, err := pgxpool.New(ctx, databaseURI)
	if err != nil {
		return nil, err
	}

	storage := &PostgresStorage{db: db}

	if err := storage.Ping(ctx); err != nil {
		return nil, err
	}

	if err := storage.initSchema(ctx); err != nil {
		return nil, err
	}

	return storage, nil
}

func (store *PostgresStorage) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

func (s *PostgresStorage) Get(ctx context.Context, id string) (model.Account, error) {
	const accountQuery = `
		SELECT id, display_name, balance, referred_by, referrals, created_at
		FROM accounts
		WHERE id = $1`

	const withdrawalsQuery = `
		SELECT id, account_id, amount, phone, network, status, created_at
		FROM withdrawals
		WHERE account_id = $1
		ORDER BY created_at ASC`

	var acc model.Account

	err := s.db.QueryRow(ctx, accountQuery, id).Scan(
		&acc.ID, &acc.DisplayName, &acc.Balance, &acc.ReferredBy, &acc.Referrals, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, errs.ErrAccountNotFound
		}
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}

	rows, err := s.db.Query(ctx, withdrawalsQuery, id)
	if err != nil {
		return model.Account{}, fmt.Errorf("get account withdrawals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var w model.Withdrawal
		err := rows.Scan(&w.ID, &w.AccountID, &w.Amount, &w.Phone, &w.Network, &w.Status, &w.CreatedAt)
		if err != nil {
			return model.Account{}, fmt.Errorf("scan withdrawal: %w", err)
		}
		acc.Withdrawals = append(acc.Withdrawals, w)
	}

	if err := rows.Err(); err != nil {
		return model.Account{}, fmt.Errorf("row iteration: %w", err)
	}

	return acc, nil
}

func (s *PostgresStorage) Create(ctx context.Context, acc model.Account) error {
	const insertAccountQuery = `
		INSERT INTO accounts (id, display_name, balance, referred_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.Exec(ctx, insertAccountQuery,
		acc.ID, acc.DisplayName, acc.Balance, acc.ReferredBy, acc.CreatedAt)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			// 23505 — unique constraint violated
			return errs.ErrAlreadyRegistered
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// CreditReferral adds the bonus to the referrer and records the referee id.
// A referee already present in referrals makes this a no-op, so a retried
// registration event never credits twice.
func (s *PostgresStorage) CreditReferral(ctx context.Context, referrerID, refereeID string, amount int64) error {
	const creditQuery = `
		UPDATE accounts
		SET balance = balance + $3, referrals = array_append(referrals, $2)
		WHERE id = $1 AND NOT ($2 = ANY(referrals))`

	const existsQuery = `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`

	cmdTag, err := s.db.Exec(ctx, creditQuery, referrerID, refereeID, amount)
	if err != nil {
		return fmt.Errorf("credit referral: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx, existsQuery, referrerID).Scan(&exists); err != nil {
			return fmt.Errorf("check referrer: %w", err)
		}
		if !exists {
			return errs.ErrAccountNotFound
		}
		// already credited for this referee
	}

	return nil
}

// CommitWithdrawal debits the balance and appends the request in one
// transaction. The debit is conditional on the balance the caller read;
// a concurrent mutation surfaces as ErrBalanceConflict and the caller
// re-reads and retries.
func (s *PostgresStorage) CommitWithdrawal(ctx context.Context, accountID string, expectedBalance int64, w model.Withdrawal) error {
	const debitQuery = `
		UPDATE accounts
		SET balance = balance - $2
		WHERE id = $1 AND balance = $3`

	const existsQuery = `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`

	const insertWithdrawalQuery = `
		INSERT INTO withdrawals (id, account_id, amount, phone, network, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if expectedBalance < w.Amount {
		return errs.ErrInsufficientFunds
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx, debitQuery, accountID, w.Amount, expectedBalance)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, existsQuery, accountID).Scan(&exists); err != nil {
			return fmt.Errorf("check account: %w", err)
		}
		if !exists {
			return errs.ErrAccountNotFound
		}
		return errs.ErrBalanceConflict
	}

	_, err = tx.Exec(ctx, insertWithdrawalQuery,
		w.ID, w.AccountID, w.Amount, w.Phone, w.Network, w.Status, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *PostgresStorage) PendingWithdrawals(ctx context.Context) ([]model.Withdrawal, error) {
	const query = `
		SELECT id, account_id, amount, phone, network, status, created_at
		FROM withdrawals
		WHERE status = 'pending'
		ORDER BY created_at ASC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get pending withdrawals: %w", err)
	}
	defer rows.Close()

	var list []model.Withdrawal
	for rows.Next() {
		var w model.Withdrawal
		err := rows.Scan(&w.ID, &w.AccountID, &w.Amount, &w.Phone, &w.Network, &w.Status, &w.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		list = append(list, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return list, nil
}

// MarkWithdrawalPaid transitions pending -> paid. Requests in any other
// state are left untouched, settlement states written by external tooling
// are never overwritten.
func (s *PostgresStorage) MarkWithdrawalPaid(ctx context.Context, id string) (model.Withdrawal, error) {
	const query = `
		UPDATE withdrawals
		SET status = 'paid'
		WHERE id = $1 AND status = 'pending'
		RETURNING id, account_id, amount, phone, network, status, created_at`

	const statusQuery = `SELECT status FROM withdrawals WHERE id = $1`

	var w model.Withdrawal
	err := s.db.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.AccountID, &w.Amount, &w.Phone, &w.Network, &w.Status, &w.CreatedAt)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Withdrawal{}, fmt.Errorf("mark withdrawal paid: %w", err)
	}

	var status string
	err = s.db.QueryRow(ctx, statusQuery, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Withdrawal{}, errs.ErrWithdrawalNotFound
		}
		return model.Withdrawal{}, fmt.Errorf("check withdrawal: %w", err)
	}

	return model.Withdrawal{}, errs.ErrWithdrawalNotPending
}
