package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/refermate/refwallet/internal/apperrors"
	"github.com/refermate/refwallet/internal/models"
	"github.com/refermate/refwallet/internal/repository"
)

type LedgerRepo struct {
	DB DBTX
}

// Create a transaction for the movement, or reuse the existing one when the
// (user, request id) pair is already known. The partial unique index on
// (user_id, request_id) makes the insert race-safe.
const upsertTransaction = `-- name: UpsertTransaction
WITH insert_txn AS (
	INSERT INTO ledger_transactions (id, wallet_id, user_id, request_id, meta)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, request_id) WHERE request_id IS NOT NULL DO NOTHING
	RETURNING id, wallet_id, user_id, request_id, meta, created_at
)
SELECT * FROM insert_txn
UNION
SELECT id, wallet_id, user_id, request_id, meta, created_at FROM ledger_transactions
WHERE user_id = $3 AND request_id = $4 AND $4 IS NOT NULL
`

const mergeTransactionMeta = `-- name: MergeTransactionMeta
UPDATE ledger_transactions
SET meta = meta || $2
WHERE id = $1
RETURNING meta
`

const insertEntry = `-- name: InsertEntry
INSERT INTO ledger_entries (transaction_id, kind, amount, description, balance_after, status, error)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, kind, amount, description, balance_after, status, error, created_at
`

// Push the transaction onto the wallet's recent list and trim the front so at
// most models.RecentTxnsLimit ids remain. View-window eviction only: the
// ledger rows themselves stay untouched.
const pushRecentTxn = `-- name: PushRecentTxn
UPDATE wallets
SET recent_txns = (array_append(recent_txns, $2))[GREATEST(cardinality(recent_txns) + 2 - $3::int, 1):]
WHERE id = $1
`

func (r *LedgerRepo) Record(ctx context.Context, arg repository.RecordParams) (models.Transaction, error) {
	var txn models.Transaction

	meta := arg.Meta
	if meta == nil {
		meta = map[string]string{}
	}

	rows, _ := r.DB.Query(ctx, upsertTransaction, uuid.New(), arg.WalletID, arg.UserID, arg.RequestID, meta)
	txn, err := pgx.CollectOneRow(rows, rowToTransaction)
	if err != nil {
		return txn, fmt.Errorf("db error: %w", err)
	}

	// Shallow merge: new keys overwrite. Skipped when the transaction was just
	// created since the insert already carried the metadata.
	if len(arg.Meta) > 0 {
		err = r.DB.QueryRow(ctx, mergeTransactionMeta, txn.ID, arg.Meta).Scan(&txn.Meta)
		if err != nil {
			return txn, fmt.Errorf("db error: %w", err)
		}
	}

	entryRows, _ := r.DB.Query(ctx, insertEntry,
		txn.ID, arg.Kind, arg.Amount, arg.Description, arg.BalanceAfter, arg.Status, arg.Error,
	)
	if _, err := pgx.CollectOneRow(entryRows, rowToEntry); err != nil {
		return txn, fmt.Errorf("db error: %w", err)
	}

	_, err = r.DB.Exec(ctx, pushRecentTxn, arg.WalletID, txn.ID, models.RecentTxnsLimit)
	if err != nil {
		return txn, fmt.Errorf("db error: %w", err)
	}

	txn.History, err = r.listEntries(ctx, txn.ID)
	return txn, err
}

const getTransaction = `-- name: GetTransaction
SELECT id, wallet_id, user_id, request_id, meta, created_at FROM ledger_transactions
WHERE id = $1
`

func (r *LedgerRepo) GetTransaction(ctx context.Context, txID uuid.UUID) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, getTransaction, txID)
	txn, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		return txn, apperrors.ErrTransactionNotFound
	default:
		return txn, fmt.Errorf("db error: %w", err)
	}

	txn.History, err = r.listEntries(ctx, txn.ID)
	return txn, err
}

const listTransactions = `-- name: ListTransactions
SELECT id, wallet_id, user_id, request_id, meta, created_at FROM ledger_transactions
WHERE wallet_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3
`

func (r *LedgerRepo) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int, offset int) ([]models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, listTransactions, walletID, limit, offset)
	txns, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(txns) == 0 {
		return txns, nil
	}

	ids := make([]uuid.UUID, 0, len(txns))
	byID := make(map[uuid.UUID]int, len(txns))
	for i, txn := range txns {
		ids = append(ids, txn.ID)
		byID[txn.ID] = i
	}

	const listEntriesBatch = `
	SELECT transaction_id, id, kind, amount, description, balance_after, status, error, created_at
	FROM ledger_entries
	WHERE transaction_id = ANY($1)
	ORDER BY id
	`

	entryRows, _ := r.DB.Query(ctx, listEntriesBatch, ids)
	var txnID uuid.UUID
	var e models.Entry
	_, err = pgx.ForEachRow(entryRows, []any{&txnID, &e.ID, &e.Kind, &e.Amount, &e.Description, &e.BalanceAfter, &e.Status, &e.Error, &e.Timestamp}, func() error {
		i := byID[txnID]
		txns[i].History = append(txns[i].History, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return txns, nil
}

const countTransactions = `-- name: CountTransactions
SELECT count(*) FROM ledger_transactions
WHERE wallet_id = $1
`

func (r *LedgerRepo) CountTransactions(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB.QueryRow(ctx, countTransactions, walletID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

const listEntriesForTxn = `-- name: ListEntriesForTxn
SELECT id, kind, amount, description, balance_after, status, error, created_at
FROM ledger_entries
WHERE transaction_id = $1
ORDER BY id
`

func (r *LedgerRepo) listEntries(ctx context.Context, txID uuid.UUID) ([]models.Entry, error) {
	rows, _ := r.DB.Query(ctx, listEntriesForTxn, txID)
	entries, err := pgx.CollectRows(rows, rowToEntry)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entries, nil
}

// Resolve is conditional on the entry still being pending, so concurrent
// approve/reject calls cannot both settle the same withdrawal
const resolveEntry = `-- name: ResolveEntry
UPDATE ledger_entries
SET status = $2, description = $3, error = $4
WHERE id = $1 AND status = 'pending'
RETURNING id
`

func (r *LedgerRepo) ResolveEntry(ctx context.Context, entryID int64, status string, description string, errText string) error {
	var id int64
	err := r.DB.QueryRow(ctx, resolveEntry, entryID, status, description, errText).Scan(&id)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrNoPendingWithdrawal
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

const listWithdrawals = `-- name: ListWithdrawals
SELECT t.id, e.id, t.user_id, e.amount, COALESCE(t.meta->>'destination', ''), e.status, e.description, e.error, e.created_at
FROM ledger_entries e
JOIN ledger_transactions t ON t.id = e.transaction_id
WHERE e.kind = 'withdraw' AND ($1::uuid IS NULL OR t.user_id = $1)
ORDER BY e.created_at DESC, e.id DESC
`

func (r *LedgerRepo) ListWithdrawals(ctx context.Context, userID *uuid.UUID) ([]repository.Withdrawal, error) {
	rows, _ := r.DB.Query(ctx, listWithdrawals, userID)
	withdrawals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.Withdrawal, error) {
		var w repository.Withdrawal
		err := row.Scan(&w.TransactionID, &w.EntryID, &w.UserID, &w.Amount, &w.Destination, &w.Status, &w.Description, &w.Error, &w.Timestamp)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return withdrawals, nil
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.WalletID, &t.UserID, &t.RequestID, &t.Meta, &t.CreatedAt)
	return t, err
}

func rowToEntry(row pgx.CollectableRow) (models.Entry, error) {
	var e models.Entry
	err := row.Scan(&e.ID, &e.Kind, &e.Amount, &e.Description, &e.BalanceAfter, &e.Status, &e.Error, &e.Timestamp)
	return e, err
}
