package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/refermate/refwallet/internal/apperrors"
	"github.com/refermate/refwallet/internal/models"
)

type WalletRepo struct {
	DB DBTX
}

// Create wallet with zero balances unless the user already has one,
// return the existing wallet otherwise
const getOrCreateWallet = `-- name: GetOrCreateWallet
WITH insert_wallet AS (
	INSERT INTO wallets (user_id)
	VALUES ($1)
	ON CONFLICT (user_id) DO NOTHING
	RETURNING id, user_id, coins, blocked_coins, recent_txns, created_at
)
SELECT * FROM insert_wallet
UNION
SELECT id, user_id, coins, blocked_coins, recent_txns, created_at FROM wallets WHERE user_id = $1
`

func (r *WalletRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, getOrCreateWallet, userID)
	w, err := pgx.CollectOneRow(rows, rowToWallet)
	if err != nil {
		return w, fmt.Errorf("db error: %w", err)
	}

	return w, nil
}

const getWalletByUserID = `-- name: GetWalletByUserID
SELECT id, user_id, coins, blocked_coins, recent_txns, created_at FROM wallets
WHERE user_id = $1
`

func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, getWalletByUserID, userID)
	return collectWallet(rows)
}

const getWalletByID = `-- name: GetWalletByID
SELECT id, user_id, coins, blocked_coins, recent_txns, created_at FROM wallets
WHERE id = $1
`

func (r *WalletRepo) GetByID(ctx context.Context, walletID uuid.UUID) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, getWalletByID, walletID)
	return collectWallet(rows)
}

// Apply both deltas only when neither balance would go negative.
// The guard and the write are one statement, so two racing movements can
// never both pass the balance check and overdraw the wallet.
const updateWalletBalance = `-- name: UpdateWalletBalance
UPDATE wallets
SET coins = coins + $2, blocked_coins = blocked_coins + $3
WHERE id = $1 AND coins + $2 >= 0 AND blocked_coins + $3 >= 0
RETURNING id, user_id, coins, blocked_coins, recent_txns, created_at
`

func (r *WalletRepo) UpdateBalance(ctx context.Context, walletID uuid.UUID, coinsDelta int64, blockedDelta int64) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, updateWalletBalance, walletID, coinsDelta, blockedDelta)
	w, err := pgx.CollectOneRow(rows, rowToWallet)

	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return w, fmt.Errorf("db error: %w", err)
	}

	// No row matched: either the wallet is missing or a guard rejected the
	// deltas. Tell which by reading the wallet back.
	if _, getErr := r.GetByID(ctx, walletID); getErr != nil {
		return w, getErr
	}

	switch {
	case coinsDelta < 0:
		return w, apperrors.ErrInsufficientBalance
	case blockedDelta < 0:
		return w, apperrors.ErrInsufficientBlockedBalance
	default:
		return w, fmt.Errorf("balance update rejected: %w", err)
	}
}

func collectWallet(rows pgx.Rows) (models.Wallet, error) {
	w, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return w, nil
	case errors.Is(err, pgx.ErrNoRows):
		return w, apperrors.ErrWalletNotFound
	default:
		return w, fmt.Errorf("db error: %w", err)
	}
}

func rowToWallet(row pgx.CollectableRow) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Coins, &w.BlockedCoins, &w.RecentTxns, &w.CreatedAt)
	return w, err
}
