package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/refermate/refwallet/internal/apperrors"
	"github.com/refermate/refwallet/internal/repository"
	"github.com/refermate/refwallet/internal/testutil"
)

func TestWalletRepo(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage)) {
		testutil.InTx(outerTx, t, func(innerTx pgx.Tx) {
			storage := NewStorage(innerTx)
			fn(innerTx, storage)
		})
	}

	t.Run("GetOrCreate", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user, err := storage.Users().CreateUser(t.Context(), "wallet-owner")
			require.NoError(t, err)

			t.Run("creates empty wallet on first access", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					wallet, err := storage.Wallets().GetOrCreate(t.Context(), user.ID)

					require.NoError(t, err)
					require.NotZero(t, wallet.ID)
					require.Equal(t, user.ID, wallet.UserID)
					require.Zero(t, wallet.Coins)
					require.Zero(t, wallet.BlockedCoins)
					require.Empty(t, wallet.RecentTxns)
				})
			})

			t.Run("idempotent on repeat", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					first, err := storage.Wallets().GetOrCreate(t.Context(), user.ID)
					require.NoError(t, err)

					second, err := storage.Wallets().GetOrCreate(t.Context(), user.ID)

					require.NoError(t, err)
					require.Equal(t, first.ID, second.ID, "same wallet should be returned on repeat")
				})
			})

			t.Run("unknown user fails", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Wallets().GetOrCreate(t.Context(), uuid.New())

					require.Error(t, err, "wallet requires an existing user")
				})
			})
		})
	})

	t.Run("GetByUserID", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user, err := storage.Users().CreateUser(t.Context(), "wallet-owner")
			require.NoError(t, err)

			t.Run("existing wallet", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					created, err := storage.Wallets().GetOrCreate(t.Context(), user.ID)
					require.NoError(t, err)

					wallet, err := storage.Wallets().GetByUserID(t.Context(), user.ID)

					require.NoError(t, err)
					require.Equal(t, created.ID, wallet.ID)
				})
			})

			t.Run("missing wallet", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Wallets().GetByUserID(t.Context(), user.ID)

					require.ErrorIs(t, err, apperrors.ErrWalletNotFound)
				})
			})
		})
	})

	t.Run("UpdateBalance", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user, err := storage.Users().CreateUser(t.Context(), "wallet-owner")
			require.NoError(t, err)
			wallet, err := storage.Wallets().GetOrCreate(t.Context(), user.ID)
			require.NoError(t, err)

			t.Run("credit", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					updated, err := storage.Wallets().UpdateBalance(t.Context(), wallet.ID, 500, 0)

					require.NoError(t, err)
					require.Equal(t, int64(500), updated.Coins)
					require.Zero(t, updated.BlockedCoins)
				})
			})

			t.Run("move coins to blocked and back", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Wallets().UpdateBalance(t.Context(), wallet.ID, 500, 0)
					require.NoError(t, err)

					blocked, err := storage.Wallets().UpdateBalance(t.Context(), wallet.ID, -200, 200)
					require.NoError(t, err)
					require.Equal(t, int64(300), blocked.Coins)
					require.Equal(t, int64(200), blocked.BlockedCoins)

					refunded, err := storage.Wallets().UpdateBalance(t.Context(), wallet.ID, 200, -200)
					require.NoError(t, err)
					require.Equal(t, int64(500), refunded.Coins)
					require.Zero(t, refunded.BlockedCoins)
				})
			})

			t.Run("overdraw spendable", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Wallets().UpdateBalance(t.Context(), wallet.ID, 100, 0)
					require.NoError(t, err)

					_, err = storage.Wallets().UpdateBalance(t.Context(), wallet.ID, -101, 0)

					require.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

					// Balance untouched by the rejected update
					after, err := storage.Wallets().GetByID(t.Context(), wallet.ID)
					require.NoError(t, err)
					require.Equal(t, int64(100), after.Coins)
				})
			})

			t.Run("overdraw blocked", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Wallets().UpdateBalance(t.Context(), wallet.ID, 100, 50)
					require.NoError(t, err)

					_, err = storage.Wallets().UpdateBalance(t.Context(), wallet.ID, 0, -51)

					require.ErrorIs(t, err, apperrors.ErrInsufficientBlockedBalance)
				})
			})

			t.Run("unknown wallet", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Wallets().UpdateBalance(t.Context(), uuid.New(), 100, 0)

					require.ErrorIs(t, err, apperrors.ErrWalletNotFound)
				})
			})
		})
	})
}
