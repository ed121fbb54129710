package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/refermate/refwallet/internal/apperrors"
	"github.com/refermate/refwallet/internal/models"
	"github.com/refermate/refwallet/internal/repository"
	"github.com/refermate/refwallet/internal/testutil"
)

func TestLedgerRepo(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage)) {
		testutil.InTx(outerTx, t, func(innerTx pgx.Tx) {
			storage := NewStorage(innerTx)
			fn(innerTx, storage)
		})
	}

	record := func(t *testing.T, storage repository.Storage, arg repository.RecordParams) models.Transaction {
		t.Helper()
		if arg.Kind == "" {
			arg.Kind = models.EntryKindPurchase
		}
		if arg.Status == "" {
			arg.Status = models.EntryStatusSuccess
		}
		txn, err := storage.Ledger().Record(t.Context(), arg)
		require.NoError(t, err)
		return txn
	}

	t.Run("Record", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user, err := storage.Users().CreateUser(t.Context(), "ledger-owner")
			require.NoError(t, err)
			wallet, err := storage.Wallets().GetOrCreate(t.Context(), user.ID)
			require.NoError(t, err)

			t.Run("movement without request id gets own transaction", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					first := record(t, storage, repository.RecordParams{
						WalletID: wallet.ID, UserID: user.ID, Amount: 100, BalanceAfter: 100,
					})
					second := record(t, storage, repository.RecordParams{
						WalletID: wallet.ID, UserID: user.ID, Amount: 50, BalanceAfter: 150,
					})

					require.NotEqual(t, first.ID, second.ID, "ad-hoc movements should not share a transaction")
					require.Len(t, first.History, 1)
					require.Equal(t, int64(100), first.History[0].Amount)
					require.Equal(t, models.EntryKindPurchase, first.History[0].Kind)
				})
			})

			t.Run("same request id appends to one history", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					requestID := uuid.New()

					first := record(t, storage, repository.RecordParams{
						WalletID: wallet.ID, UserID: user.ID, Kind: models.EntryKindBlock,
						Amount: 200, RequestID: &requestID,
					})
					second := record(t, storage, repository.RecordParams{
						WalletID: wallet.ID, UserID: user.ID, Kind: models.EntryKindSpend,
						Amount: 200, RequestID: &requestID,
					})

					require.Equal(t, first.ID, second.ID, "movements with one request id share the transaction")
					require.Len(t, second.History, 2)
					require.Equal(t, models.EntryKindBlock, second.History[0].Kind)
					require.Equal(t, models.EntryKindSpend, second.History[1].Kind)
				})
			})

			t.Run("meta merges with new keys overwriting", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					requestID := uuid.New()

					record(t, storage, repository.RecordParams{
						WalletID: wallet.ID, UserID: user.ID, Amount: 10,
						RequestID: &requestID,
						Meta:      map[string]string{"job_post": "a", "stage": "blocked"},
					})
					txn := record(t, storage, repository.RecordParams{
						WalletID: wallet.ID, UserID: user.ID, Amount: 10,
						RequestID: &requestID,
						Meta:      map[string]string{"stage": "spent"},
					})

					require.Equal(t, map[string]string{"job_post": "a", "stage": "spent"}, txn.Meta)
				})
			})

			t.Run("failed entries persist alongside successes", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					requestID := uuid.New()

					record(t, storage, repository.RecordParams{
						WalletID: wallet.ID, UserID: user.ID, Kind: models.EntryKindSpend,
						Amount: 999, RequestID: &requestID,
						Status: models.EntryStatusFailed, Error: "insufficient balance",
					})
					txn := record(t, storage, repository.RecordParams{
						WalletID: wallet.ID, UserID: user.ID, Kind: models.EntryKindSpend,
						Amount: 10, RequestID: &requestID,
					})

					require.Len(t, txn.History, 2)
					require.Equal(t, models.EntryStatusFailed, txn.History[0].Status)
					require.Equal(t, "insufficient balance", txn.History[0].Error)
					require.Equal(t, models.EntryStatusSuccess, txn.History[1].Status)
				})
			})

			t.Run("recent list tracks transactions and trims to cap", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					var lastTxn uuid.UUID
					for range models.RecentTxnsLimit + 20 {
						txn := record(t, storage, repository.RecordParams{
							WalletID: wallet.ID, UserID: user.ID, Amount: 1,
						})
						lastTxn = txn.ID
					}

					refreshed, err := storage.Wallets().GetByID(t.Context(), wallet.ID)
					require.NoError(t, err)
					require.Len(t, refreshed.RecentTxns, models.RecentTxnsLimit, "recent list should trim to the cap")
					require.Equal(t, lastTxn, refreshed.RecentTxns[len(refreshed.RecentTxns)-1], "newest transaction should be last")

					// Eviction is view-window only: all ledger rows survive
					count, err := storage.Ledger().CountTransactions(t.Context(), wallet.ID)
					require.NoError(t, err)
					require.Equal(t, int64(models.RecentTxnsLimit+20), count)
				})
			})

			t.Run("repeated movements on one transaction keep one recent slot", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					requestID := uuid.New()

					for range 3 {
						record(t, storage, repository.RecordParams{
							WalletID: wallet.ID, UserID: user.ID, Amount: 1, RequestID: &requestID,
						})
					}

					refreshed, err := storage.Wallets().GetByID(t.Context(), wallet.ID)
					require.NoError(t, err)
					require.Len(t, refreshed.RecentTxns, 3, "each movement pushes, even onto one transaction")
				})
			})
		})
	})

	t.Run("GetTransaction", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user, err := storage.Users().CreateUser(t.Context(), "ledger-owner")
			require.NoError(t, err)
			wallet, err := storage.Wallets().GetOrCreate(t.Context(), user.ID)
			require.NoError(t, err)

			t.Run("existing", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					created := record(t, storage, repository.RecordParams{
						WalletID: wallet.ID, UserID: user.ID, Amount: 42, BalanceAfter: 42,
					})

					txn, err := storage.Ledger().GetTransaction(t.Context(), created.ID)

					require.NoError(t, err)
					require.Equal(t, created.ID, txn.ID)
					require.Len(t, txn.History, 1)
					require.Equal(t, int64(42), txn.History[0].Amount)
				})
			})

			t.Run("missing", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Ledger().GetTransaction(t.Context(), uuid.New())

					require.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
				})
			})
		})
	})

	t.Run("ListTransactions", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user, err := storage.Users().CreateUser(t.Context(), "ledger-owner")
			require.NoError(t, err)
			wallet, err := storage.Wallets().GetOrCreate(t.Context(), user.ID)
			require.NoError(t, err)

			inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
				for range 5 {
					record(t, storage, repository.RecordParams{
						WalletID: wallet.ID, UserID: user.ID, Amount: 1,
					})
				}

				page, err := storage.Ledger().ListTransactions(t.Context(), wallet.ID, 3, 0)
				require.NoError(t, err)
				require.Len(t, page, 3)
				for _, txn := range page {
					require.Len(t, txn.History, 1, "entries should be loaded for every listed transaction")
				}

				rest, err := storage.Ledger().ListTransactions(t.Context(), wallet.ID, 3, 3)
				require.NoError(t, err)
				require.Len(t, rest, 2)

				count, err := storage.Ledger().CountTransactions(t.Context(), wallet.ID)
				require.NoError(t, err)
				require.Equal(t, int64(5), count)
			})
		})
	})

	t.Run("ResolveEntry", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user, err := storage.Users().CreateUser(t.Context(), "ledger-owner")
			require.NoError(t, err)
			wallet, err := storage.Wallets().GetOrCreate(t.Context(), user.ID)
			require.NoError(t, err)

			t.Run("pending resolves once", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					txn := record(t, storage, repository.RecordParams{
						WalletID: wallet.ID, UserID: user.ID, Kind: models.EntryKindWithdraw,
						Amount: 1500, Status: models.EntryStatusPending,
					})
					entryID := txn.History[0].ID

					err := storage.Ledger().ResolveEntry(t.Context(), entryID, models.EntryStatusSuccess, "Withdrawal approved", "")
					require.NoError(t, err)

					err = storage.Ledger().ResolveEntry(t.Context(), entryID, models.EntryStatusFailed, "Withdrawal rejected", "late")
					require.ErrorIs(t, err, apperrors.ErrNoPendingWithdrawal, "second resolve should lose the claim")

					resolved, err := storage.Ledger().GetTransaction(t.Context(), txn.ID)
					require.NoError(t, err)
					require.Equal(t, models.EntryStatusSuccess, resolved.History[0].Status)
					require.Equal(t, "Withdrawal approved", resolved.History[0].Description)
				})
			})

			t.Run("non-pending entry", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					txn := record(t, storage, repository.RecordParams{
						WalletID: wallet.ID, UserID: user.ID, Amount: 10,
					})

					err := storage.Ledger().ResolveEntry(t.Context(), txn.History[0].ID, models.EntryStatusFailed, "", "")

					require.ErrorIs(t, err, apperrors.ErrNoPendingWithdrawal)
				})
			})
		})
	})

	t.Run("ListWithdrawals", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			alice, err := storage.Users().CreateUser(t.Context(), "alice")
			require.NoError(t, err)
			bob, err := storage.Users().CreateUser(t.Context(), "bob")
			require.NoError(t, err)
			aliceWallet, err := storage.Wallets().GetOrCreate(t.Context(), alice.ID)
			require.NoError(t, err)
			bobWallet, err := storage.Wallets().GetOrCreate(t.Context(), bob.ID)
			require.NoError(t, err)

			inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
				record(t, storage, repository.RecordParams{
					WalletID: aliceWallet.ID, UserID: alice.ID, Kind: models.EntryKindWithdraw,
					Amount: 1500, Status: models.EntryStatusPending,
					Meta: map[string]string{"destination": "alice@upi"},
				})
				record(t, storage, repository.RecordParams{
					WalletID: bobWallet.ID, UserID: bob.ID, Kind: models.EntryKindWithdraw,
					Amount: 2000, Status: models.EntryStatusPending,
					Meta: map[string]string{"destination": "bob@upi"},
				})
				// A non-withdraw movement should never show up
				record(t, storage, repository.RecordParams{
					WalletID: aliceWallet.ID, UserID: alice.ID, Amount: 100,
				})

				all, err := storage.Ledger().ListWithdrawals(t.Context(), nil)
				require.NoError(t, err)
				require.Len(t, all, 2)

				mine, err := storage.Ledger().ListWithdrawals(t.Context(), &alice.ID)
				require.NoError(t, err)
				require.Len(t, mine, 1)
				require.Equal(t, alice.ID, mine[0].UserID)
				require.Equal(t, int64(1500), mine[0].Amount)
				require.Equal(t, "alice@upi", mine[0].Destination)
				require.Equal(t, models.EntryStatusPending, mine[0].Status)
			})
		})
	})
}
