package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/refermate/refwallet/internal/apperrors"
	"github.com/refermate/refwallet/internal/models"
	"github.com/refermate/refwallet/internal/repository"
)

const (
	WithdrawalActionApprove = "approve"
	WithdrawalActionReject  = "reject"
)

// RequestWithdrawal blocks the amount and records a pending withdraw entry.
// The returned transaction id is what an admin later approves or rejects.
func (s *Service) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount int64, destination string) (uuid.UUID, error) {
	if amount <= 0 {
		return uuid.Nil, apperrors.ErrInvalidAmount
	}
	if amount < s.minWithdrawal {
		return uuid.Nil, fmt.Errorf("%w: minimum is %d coins", apperrors.ErrWithdrawalBelowLimit, s.minWithdrawal)
	}

	var txnID uuid.UUID
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		wallet, err := st.Wallets().GetByUserID(ctx, userID)
		if err != nil {
			return err
		}

		wallet, err = st.Wallets().UpdateBalance(ctx, wallet.ID, -amount, amount)
		if err != nil {
			return err
		}

		txn, err := st.Ledger().Record(ctx, repository.RecordParams{
			WalletID:     wallet.ID,
			UserID:       userID,
			Kind:         models.EntryKindWithdraw,
			Amount:       amount,
			Description:  fmt.Sprintf("Withdrawal request to %s", destination),
			BalanceAfter: wallet.Coins,
			Status:       models.EntryStatusPending,
			Meta:         map[string]string{"destination": destination},
		})
		if err != nil {
			return fmt.Errorf("can't record ledger entry: %w", err)
		}

		txnID = txn.ID
		return nil
	})

	if err != nil {
		s.recordFailed(ctx, movement{
			userID:      userID,
			kind:        models.EntryKindWithdraw,
			amount:      amount,
			description: fmt.Sprintf("Withdrawal request to %s", destination),
			meta:        map[string]string{"destination": destination},
		}, err)
		return uuid.Nil, err
	}

	return txnID, nil
}

// ProcessWithdrawal settles the single pending withdraw entry of a transaction.
// Approve pays the blocked coins out; reject returns them to the available
// balance and appends a refund entry for audit symmetry.
func (s *Service) ProcessWithdrawal(ctx context.Context, txnID uuid.UUID, action string, reason string) (models.Wallet, error) {
	if action != WithdrawalActionApprove && action != WithdrawalActionReject {
		return models.Wallet{}, fmt.Errorf("invalid action %q: use approve or reject", action)
	}

	var wallet models.Wallet
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		txn, err := st.Ledger().GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}

		entry, err := pendingWithdrawEntry(txn)
		if err != nil {
			return err
		}

		// At most one pending withdraw entry exists per transaction; resolving
		// it first claims the withdrawal, so a concurrent settle of the same
		// transaction aborts here and rolls back
		switch action {
		case WithdrawalActionApprove:
			err = st.Ledger().ResolveEntry(ctx, entry.ID,
				models.EntryStatusSuccess,
				fmt.Sprintf("Withdrawal of %d coins approved and paid", entry.Amount),
				"",
			)
			if err != nil {
				return err
			}

			wallet, err = st.Wallets().UpdateBalance(ctx, txn.WalletID, 0, -entry.Amount)
			return err

		case WithdrawalActionReject:
			if reason == "" {
				reason = "Rejected by admin"
			}

			err = st.Ledger().ResolveEntry(ctx, entry.ID,
				models.EntryStatusFailed,
				fmt.Sprintf("Withdrawal of %d coins rejected and refunded", entry.Amount),
				reason,
			)
			if err != nil {
				return err
			}

			wallet, err = st.Wallets().UpdateBalance(ctx, txn.WalletID, entry.Amount, -entry.Amount)
			if err != nil {
				return err
			}

			_, err = st.Ledger().Record(ctx, repository.RecordParams{
				WalletID:     wallet.ID,
				UserID:       txn.UserID,
				Kind:         models.EntryKindRefund,
				Amount:       entry.Amount,
				Description:  "Refund due to rejected withdrawal",
				BalanceAfter: wallet.Coins,
				Status:       models.EntryStatusSuccess,
			})
			return err
		}

		return nil
	})

	if err != nil {
		return models.Wallet{}, err
	}

	return wallet, nil
}

// ListWithdrawals returns withdraw entries newest first.
// Nil userID lists all users (admin view).
func (s *Service) ListWithdrawals(ctx context.Context, userID *uuid.UUID) ([]repository.Withdrawal, error) {
	return s.storage.Ledger().ListWithdrawals(ctx, userID)
}

func pendingWithdrawEntry(txn models.Transaction) (models.Entry, error) {
	for _, entry := range txn.History {
		if entry.Kind == models.EntryKindWithdraw && entry.Status == models.EntryStatusPending {
			return entry, nil
		}
	}
	return models.Entry{}, apperrors.ErrNoPendingWithdrawal
}
