package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/refermate/refwallet/internal/apperrors"
	"github.com/refermate/refwallet/internal/logger"
	"github.com/refermate/refwallet/internal/models"
	"github.com/refermate/refwallet/internal/repository"
)

const defaultMinWithdrawal = 1000

type Config struct {
	// Minimum amount accepted by RequestWithdrawal
	// If not set than default is used
	MinWithdrawal int64
}

// Service owns every coin movement. Each movement updates the wallet balance
// and appends its ledger entry inside one database transaction, and the
// balance update itself is guarded, so balances can never go negative no
// matter how calls interleave.
type Service struct {
	minWithdrawal int64

	storage repository.Storage
	logger  logger.Logger
}

func NewService(cfg Config, storage repository.Storage, l logger.Logger) *Service {
	if cfg.MinWithdrawal == 0 {
		cfg.MinWithdrawal = defaultMinWithdrawal
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		minWithdrawal: cfg.MinWithdrawal,
		storage:       storage,
		logger:        l,
	}
}

// GetWallet returns the user's wallet, lazily creating it on first access
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	return s.storage.Wallets().GetOrCreate(ctx, userID)
}

// AddCoins credits purchased coins. Called when an external payment signal
// confirms the amount; the wallet is created if the user never had one.
func (s *Service) AddCoins(ctx context.Context, userID uuid.UUID, amount int64, description string) (models.Wallet, error) {
	return s.move(ctx, movement{
		userID:      userID,
		kind:        models.EntryKindPurchase,
		amount:      amount,
		description: description,
		coinsDelta:  amount,
		autoCreate:  true,
	})
}

// RewardCoins credits an arbitrary target user, including the reserved
// platform account. Used to realize revenue-split payouts.
func (s *Service) RewardCoins(ctx context.Context, userID uuid.UUID, amount int64, description string, requestID *uuid.UUID) (models.Wallet, error) {
	return s.move(ctx, movement{
		userID:      userID,
		kind:        models.EntryKindReward,
		amount:      amount,
		description: description,
		requestID:   requestID,
		coinsDelta:  amount,
		autoCreate:  true,
	})
}

// BlockCoins escrows available coins for a pending engagement
func (s *Service) BlockCoins(ctx context.Context, userID uuid.UUID, amount int64, description string, requestID *uuid.UUID) (models.Wallet, error) {
	return s.move(ctx, movement{
		userID:       userID,
		kind:         models.EntryKindBlock,
		amount:       amount,
		description:  description,
		requestID:    requestID,
		coinsDelta:   -amount,
		blockedDelta: amount,
	})
}

// SpendBlockedCoins releases escrowed coins to the counterparty. The coins
// leave this wallet; the recipient side is a separate reward credit.
func (s *Service) SpendBlockedCoins(ctx context.Context, userID uuid.UUID, amount int64, description string, requestID *uuid.UUID) (models.Wallet, error) {
	return s.move(ctx, movement{
		userID:       userID,
		kind:         models.EntryKindSpend,
		amount:       amount,
		description:  description,
		requestID:    requestID,
		blockedDelta: -amount,
	})
}

// RefundBlockedCoins releases escrowed coins back to the owner
func (s *Service) RefundBlockedCoins(ctx context.Context, userID uuid.UUID, amount int64, description string, requestID *uuid.UUID) (models.Wallet, error) {
	return s.move(ctx, movement{
		userID:       userID,
		kind:         models.EntryKindRefund,
		amount:       amount,
		description:  description,
		requestID:    requestID,
		coinsDelta:   amount,
		blockedDelta: -amount,
	})
}

type History struct {
	Transactions []models.Transaction
	Page         int
	PageSize     int
	TotalPages   int
	TotalCount   int64
}

const defaultPageSize = 20

// GetTransactionHistory returns a recent-first page of the user's ledger
func (s *Service) GetTransactionHistory(ctx context.Context, userID uuid.UUID, page int, pageSize int) (History, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	h := History{Page: page, PageSize: pageSize}

	wallet, err := s.storage.Wallets().GetByUserID(ctx, userID)
	if err != nil {
		return h, err
	}

	h.Transactions, err = s.storage.Ledger().ListTransactions(ctx, wallet.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return h, err
	}

	h.TotalCount, err = s.storage.Ledger().CountTransactions(ctx, wallet.ID)
	if err != nil {
		return h, err
	}
	h.TotalPages = int((h.TotalCount + int64(pageSize) - 1) / int64(pageSize))

	return h, nil
}

type movement struct {
	userID      uuid.UUID
	kind        string
	amount      int64
	description string
	requestID   *uuid.UUID
	meta        map[string]string

	coinsDelta   int64
	blockedDelta int64

	// Credit-type movements create the wallet lazily; debit-type ones
	// require it to exist
	autoCreate bool

	// Entry status for the success path, pending for withdrawal requests
	status string
}

// move is the shared movement template: validate, mutate and record in one
// database transaction, log a failed entry on a best-effort basis otherwise
func (s *Service) move(ctx context.Context, m movement) (models.Wallet, error) {
	if m.amount <= 0 {
		// No wallet was touched, nothing to attach a ledger entry to
		return models.Wallet{}, apperrors.ErrInvalidAmount
	}
	if m.status == "" {
		m.status = models.EntryStatusSuccess
	}

	var wallet models.Wallet
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error

		if m.autoCreate {
			wallet, err = st.Wallets().GetOrCreate(ctx, m.userID)
		} else {
			wallet, err = st.Wallets().GetByUserID(ctx, m.userID)
		}
		if err != nil {
			return err
		}

		wallet, err = st.Wallets().UpdateBalance(ctx, wallet.ID, m.coinsDelta, m.blockedDelta)
		if err != nil {
			return err
		}

		_, err = st.Ledger().Record(ctx, repository.RecordParams{
			WalletID:     wallet.ID,
			UserID:       m.userID,
			Kind:         m.kind,
			Amount:       m.amount,
			Description:  m.description,
			BalanceAfter: wallet.Coins,
			Status:       m.status,
			RequestID:    m.requestID,
			Meta:         m.meta,
		})
		if err != nil {
			return fmt.Errorf("can't record ledger entry: %w", err)
		}

		return nil
	})

	if err != nil {
		s.recordFailed(ctx, m, err)
		return models.Wallet{}, err
	}

	return wallet, nil
}

// recordFailed keeps rejected movements auditable. Best effort: a secondary
// failure to log is itself only logged, never returned over the original error.
func (s *Service) recordFailed(ctx context.Context, m movement, cause error) {
	wallet, err := s.storage.Wallets().GetByUserID(ctx, m.userID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrWalletNotFound) {
			s.logger.Error("Failed to log failed movement", "kind", m.kind, "user_id", m.userID, "error", err)
		}
		return
	}

	_, err = s.storage.Ledger().Record(ctx, repository.RecordParams{
		WalletID:     wallet.ID,
		UserID:       m.userID,
		Kind:         m.kind,
		Amount:       m.amount,
		Description:  m.description,
		BalanceAfter: wallet.Coins,
		Status:       models.EntryStatusFailed,
		Error:        cause.Error(),
		RequestID:    m.requestID,
		Meta:         m.meta,
	})
	if err != nil {
		s.logger.Error("Failed to log failed movement", "kind", m.kind, "user_id", m.userID, "error", err)
	}
}
