package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/refermate/refwallet/internal/models"
)

// Storage aggregates all repositories bound to one database handle.
// InTx runs fn with a Storage bound to a single transaction, so a wallet
// balance change and its ledger entry commit or roll back together.
type Storage interface {
	Users() UserRepo
	Wallets() WalletRepo
	Ledger() LedgerRepo
	Applicants() ApplicantRepo

	InTx(ctx context.Context, fn func(Storage) error) error
}

type UserRepo interface {
	// Create user
	// If user with username exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string) (models.User, error)

	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)

	// Referral counters, bumped when an engagement settles
	IncReferralsReceived(ctx context.Context, userID uuid.UUID) error
	IncReferralsGiven(ctx context.Context, userID uuid.UUID) error
}

type WalletRepo interface {
	// Return the user's wallet, creating a zero-balance one on first access.
	// Idempotent: repeated calls with no intervening mutation return the same wallet.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (models.Wallet, error)

	// If wallet not found must return apperrors.ErrWalletNotFound
	GetByUserID(ctx context.Context, userID uuid.UUID) (models.Wallet, error)
	GetByID(ctx context.Context, walletID uuid.UUID) (models.Wallet, error)

	// Apply balance deltas in one conditional update. The update matches only
	// when both resulting balances stay non-negative, so a concurrent writer
	// can never overdraw the wallet between check and write.
	// Returns apperrors.ErrInsufficientBalance / ErrInsufficientBlockedBalance
	// when the guard rejects the deltas.
	UpdateBalance(ctx context.Context, walletID uuid.UUID, coinsDelta int64, blockedDelta int64) (models.Wallet, error)
}

// RecordParams describes one attempted movement to append to the ledger
type RecordParams struct {
	WalletID     uuid.UUID
	UserID       uuid.UUID
	Kind         string
	Amount       int64
	Description  string
	BalanceAfter int64
	Status       string
	Error        string

	// Optional correlation id: movements sharing it append to one transaction
	RequestID *uuid.UUID

	// Optional metadata, shallow-merged into the transaction (new keys overwrite)
	Meta map[string]string
}

// Withdrawal is a flattened view of withdraw-kind ledger entries
type Withdrawal struct {
	TransactionID uuid.UUID
	EntryID       int64
	UserID        uuid.UUID
	Amount        int64
	Destination   string
	Status        string
	Description   string
	Error         string
	Timestamp     time.Time
}

type LedgerRepo interface {
	// Append a history entry, grouping by (user, request id) when a request id
	// is given, and push the transaction onto the wallet's recent list
	// (trimmed to models.RecentTxnsLimit). Sole writer of ledger rows.
	Record(ctx context.Context, arg RecordParams) (models.Transaction, error)

	// If not found must return apperrors.ErrTransactionNotFound
	GetTransaction(ctx context.Context, txID uuid.UUID) (models.Transaction, error)

	// Recent-first page of the wallet's transactions with history loaded
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int, offset int) ([]models.Transaction, error)
	CountTransactions(ctx context.Context, walletID uuid.UUID) (int64, error)

	// Flip the single pending entry to a final status. The update is
	// conditional on status still being pending; if it is already resolved
	// must return apperrors.ErrNoPendingWithdrawal.
	ResolveEntry(ctx context.Context, entryID int64, status string, description string, errText string) error

	// Withdraw-kind entries, newest first. Nil userID means all users.
	ListWithdrawals(ctx context.Context, userID *uuid.UUID) ([]Withdrawal, error)
}

type CreateApplicantParams struct {
	UserID      uuid.UUID
	JobPostID   uuid.UUID
	ReviewerID  uuid.UUID
	Status      string
	EmployerDoc *string
	EmployeeDoc *string
	ReviewCost  int64
}

type ApplicantRepo interface {
	Create(ctx context.Context, arg CreateApplicantParams) (models.ApplicantStatus, error)

	// If not found must return apperrors.ErrApplicantNotFound
	GetByID(ctx context.Context, id uuid.UUID) (models.ApplicantStatus, error)

	// Candidates for the auto-confirm sweep: selected, not auto-confirmed,
	// stale since staleBefore, exactly one verification doc uploaded
	ListConfirmable(ctx context.Context, staleBefore time.Time, limit int) ([]models.ApplicantStatus, error)

	// Candidates for the expire sweep: applied or selected, not
	// auto-confirmed, stale since staleBefore
	ListExpirable(ctx context.Context, staleBefore time.Time, limit int) ([]models.ApplicantStatus, error)

	// Conditional claims so overlapping sweep runs cannot double-process a
	// record. Return false when the record is no longer in a claimable state.
	ClaimAutoConfirm(ctx context.Context, id uuid.UUID) (bool, error)
	ClaimExpire(ctx context.Context, id uuid.UUID) (bool, error)

	MarkCompleted(ctx context.Context, id uuid.UUID) error
}
