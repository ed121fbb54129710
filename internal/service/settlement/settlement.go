package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/refermate/refwallet/internal/logger"
	"github.com/refermate/refwallet/internal/models"
	"github.com/refermate/refwallet/internal/repository"
)

const (
	defaultConfirmAfter = 72 * time.Hour
	defaultExpireAfter  = 120 * time.Hour
	defaultBatchSize    = 100

	// Reviewer's cut of the review cost, percent. The platform keeps the rest,
	// so the two shares always add up to the spent cost exactly.
	defaultReviewerSharePct = 80
)

type walletService interface {
	SpendBlockedCoins(ctx context.Context, userID uuid.UUID, amount int64, description string, requestID *uuid.UUID) (models.Wallet, error)
	RefundBlockedCoins(ctx context.Context, userID uuid.UUID, amount int64, description string, requestID *uuid.UUID) (models.Wallet, error)
	RewardCoins(ctx context.Context, userID uuid.UUID, amount int64, description string, requestID *uuid.UUID) (models.Wallet, error)
}

// Notifier is the outbound side-effect hook; delivery is someone else's job
type Notifier interface {
	ApplicationExpired(ctx context.Context, userID uuid.UUID, jobPostID uuid.UUID)
}

type noopNotifier struct{}

func (noopNotifier) ApplicationExpired(context.Context, uuid.UUID, uuid.UUID) {}

type Config struct {
	// How long a one-sided engagement waits before auto-confirming
	ConfirmAfter time.Duration

	// How long an untouched engagement waits before expiring
	ExpireAfter time.Duration

	// Reviewer's percentage of the review cost
	ReviewerSharePct int64

	// Reserved account receiving the platform share
	PlatformUserID uuid.UUID

	// Max records handled per sweep run
	BatchSize int
}

// Service settles referral engagements that timed out: one-sided ones are
// confirmed and paid out, untouched ones are expired and refunded. Both
// sweeps are idempotent and safe to re-run; they only act on records still
// in a qualifying state and claim each record before mutating it.
type Service struct {
	cfg      Config
	storage  repository.Storage
	wallet   walletService
	notifier Notifier
	logger   logger.Logger
}

func NewService(cfg Config, storage repository.Storage, wallet walletService, notifier Notifier, l logger.Logger) *Service {
	if cfg.ConfirmAfter == 0 {
		cfg.ConfirmAfter = defaultConfirmAfter
	}
	if cfg.ExpireAfter == 0 {
		cfg.ExpireAfter = defaultExpireAfter
	}
	if cfg.ReviewerSharePct == 0 {
		cfg.ReviewerSharePct = defaultReviewerSharePct
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PlatformUserID == uuid.Nil {
		cfg.PlatformUserID = models.PlatformUserID
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		cfg:      cfg,
		storage:  storage,
		wallet:   wallet,
		notifier: notifier,
		logger:   l,
	}
}

// AutoConfirm settles engagements where one party uploaded their verification
// doc and the counterpart went silent for the confirmation window. Returns the
// number of settled records; a failure on one record never aborts the rest.
func (s *Service) AutoConfirm(ctx context.Context) (int, error) {
	staleBefore := time.Now().Add(-s.cfg.ConfirmAfter)

	applicants, err := s.storage.Applicants().ListConfirmable(ctx, staleBefore, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("can't list confirmable applicants: %w", err)
	}

	confirmed := 0
	for _, applicant := range applicants {
		if err := s.confirmOne(ctx, applicant); err != nil {
			s.logger.Error("Auto-confirm failed for applicant", "applicant_id", applicant.ID, "user_id", applicant.UserID, "error", err)
			continue
		}
		confirmed++
	}

	return confirmed, nil
}

func (s *Service) confirmOne(ctx context.Context, applicant models.ApplicantStatus) error {
	claimed, err := s.storage.Applicants().ClaimAutoConfirm(ctx, applicant.ID)
	if err != nil {
		return err
	}
	if !claimed {
		// Another run got here first
		return nil
	}

	requestID := applicant.JobPostID

	_, err = s.wallet.SpendBlockedCoins(ctx, applicant.UserID, applicant.ReviewCost,
		"Referral auto-confirmed after timeout", &requestID)
	if err != nil {
		return fmt.Errorf("can't spend blocked review cost: %w", err)
	}

	reviewerShare, platformShare := splitReviewCost(applicant.ReviewCost, s.cfg.ReviewerSharePct)

	if _, err := s.wallet.RewardCoins(ctx, applicant.ReviewerID, reviewerShare,
		"Referral auto-confirmed (reviewer)", &requestID); err != nil {
		return fmt.Errorf("can't reward reviewer: %w", err)
	}
	if _, err := s.wallet.RewardCoins(ctx, s.cfg.PlatformUserID, platformShare,
		"Platform commission (auto-confirmed)", &requestID); err != nil {
		return fmt.Errorf("can't reward platform: %w", err)
	}

	if err := s.storage.Users().IncReferralsReceived(ctx, applicant.UserID); err != nil {
		return err
	}
	if err := s.storage.Users().IncReferralsGiven(ctx, applicant.ReviewerID); err != nil {
		return err
	}

	return s.storage.Applicants().MarkCompleted(ctx, applicant.ID)
}

// Expire cancels engagements that saw no progress for the expiry window,
// refunding the escrowed review cost. Returns the number of expired records.
func (s *Service) Expire(ctx context.Context) (int, error) {
	staleBefore := time.Now().Add(-s.cfg.ExpireAfter)

	applicants, err := s.storage.Applicants().ListExpirable(ctx, staleBefore, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("can't list expirable applicants: %w", err)
	}

	expired := 0
	for _, applicant := range applicants {
		claimed, err := s.storage.Applicants().ClaimExpire(ctx, applicant.ID)
		if err != nil {
			s.logger.Error("Expire failed for applicant", "applicant_id", applicant.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}
		expired++

		if applicant.ReviewCost > 0 {
			requestID := applicant.JobPostID
			_, err := s.wallet.RefundBlockedCoins(ctx, applicant.UserID, applicant.ReviewCost,
				"Application expired after inactivity", &requestID)
			if err != nil {
				// Record stays expired; the failed refund is on the ledger
				s.logger.Error("Refund failed for expired applicant", "applicant_id", applicant.ID, "user_id", applicant.UserID, "error", err)
			}
		}

		s.notifier.ApplicationExpired(ctx, applicant.UserID, applicant.JobPostID)
	}

	return expired, nil
}

// splitReviewCost divides the spent cost between reviewer and platform.
// The reviewer share is truncated toward zero; the platform takes the
// remainder, so reviewerShare + platformShare == cost always holds.
func splitReviewCost(cost int64, reviewerPct int64) (reviewerShare int64, platformShare int64) {
	reviewerShare = decimal.NewFromInt(cost).
		Mul(decimal.NewFromInt(reviewerPct)).
		Div(decimal.NewFromInt(100)).
		IntPart()
	return reviewerShare, cost - reviewerShare
}
