package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/refermate/refwallet/internal/apperrors"
	"github.com/refermate/refwallet/internal/models"
	"github.com/refermate/refwallet/internal/repository"
)

type ApplicantRepo struct {
	DB DBTX
}

const applicantColumns = `id, user_id, job_post_id, reviewer_id, status, employer_doc, employee_doc, review_cost, auto_confirmed, applied_at, updated_at`

const createApplicant = `-- name: CreateApplicant
INSERT INTO applicant_statuses (user_id, job_post_id, reviewer_id, status, employer_doc, employee_doc, review_cost)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + applicantColumns

func (r *ApplicantRepo) Create(ctx context.Context, arg repository.CreateApplicantParams) (models.ApplicantStatus, error) {
	status := arg.Status
	if status == "" {
		status = models.ApplicantStatusApplied
	}

	rows, _ := r.DB.Query(ctx, createApplicant,
		arg.UserID, arg.JobPostID, arg.ReviewerID, status, arg.EmployerDoc, arg.EmployeeDoc, arg.ReviewCost,
	)
	a, err := pgx.CollectOneRow(rows, rowToApplicant)
	if err != nil {
		return a, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

const getApplicantByID = `-- name: GetApplicantByID
SELECT ` + applicantColumns + ` FROM applicant_statuses
WHERE id = $1
`

func (r *ApplicantRepo) GetByID(ctx context.Context, id uuid.UUID) (models.ApplicantStatus, error) {
	rows, _ := r.DB.Query(ctx, getApplicantByID, id)
	a, err := pgx.CollectOneRow(rows, rowToApplicant)

	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, pgx.ErrNoRows):
		return a, apperrors.ErrApplicantNotFound
	default:
		return a, fmt.Errorf("db error: %w", err)
	}
}

// Engagements where exactly one party uploaded a verification doc and the
// counterpart went silent for the whole confirmation window
const listConfirmable = `-- name: ListConfirmable
SELECT ` + applicantColumns + ` FROM applicant_statuses
WHERE status = 'selected'
  AND auto_confirmed = false
  AND updated_at <= $1
  AND ((employer_doc IS NOT NULL) <> (employee_doc IS NOT NULL))
ORDER BY updated_at
LIMIT $2
`

func (r *ApplicantRepo) ListConfirmable(ctx context.Context, staleBefore time.Time, limit int) ([]models.ApplicantStatus, error) {
	rows, _ := r.DB.Query(ctx, listConfirmable, staleBefore, limit)
	applicants, err := pgx.CollectRows(rows, rowToApplicant)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return applicants, nil
}

const listExpirable = `-- name: ListExpirable
SELECT ` + applicantColumns + ` FROM applicant_statuses
WHERE status IN ('applied', 'selected')
  AND auto_confirmed = false
  AND updated_at <= $1
ORDER BY updated_at
LIMIT $2
`

func (r *ApplicantRepo) ListExpirable(ctx context.Context, staleBefore time.Time, limit int) ([]models.ApplicantStatus, error) {
	rows, _ := r.DB.Query(ctx, listExpirable, staleBefore, limit)
	applicants, err := pgx.CollectRows(rows, rowToApplicant)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return applicants, nil
}

// The auto_confirmed flag doubles as the claim marker: only one sweep run can
// flip it, so a record is settled at most once even when runs overlap
const claimAutoConfirm = `-- name: ClaimAutoConfirm
UPDATE applicant_statuses
SET auto_confirmed = true, updated_at = now()
WHERE id = $1 AND status = 'selected' AND auto_confirmed = false
`

func (r *ApplicantRepo) ClaimAutoConfirm(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.claim(ctx, claimAutoConfirm, id)
}

// Expire claims through the status transition itself
const claimExpire = `-- name: ClaimExpire
UPDATE applicant_statuses
SET status = 'expired', updated_at = now()
WHERE id = $1 AND status IN ('applied', 'selected') AND auto_confirmed = false
`

func (r *ApplicantRepo) ClaimExpire(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.claim(ctx, claimExpire, id)
}

func (r *ApplicantRepo) claim(ctx context.Context, sql string, id uuid.UUID) (bool, error) {
	tag, err := r.DB.Exec(ctx, sql, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const markCompleted = `-- name: MarkCompleted
UPDATE applicant_statuses
SET status = 'completed', updated_at = now()
WHERE id = $1
`

func (r *ApplicantRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, markCompleted, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrApplicantNotFound
	}
	return nil
}

func rowToApplicant(row pgx.CollectableRow) (models.ApplicantStatus, error) {
	var a models.ApplicantStatus
	err := row.Scan(&a.ID, &a.UserID, &a.JobPostID, &a.ReviewerID, &a.Status, &a.EmployerDoc, &a.EmployeeDoc, &a.ReviewCost, &a.AutoConfirmed, &a.AppliedAt, &a.UpdatedAt)
	return a, err
}
