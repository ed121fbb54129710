package models

import (
	"time"

	"github.com/google/uuid"
)

// Applicant engagement states. The settlement sweeps only ever read
// these records and advance status/autoConfirmed; the rest of the
// schema is owned by the job application flow.
const (
	ApplicantStatusApplied    = "applied"
	ApplicantStatusSelected   = "selected"
	ApplicantStatusRejected   = "rejected"
	ApplicantStatusOnHold     = "on-hold"
	ApplicantStatusInProgress = "in-progress"
	ApplicantStatusCompleted  = "completed"
	ApplicantStatusExpired    = "expired"
)

type ApplicantStatus struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	JobPostID uuid.UUID

	// Reviewer is the user who posted the job and performs the referral review
	ReviewerID uuid.UUID

	Status        string
	EmployerDoc   *string
	EmployeeDoc   *string
	ReviewCost    int64
	AutoConfirmed bool

	AppliedAt time.Time
	UpdatedAt time.Time
}
