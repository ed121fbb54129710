package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles as carried in access-token claims
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// PlatformUserID is the reserved account that collects the platform share of
// settled review costs. Seeded by the initial migration.
var PlatformUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type User struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Username  string

	// Referral counters bumped when an engagement settles
	ReferralsReceived int64
	ReferralsGiven    int64
}
