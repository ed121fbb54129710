package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/refermate/refwallet/internal/apperrors"
	"github.com/refermate/refwallet/internal/models"
)

type UserRepo struct {
	DB DBTX
}

const createUser = `-- name: CreateUser
INSERT INTO users (username)
VALUES ($1)
RETURNING id, created_at, username, referrals_received, referrals_given
`

func (r *UserRepo) CreateUser(ctx context.Context, username string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, username)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return user, apperrors.ErrUserAlreadyExists
		}
		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT id, created_at, username, referrals_received, referrals_given FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, userID)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const incReferralsReceived = `-- name: IncReferralsReceived
UPDATE users SET referrals_received = referrals_received + 1
WHERE id = $1
`

func (r *UserRepo) IncReferralsReceived(ctx context.Context, userID uuid.UUID) error {
	return r.incReferrals(ctx, incReferralsReceived, userID)
}

const incReferralsGiven = `-- name: IncReferralsGiven
UPDATE users SET referrals_given = referrals_given + 1
WHERE id = $1
`

func (r *UserRepo) IncReferralsGiven(ctx context.Context, userID uuid.UUID) error {
	return r.incReferrals(ctx, incReferralsGiven, userID)
}

func (r *UserRepo) incReferrals(ctx context.Context, sql string, userID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, sql, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Username, &u.ReferralsReceived, &u.ReferralsGiven)
	return u, err
}
