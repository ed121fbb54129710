package userctx

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the authenticated caller as carried in access-token claims
type Principal struct {
	UserID uuid.UUID
	Role   string
}

type ctxKey string

const principalKey ctxKey = "principal"

// Create a new context with the principal
func New(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Extract the principal from the context
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
