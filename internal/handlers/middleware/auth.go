package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/refermate/refwallet/internal/handlers/render"
	"github.com/refermate/refwallet/internal/handlers/userctx"
	"github.com/refermate/refwallet/internal/models"
)

const defaultSigningMethod = "HS256"

// AccessTokenClaims as issued by the auth service (external collaborator).
// This service only verifies them.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
	Role   string    `json:"role"`
}

// AuthMiddleware verifies the bearer token and puts the caller into context
func AuthMiddleware(secretKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := principalFromRequest(r, secretKey)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminMiddleware rejects callers without the admin role.
// Must run after AuthMiddleware.
func AdminMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := userctx.FromContext(r.Context())
			if !ok || principal.Role != models.RoleAdmin {
				render.ServiceError(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func principalFromRequest(r *http.Request, secretKey string) (userctx.Principal, error) {
	header := r.Header.Get("Authorization")
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenString == "" {
		return userctx.Principal{}, errors.New("missing bearer token")
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return []byte(secretKey), nil },
		jwt.WithValidMethods([]string{defaultSigningMethod}),
	)
	if err != nil {
		return userctx.Principal{}, fmt.Errorf("invalid token: %w", err)
	}

	if claims.UserID == uuid.Nil {
		return userctx.Principal{}, errors.New("token has no user id")
	}

	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}

	return userctx.Principal{UserID: claims.UserID, Role: role}, nil
}
