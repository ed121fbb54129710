package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/refermate/refwallet/internal/handlers/middleware"
	"github.com/refermate/refwallet/internal/logger"
	"github.com/refermate/refwallet/internal/models"
	"github.com/refermate/refwallet/internal/repository"
	"github.com/refermate/refwallet/internal/service/wallet"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	walletService walletService,
	secretKey string,
	allowedOrigins []string,
	l logger.Logger,
) http.Handler {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	withAuth := middleware.AuthMiddleware(secretKey)
	withAdmin := middleware.AdminMiddleware()

	apiuser := http.NewServeMux()

	apiuser.Handle("GET /wallet", withAuth(handleGetWallet(walletService, l)))
	apiuser.Handle("GET /wallet/history", withAuth(handleTransactionHistory(walletService, l)))
	apiuser.Handle("POST /wallet/withdraw", withAuth(handleRequestWithdrawal(walletService, l)))
	apiuser.Handle("GET /wallet/withdrawals", withAuth(handleListOwnWithdrawals(walletService, l)))

	apiadmin := http.NewServeMux()

	apiadmin.Handle("GET /withdrawals", handleListAllWithdrawals(walletService, l))
	apiadmin.Handle("POST /withdrawals/process", handleProcessWithdrawal(walletService, l))
	apiadmin.Handle("POST /payments/confirmed", handlePaymentConfirmed(walletService, l))

	root := http.NewServeMux()
	root.Handle("/api/user/", http.StripPrefix("/api/user", apiuser))
	root.Handle("/api/admin/", http.StripPrefix("/api/admin", chain(apiadmin, withAuth, withAdmin)))

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := chain(root,
		middleware.LoggerMiddleware(l),
		corsMiddleware.Handler,
	)

	return handler
}

type walletService interface {
	// Get the user's wallet, creating an empty one on first read
	GetWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error)

	// Credit spendable coins after a confirmed payment
	// Has to return apperrors.ErrInvalidAmount if amount is not positive
	AddCoins(ctx context.Context, userID uuid.UUID, amount int64, description string) (models.Wallet, error)

	// Recent-first page of the user's ledger transactions
	GetTransactionHistory(ctx context.Context, userID uuid.UUID, page int, pageSize int) (wallet.History, error)

	// Place a withdrawal request: blocks the amount and opens a pending entry
	// Has to return apperrors.ErrWithdrawalBelowLimit if amount is under the minimum
	// and apperrors.ErrInsufficientBalance if the wallet can't cover it
	RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount int64, destination string) (uuid.UUID, error)

	// Approve or reject a pending withdrawal
	// Has to return apperrors.ErrNoPendingWithdrawal if it was already settled
	ProcessWithdrawal(ctx context.Context, txnID uuid.UUID, action string, reason string) (models.Wallet, error)

	// Withdrawal requests, all users when userID is nil
	ListWithdrawals(ctx context.Context, userID *uuid.UUID) ([]repository.Withdrawal, error)
}
