package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/refermate/refwallet/internal/apperrors"
	"github.com/refermate/refwallet/internal/handlers/render"
	"github.com/refermate/refwallet/internal/handlers/userctx"
	"github.com/refermate/refwallet/internal/logger"
	"github.com/refermate/refwallet/internal/repository"
	"github.com/refermate/refwallet/internal/service/wallet"
)

type withdrawalItem struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	UserID        uuid.UUID `json:"user_id"`
	Amount        int64     `json:"amount"`
	Destination   string    `json:"destination"`
	Status        string    `json:"status"`
	Description   string    `json:"description"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func toWithdrawalItems(withdrawals []repository.Withdrawal) []withdrawalItem {
	items := make([]withdrawalItem, 0, len(withdrawals))
	for _, wd := range withdrawals {
		items = append(items, withdrawalItem{
			TransactionID: wd.TransactionID,
			UserID:        wd.UserID,
			Amount:        wd.Amount,
			Destination:   wd.Destination,
			Status:        wd.Status,
			Description:   wd.Description,
			Error:         wd.Error,
			Timestamp:     wd.Timestamp,
		})
	}
	return items
}

func handleRequestWithdrawal(walletService walletService, l logger.Logger) http.Handler {
	type request struct {
		Amount      int64  `json:"amount" validate:"required,gt=0"`
		Destination string `json:"destination" validate:"required,payout_destination"`
	}

	type response struct {
		TransactionID uuid.UUID `json:"transaction_id"`
		Status        string    `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		txnID, err := walletService.RequestWithdrawal(r.Context(), principal.UserID, req.Amount, req.Destination)

		switch {
		case err == nil:
			render.JSON(w, response{TransactionID: txnID, Status: "pending"})
		case errors.Is(err, apperrors.ErrWithdrawalBelowLimit):
			render.ServiceError(w, "Withdrawal amount is below the minimum", http.StatusBadRequest)
		default:
			renderMovementError(w, l, err)
		}
	})
}

func handleListOwnWithdrawals(walletService walletService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		withdrawals, err := walletService.ListWithdrawals(r.Context(), &principal.UserID)
		if err != nil {
			l.Error("Failed to list withdrawals", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, toWithdrawalItems(withdrawals))
	})
}

func handleListAllWithdrawals(walletService walletService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var userID *uuid.UUID
		if raw := r.URL.Query().Get("user_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				render.ServiceError(w, "Invalid user id", http.StatusBadRequest)
				return
			}
			userID = &id
		}

		withdrawals, err := walletService.ListWithdrawals(r.Context(), userID)
		if err != nil {
			l.Error("Failed to list withdrawals", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, toWithdrawalItems(withdrawals))
	})
}

func handleProcessWithdrawal(walletService walletService, l logger.Logger) http.Handler {
	type request struct {
		TransactionID uuid.UUID `json:"transaction_id" validate:"required"`
		Action        string    `json:"action" validate:"required,oneof=approve reject"`
		Reason        string    `json:"reason"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if req.Action == wallet.WithdrawalActionReject && req.Reason == "" {
			req.Reason = "Withdrawal rejected"
		}

		updated, err := walletService.ProcessWithdrawal(r.Context(), req.TransactionID, req.Action, req.Reason)

		switch {
		case err == nil:
			render.JSON(w, walletResponse{updated.Coins, updated.BlockedCoins})
		case errors.Is(err, apperrors.ErrTransactionNotFound):
			render.ServiceError(w, "Withdrawal not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrNoPendingWithdrawal):
			render.ServiceError(w, "Withdrawal is not pending", http.StatusConflict)
		default:
			renderMovementError(w, l, err)
		}
	})
}
