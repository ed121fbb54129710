package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/refermate/refwallet/internal/apperrors"
	"github.com/refermate/refwallet/internal/handlers/render"
	"github.com/refermate/refwallet/internal/handlers/userctx"
	"github.com/refermate/refwallet/internal/logger"
)

type walletResponse struct {
	Coins        int64 `json:"coins"`
	BlockedCoins int64 `json:"blocked_coins"`
}

func handleGetWallet(walletService walletService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		wallet, err := walletService.GetWallet(r.Context(), principal.UserID)

		switch err {
		case nil:
			render.JSON(w, walletResponse{wallet.Coins, wallet.BlockedCoins})
		default:
			l.Error("Failed to get wallet", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleTransactionHistory(walletService walletService, l logger.Logger) http.Handler {
	type entry struct {
		Kind         string    `json:"kind"`
		Amount       int64     `json:"amount"`
		Description  string    `json:"description"`
		BalanceAfter int64     `json:"balance_after"`
		Status       string    `json:"status"`
		Error        string    `json:"error,omitempty"`
		Timestamp    time.Time `json:"timestamp"`
	}

	type transaction struct {
		ID        uuid.UUID         `json:"id"`
		RequestID *uuid.UUID        `json:"request_id,omitempty"`
		Meta      map[string]string `json:"meta,omitempty"`
		History   []entry           `json:"history"`
	}

	type pagination struct {
		Page       int   `json:"page"`
		PageSize   int   `json:"page_size"`
		TotalPages int   `json:"total_pages"`
		TotalCount int64 `json:"total_count"`
	}

	type response struct {
		Transactions []transaction `json:"transactions"`
		Pagination   pagination    `json:"pagination"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

		history, err := walletService.GetTransactionHistory(r.Context(), principal.UserID, page, pageSize)

		switch {
		case err == nil:
			resp := response{
				Transactions: make([]transaction, 0, len(history.Transactions)),
				Pagination: pagination{
					Page:       history.Page,
					PageSize:   history.PageSize,
					TotalPages: history.TotalPages,
					TotalCount: history.TotalCount,
				},
			}
			for _, txn := range history.Transactions {
				tr := transaction{ID: txn.ID, RequestID: txn.RequestID, Meta: txn.Meta, History: make([]entry, 0, len(txn.History))}
				for _, e := range txn.History {
					tr.History = append(tr.History, entry{
						Kind:         e.Kind,
						Amount:       e.Amount,
						Description:  e.Description,
						BalanceAfter: e.BalanceAfter,
						Status:       e.Status,
						Error:        e.Error,
						Timestamp:    e.Timestamp,
					})
				}
				resp.Transactions = append(resp.Transactions, tr)
			}
			render.JSON(w, resp)
		case errors.Is(err, apperrors.ErrWalletNotFound):
			render.ServiceError(w, "Wallet not found", http.StatusNotFound)
		default:
			l.Error("Failed to get transaction history", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// handlePaymentConfirmed is the inbound hook from the payment collaborator:
// the amount is already verified upstream, the wallet is simply credited
func handlePaymentConfirmed(walletService walletService, l logger.Logger) http.Handler {
	type request struct {
		UserID      uuid.UUID `json:"user_id" validate:"required"`
		Amount      int64     `json:"amount" validate:"required,gt=0"`
		Description string    `json:"description"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		confirm, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if confirm.Description == "" {
			confirm.Description = "Coin purchase"
		}

		wallet, err := walletService.AddCoins(r.Context(), confirm.UserID, confirm.Amount, confirm.Description)

		switch {
		case err == nil:
			render.JSON(w, walletResponse{wallet.Coins, wallet.BlockedCoins})
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Invalid amount", http.StatusBadRequest)
		default:
			l.Error("Failed to add coins", "error", err, "user_id", confirm.UserID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func renderMovementError(w http.ResponseWriter, l logger.Logger, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidAmount):
		render.ServiceError(w, "Invalid amount", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrWalletNotFound):
		render.ServiceError(w, "Wallet not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		render.ServiceError(w, "Insufficient coin balance", http.StatusPaymentRequired)
	case errors.Is(err, apperrors.ErrInsufficientBlockedBalance):
		render.ServiceError(w, "Insufficient blocked coin balance", http.StatusPaymentRequired)
	default:
		l.Error("Coin movement failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
