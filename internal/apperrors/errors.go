package apperrors

import (
	"errors"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")

	ErrWalletNotFound             = errors.New("wallet not found")
	ErrInvalidAmount              = errors.New("amount must be a positive integer")
	ErrInsufficientBalance        = errors.New("insufficient available coin balance")
	ErrInsufficientBlockedBalance = errors.New("insufficient blocked coin balance")

	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrNoPendingWithdrawal  = errors.New("no pending withdrawal found in transaction")
	ErrWithdrawalBelowLimit = errors.New("withdrawal amount below the minimum")

	ErrApplicantNotFound = errors.New("applicant status not found")
)
