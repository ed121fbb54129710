package models

import (
	"time"

	"github.com/google/uuid"
)

// Entry kinds. A ledger entry records one attempted coin movement.
const (
	EntryKindPurchase = "purchase"
	EntryKindSpend    = "spend"
	EntryKindReward   = "reward"
	EntryKindBlock    = "block"
	EntryKindRefund   = "refund"
	EntryKindWithdraw = "withdraw"
)

const (
	EntryStatusSuccess = "success"
	EntryStatusPending = "pending"
	EntryStatusFailed  = "failed"
)

// Transaction groups ledger entries that belong to one business workflow.
// Entries sharing a request id land in the same transaction's history;
// movements without a request id get a fresh one-entry transaction.
type Transaction struct {
	ID        uuid.UUID
	WalletID  uuid.UUID
	UserID    uuid.UUID
	RequestID *uuid.UUID
	Meta      map[string]string
	CreatedAt time.Time

	// Ordered history, oldest first. Append-only: the single allowed
	// mutation is the pending withdraw entry resolving to success/failed.
	History []Entry
}

type Entry struct {
	ID          int64
	Kind        string
	Amount      int64
	Description string

	// Available-balance snapshot taken right after the operation
	BalanceAfter int64

	Status    string
	Error     string
	Timestamp time.Time
}
