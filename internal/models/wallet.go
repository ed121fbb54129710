package models

import (
	"time"

	"github.com/google/uuid"
)

// RecentTxnsLimit caps the wallet's pointer list of latest ledger transactions.
// Older pointers are dropped from the front; the ledger rows themselves persist.
const RecentTxnsLimit = 100

type Wallet struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Coins        int64
	BlockedCoins int64

	// Ids of the most recent ledger transactions, oldest first
	RecentTxns []uuid.UUID

	CreatedAt time.Time
}
