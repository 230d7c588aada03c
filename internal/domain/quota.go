package domain

import "time"

// QuotaTier selects which per-user seconds counter a job draws from.
type QuotaTier string

const (
	QuotaTierStandard QuotaTier = "standard"
	QuotaTierPremium  QuotaTier = "premium"
)

// LedgerAction enumerates balance-affecting events.
type LedgerAction string

const (
	LedgerActionReserve LedgerAction = "reserve"
	LedgerActionRefund  LedgerAction = "refund"
	LedgerActionGrant   LedgerAction = "grant"
)

// QuotaAccount holds the per-user counters. The counters are always equal to
// the sum of the account's ledger deltas; the ledger is append-only.
type QuotaAccount struct {
	UserID          string
	SecondsStandard int
	SecondsPremium  int
	UpdatedAt       time.Time
}

// LedgerEntry is one append-only audit record. Amount is signed: negative for
// reserves, positive for refunds and grants.
type LedgerEntry struct {
	ID        string
	UserID    string
	Action    LedgerAction
	Tier      QuotaTier
	Amount    int
	JobID     string
	Reason    string
	CreatedAt time.Time
}
