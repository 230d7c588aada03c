package quota

import (
	"context"
	"fmt"

	"monetiq/internal/domain"
	"monetiq/internal/infra"
	"monetiq/internal/sqlinline"
)

// Ledger mutates per-user quota counters through append-only ledger entries.
// Reserve is a single conditional decrement, so concurrent requests from the
// same user cannot drive a counter negative.
type Ledger struct {
	sql infra.SQLExecutor
}

func NewLedger(sql infra.SQLExecutor) *Ledger {
	return &Ledger{sql: sql}
}

// Reserve debits seconds from the user's tier counter, appending the reserve
// entry in the same statement. Returns false with no mutation when the
// balance is insufficient or the account does not exist.
func (l *Ledger) Reserve(ctx context.Context, userID string, tier domain.QuotaTier, seconds int, jobID string) (bool, error) {
	if seconds <= 0 {
		return false, fmt.Errorf("quota: reserve amount must be positive, got %d", seconds)
	}
	query, err := reserveQuery(tier)
	if err != nil {
		return false, err
	}
	row := l.sql.QueryRow(ctx, query, userID, seconds, nullableID(jobID))
	var debitedUser string
	if err := row.Scan(&debitedUser); err != nil {
		if infra.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("quota: reserve: %w", err)
	}
	return true, nil
}

// Refund unconditionally credits seconds back and appends a refund entry
// carrying the reason. Used both when a created job later fails and when job
// creation itself fails after a successful reservation.
func (l *Ledger) Refund(ctx context.Context, userID string, tier domain.QuotaTier, seconds int, jobID, reason string) error {
	if seconds <= 0 {
		return fmt.Errorf("quota: refund amount must be positive, got %d", seconds)
	}
	query, err := refundQuery(tier)
	if err != nil {
		return err
	}
	if _, err := l.sql.Exec(ctx, query, userID, seconds, nullableID(jobID), reason); err != nil {
		return fmt.Errorf("quota: refund: %w", err)
	}
	return nil
}

// Grant tops up a tier counter, creating the account row when missing.
func (l *Ledger) Grant(ctx context.Context, userID string, tier domain.QuotaTier, seconds int, reason string) error {
	if seconds <= 0 {
		return fmt.Errorf("quota: grant amount must be positive, got %d", seconds)
	}
	if tier != domain.QuotaTierStandard && tier != domain.QuotaTierPremium {
		return fmt.Errorf("quota: unknown tier %q", tier)
	}
	if _, err := l.sql.Exec(ctx, sqlinline.QGrantQuota, userID, string(tier), seconds, reason); err != nil {
		return fmt.Errorf("quota: grant: %w", err)
	}
	return nil
}

// Account returns the user's current counters.
func (l *Ledger) Account(ctx context.Context, userID string) (*domain.QuotaAccount, error) {
	row := l.sql.QueryRow(ctx, sqlinline.QSelectQuotaAccount, userID)
	var acct domain.QuotaAccount
	if err := row.Scan(&acct.UserID, &acct.SecondsStandard, &acct.SecondsPremium, &acct.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &acct, nil
}

// Entries returns the most recent ledger rows for the user, newest first.
func (l *Ledger) Entries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.sql.Query(ctx, sqlinline.QSelectQuotaLedger, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Tier, &e.Amount, &e.JobID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func reserveQuery(tier domain.QuotaTier) (string, error) {
	switch tier {
	case domain.QuotaTierStandard:
		return sqlinline.QReserveQuotaStandard, nil
	case domain.QuotaTierPremium:
		return sqlinline.QReserveQuotaPremium, nil
	}
	return "", fmt.Errorf("quota: unknown tier %q", tier)
}

func refundQuery(tier domain.QuotaTier) (string, error) {
	switch tier {
	case domain.QuotaTierStandard:
		return sqlinline.QRefundQuotaStandard, nil
	case domain.QuotaTierPremium:
		return sqlinline.QRefundQuotaPremium, nil
	}
	return "", fmt.Errorf("quota: unknown tier %q", tier)
}

func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
