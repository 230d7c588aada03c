package handlers

import (
	"errors"
	"net/http"
	"time"

	"monetiq/internal/domain"
)

type quotaResponse struct {
	UserID          string        `json:"user_id"`
	SecondsStandard int           `json:"seconds_standard"`
	SecondsPremium  int           `json:"seconds_premium"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Ledger          []ledgerEntry `json:"ledger"`
}

type ledgerEntry struct {
	Action    string    `json:"action"`
	Tier      string    `json:"tier"`
	Amount    int       `json:"amount"`
	JobID     string    `json:"job_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GetQuota returns the caller's balance and recent ledger entries.
func (a *App) GetQuota(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}

	acct, err := a.Ledger.Account(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "no quota account for this user")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal_error", "failed to load quota")
		return
	}
	entries, err := a.Ledger.Entries(r.Context(), userID, 50)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal_error", "failed to load ledger")
		return
	}

	resp := quotaResponse{
		UserID:          acct.UserID,
		SecondsStandard: acct.SecondsStandard,
		SecondsPremium:  acct.SecondsPremium,
		UpdatedAt:       acct.UpdatedAt,
		Ledger:          make([]ledgerEntry, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Ledger = append(resp.Ledger, ledgerEntry{
			Action:    string(e.Action),
			Tier:      string(e.Tier),
			Amount:    e.Amount,
			JobID:     e.JobID,
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, resp)
}
