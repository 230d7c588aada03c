package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"monetiq/internal/domain"
	"monetiq/internal/infra"
	"monetiq/internal/quota"
	"monetiq/internal/sqlinline"
)

// EnqueueParams describes a new audio generation request.
type EnqueueParams struct {
	UserID      string
	Type        domain.AudioType
	DurationSec int
	Preset      string
	Text        string
	VoiceID     string
}

// Manager creates queued jobs behind a quota reservation. Quota is reserved
// first; a failed insert refunds it (compensating entry), so the ledger never
// leaks seconds for jobs that were never written.
type Manager struct {
	sql    infra.SQLExecutor
	ledger *quota.Ledger
	logger zerolog.Logger
}

func NewManager(sql infra.SQLExecutor, ledger *quota.Ledger, logger zerolog.Logger) *Manager {
	return &Manager{sql: sql, ledger: ledger, logger: logger}
}

// Enqueue reserves quota and inserts a queued job row. Returns
// domain.ErrQuotaExceeded without any mutation when the balance is short.
func (m *Manager) Enqueue(ctx context.Context, p EnqueueParams) (*domain.AudioJob, error) {
	if !p.Type.Valid() {
		return nil, fmt.Errorf("queue: unsupported audio type %q", p.Type)
	}
	if p.DurationSec <= 0 {
		return nil, fmt.Errorf("queue: duration must be positive, got %d", p.DurationSec)
	}

	jobID := uuid.NewString()
	tier := p.Type.QuotaTier()

	ok, err := m.ledger.Reserve(ctx, p.UserID, tier, p.DurationSec, jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrQuotaExceeded
	}

	if _, err := m.sql.Exec(ctx, sqlinline.QInsertAudioJob,
		jobID, p.UserID, string(p.Type), p.DurationSec, p.Preset, p.Text, p.VoiceID,
	); err != nil {
		if refundErr := m.ledger.Refund(ctx, p.UserID, tier, p.DurationSec, jobID, "enqueue_failed"); refundErr != nil {
			m.logger.Error().Err(refundErr).
				Str("job_id", jobID).
				Str("user_id", p.UserID).
				Msg("queue: compensating refund failed")
		}
		return nil, fmt.Errorf("queue: insert job: %w", err)
	}

	return &domain.AudioJob{
		ID:          jobID,
		UserID:      p.UserID,
		Type:        p.Type,
		Status:      domain.JobStatusQueued,
		DurationSec: p.DurationSec,
		Preset:      p.Preset,
		Text:        p.Text,
		VoiceID:     p.VoiceID,
		CreatedAt:   time.Now(),
	}, nil
}
