package queue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"monetiq/internal/domain"
	"monetiq/internal/infra"
	"monetiq/internal/sqlinline"
)

// Jobs reads and finalizes audio job rows. Every status mutation takes the
// owning worker id explicitly; there is no defaulted ambient identity.
type Jobs struct {
	sql infra.SQLExecutor
}

func NewJobs(sql infra.SQLExecutor) *Jobs {
	return &Jobs{sql: sql}
}

// Get fetches a job by id.
func (j *Jobs) Get(ctx context.Context, jobID string) (*domain.AudioJob, error) {
	return scanJob(j.sql.QueryRow(ctx, sqlinline.QSelectAudioJob, jobID))
}

// GetForUser fetches a job scoped to its owner.
func (j *Jobs) GetForUser(ctx context.Context, jobID, userID string) (*domain.AudioJob, error) {
	return scanJob(j.sql.QueryRow(ctx, sqlinline.QSelectAudioJobForUser, jobID, userID))
}

// Complete transitions running->succeeded for the job owned by workerID.
// Returns ErrJobNotOwned when the ownership predicate matches no row.
func (j *Jobs) Complete(ctx context.Context, jobID, workerID string) error {
	if workerID == "" {
		return fmt.Errorf("queue: worker id is required to complete a job")
	}
	tag, err := j.sql.Exec(ctx, sqlinline.QCompleteAudioJob, jobID, workerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotOwned
	}
	return nil
}

// Fail transitions running->failed with the given message for the job owned
// by workerID.
func (j *Jobs) Fail(ctx context.Context, jobID, workerID, message string) error {
	if workerID == "" {
		return fmt.Errorf("queue: worker id is required to fail a job")
	}
	tag, err := j.sql.Exec(ctx, sqlinline.QFailAudioJob, jobID, workerID, message)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotOwned
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.AudioJob, error) {
	var job domain.AudioJob
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Type,
		&job.Status,
		&job.DurationSec,
		&job.Preset,
		&job.Text,
		&job.VoiceID,
		&job.WorkerID,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}
