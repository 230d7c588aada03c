package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"monetiq/internal/domain"
	"monetiq/internal/infra"
	"monetiq/internal/sqlinline"
)

const (
	defaultCandidateBatch = 5
	defaultClaimRetries   = 3
	defaultClaimDelay     = 100 * time.Millisecond
)

// Claimer performs optimistic job claiming: no locks are held, correctness
// rests on the conditional update matching the queued status at write time.
// A candidate another worker got first simply scans no rows and the next
// candidate is tried.
type Claimer struct {
	sql        infra.SQLExecutor
	logger     zerolog.Logger
	batchSize  int
	maxRetries int
	retryDelay time.Duration
}

// ClaimerOption tunes claim behavior, mainly for tests.
type ClaimerOption func(*Claimer)

func WithBatchSize(n int) ClaimerOption {
	return func(c *Claimer) { c.batchSize = n }
}

func WithMaxRetries(n int) ClaimerOption {
	return func(c *Claimer) { c.maxRetries = n }
}

func WithRetryDelay(d time.Duration) ClaimerOption {
	return func(c *Claimer) { c.retryDelay = d }
}

func NewClaimer(sql infra.SQLExecutor, logger zerolog.Logger, opts ...ClaimerOption) *Claimer {
	c := &Claimer{
		sql:        sql,
		logger:     logger,
		batchSize:  defaultCandidateBatch,
		maxRetries: defaultClaimRetries,
		retryDelay: defaultClaimDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Claim transitions at most one queued job to running, owned by workerID.
// An empty queue is not an error: (nil, nil) is returned, also after all
// retries found only candidates lost to concurrent workers.
func (c *Claimer) Claim(ctx context.Context, workerID string) (*domain.AudioJob, error) {
	if workerID == "" {
		return nil, domain.ErrJobNotOwned
	}
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		candidates, err := c.fetchCandidates(ctx)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, nil
		}
		for _, id := range candidates {
			job, err := c.tryClaim(ctx, id, workerID)
			if err != nil {
				return nil, err
			}
			if job != nil {
				c.logger.Info().
					Str("job_id", job.ID).
					Str("worker_id", workerID).
					Int("attempt", attempt).
					Msg("queue: job claimed")
				return job, nil
			}
			// Lost the race for this candidate; not an error.
		}
		c.logger.Debug().
			Str("worker_id", workerID).
			Int("attempt", attempt).
			Int("candidates", len(candidates)).
			Msg("queue: all candidates claimed elsewhere, refetching")
		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}
	return nil, nil
}

func (c *Claimer) fetchCandidates(ctx context.Context) ([]string, error) {
	rows, err := c.sql.Query(ctx, sqlinline.QSelectClaimCandidates, c.batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// tryClaim attempts the atomic queued->running transition for one candidate.
// Returns (nil, nil) when the row was no longer queued.
func (c *Claimer) tryClaim(ctx context.Context, jobID, workerID string) (*domain.AudioJob, error) {
	job, err := scanJob(c.sql.QueryRow(ctx, sqlinline.QClaimAudioJob, jobID, workerID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}
