package worker

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"monetiq/internal/domain"
	"monetiq/internal/queue"
	"monetiq/internal/quota"
)

// NewWorkerID mints a fresh ownership token. ULIDs sort by mint time, which
// makes stuck-job sweeps and log correlation straightforward.
func NewWorkerID() string {
	return "worker-" + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Outcome reports the result of one claim-process cycle.
type Outcome struct {
	Job    *domain.AudioJob
	Result *Result
	Err    error
}

// Runner ties claim, dispatch and finalization together. The worker id is
// threaded explicitly through the whole chain; no call defaults it.
type Runner struct {
	claimer    *queue.Claimer
	jobs       *queue.Jobs
	dispatcher *Dispatcher
	ledger     *quota.Ledger
	logger     zerolog.Logger
}

func NewRunner(claimer *queue.Claimer, jobs *queue.Jobs, dispatcher *Dispatcher, ledger *quota.Ledger, logger zerolog.Logger) *Runner {
	return &Runner{claimer: claimer, jobs: jobs, dispatcher: dispatcher, ledger: ledger, logger: logger}
}

// RunOnce claims at most one job and drives it to a terminal state. Returns
// (nil, nil) when the queue is empty. A processing failure is reported inside
// the Outcome, not as the second return value: the job reached a terminal
// state, which is a successful cycle from the runner's perspective.
func (r *Runner) RunOnce(ctx context.Context, workerID string) (*Outcome, error) {
	job, err := r.claimer.Claim(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	result, err := r.dispatcher.Process(ctx, job)
	if err != nil {
		r.finalizeFailure(ctx, job, workerID, err)
		return &Outcome{Job: job, Err: err}, nil
	}

	if err := r.jobs.Complete(ctx, job.ID, workerID); err != nil {
		r.logger.Error().Err(err).
			Str("job_id", job.ID).
			Str("worker_id", workerID).
			Msg("worker: complete failed")
		return &Outcome{Job: job, Result: result, Err: err}, nil
	}
	return &Outcome{Job: job, Result: result}, nil
}

// finalizeFailure marks the job failed and refunds the reserved seconds.
// Both writes are best-effort: the error is already the job's outcome.
func (r *Runner) finalizeFailure(ctx context.Context, job *domain.AudioJob, workerID string, cause error) {
	if err := r.jobs.Fail(ctx, job.ID, workerID, cause.Error()); err != nil {
		r.logger.Error().Err(err).
			Str("job_id", job.ID).
			Str("worker_id", workerID).
			Msg("worker: fail transition failed")
	}
	if err := r.ledger.Refund(ctx, job.UserID, job.Type.QuotaTier(), job.DurationSec, job.ID, "job_failed"); err != nil {
		r.logger.Error().Err(err).
			Str("job_id", job.ID).
			Str("user_id", job.UserID).
			Msg("worker: quota refund failed")
	}
}
