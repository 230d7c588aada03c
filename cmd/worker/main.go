package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"monetiq/internal/infra"
	"monetiq/internal/infra/credentials"
	"monetiq/internal/outputs"
	"monetiq/internal/queue"
	"monetiq/internal/quota"
	"monetiq/internal/storage"
	"monetiq/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	store, err := buildStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: storage configuration failed")
	}

	fillProviderKeys(ctx, cfg, runner, logger)

	ledger := quota.NewLedger(runner)
	jobs := queue.NewJobs(runner)
	writer := outputs.NewWriter(runner, store, logger)
	dispatcher := worker.NewDispatcher(worker.DefaultAdapters(cfg), writer, runner, logger)
	claimer := queue.NewClaimer(runner, logger)
	loop := worker.NewRunner(claimer, jobs, dispatcher, ledger, logger)

	workerID := worker.NewWorkerID()
	logger.Info().Str("worker_id", workerID).Msg("worker: started")

	if err := poll(ctx, loop, workerID, cfg.WorkerPollInterval, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Str("worker_id", workerID).Msg("worker: stopped")
}

// poll claims and processes jobs until the context is cancelled. A failed job
// or a claim error never stops the loop.
func poll(ctx context.Context, loop *worker.Runner, workerID string, interval time.Duration, logger infra.Logger) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	for {
		outcome, err := loop.RunOnce(ctx, workerID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error().Err(err).Msg("worker: claim cycle failed")
		case outcome == nil:
			// Queue empty, fall through to the poll sleep.
		case outcome.Err != nil:
			logger.Warn().
				Str("job_id", outcome.Job.ID).
				Err(outcome.Err).
				Msg("worker: job finished failed")
			continue
		default:
			logger.Info().
				Str("job_id", outcome.Job.ID).
				Str("output_id", outcome.Result.OutputID).
				Msg("worker: job finished")
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func buildStore(cfg *infra.Config) (storage.Store, error) {
	if cfg.StorageBackend == "supabase" {
		return storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket)
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}

// fillProviderKeys backfills missing provider credentials from the database
// store. Providers left without a key fall back to synthetic generation.
func fillProviderKeys(ctx context.Context, cfg *infra.Config, runner *infra.SQLRunner, logger infra.Logger) {
	creds := credentials.NewStore(runner)
	if strings.TrimSpace(cfg.MiniMaxAPIKey) == "" {
		key, err := creds.APIKey(ctx, credentials.ProviderMiniMax)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: minimax key lookup failed")
		}
		cfg.MiniMaxAPIKey = key
		if key == "" {
			logger.Warn().Msg("worker: minimax key not configured, music jobs use synthetic output")
		}
	}
	if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
		key, err := creds.APIKey(ctx, credentials.ProviderElevenLabs)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: elevenlabs key lookup failed")
		}
		cfg.ElevenLabsAPIKey = key
		if key == "" {
			logger.Warn().Msg("worker: elevenlabs key not configured, speech jobs use synthetic output")
		}
	}
}
