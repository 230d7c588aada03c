package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"monetiq/internal/http/handlers"
	httpapi "monetiq/internal/http/httpapi"
	"monetiq/internal/infra"
	"monetiq/internal/infra/credentials"
	"monetiq/internal/infra/geoip"
	"monetiq/internal/middleware"
	"monetiq/internal/outputs"
	imageprovider "monetiq/internal/providers/image"
	"monetiq/internal/queue"
	"monetiq/internal/quota"
	"monetiq/internal/shots"
	"monetiq/internal/storage"
	"monetiq/internal/tasks"
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
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	store, reader, err := buildStorage(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: storage configuration failed")
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	} else if resolver != nil {
		lookup = resolver.CountryCode
	}

	ledger := quota.NewLedger(runner)
	jobs := queue.NewJobs(runner)
	writer := outputs.NewWriter(runner, store, logger)
	dispatcher := worker.NewDispatcher(worker.DefaultAdapters(cfg), writer, runner, logger)
	claimer := queue.NewClaimer(runner, logger)

	geminiKey := resolveGeminiKey(ctx, cfg, runner, logger)
	shotsRunner := shots.NewRunner(runner, imageprovider.NewGeminiGenerator(imageprovider.GeminiOptions{
		APIKey:  geminiKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
	}), store, logger)

	app := &handlers.App{
		SQL:     runner,
		Manager: queue.NewManager(runner, ledger, logger),
		Jobs:    jobs,
		Ledger:  ledger,
		Runner:  worker.NewRunner(claimer, jobs, dispatcher, ledger, logger),
		Shots:   shotsRunner,
		Spawner: tasks.NewSpawner(logger, cfg.SpawnTaskTimeout),
		Outputs: writer,
		Store:   store,
		Reader:  reader,
		Logger:  logger,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, cfg, lookup))

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api: listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: shutdown failed")
	}
	app.Spawner.Wait()
	logger.Info().Msg("api: stopped")
}

func buildStorage(cfg *infra.Config) (storage.Store, storage.Reader, error) {
	if cfg.StorageBackend == "supabase" {
		s, err := storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	s, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		return nil, nil, err
	}
	return s, s, nil
}

// resolveGeminiKey prefers the environment, falling back to the key stored
// through cmd/providerkey.
func resolveGeminiKey(ctx context.Context, cfg *infra.Config, runner *infra.SQLRunner, logger infra.Logger) string {
	if key := strings.TrimSpace(cfg.GeminiAPIKey); key != "" {
		return key
	}
	key, err := credentials.NewStore(runner).APIKey(ctx, credentials.ProviderGemini)
	if err != nil {
		logger.Warn().Err(err).Msg("api: gemini key lookup failed")
	}
	if key == "" {
		logger.Warn().Msg("api: gemini key not configured, using synthetic shot generation")
	}
	return key
}
