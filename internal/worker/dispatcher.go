package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"monetiq/internal/domain"
	"monetiq/internal/infra"
	"monetiq/internal/outputs"
	audioprovider "monetiq/internal/providers/audio"
	"monetiq/internal/sqlinline"
)

const usageEventAudioGeneration = "audio_generation"

// Result describes a completed generation.
type Result struct {
	Provider  string
	OutputID  string
	PublicURL string
}

// Dispatcher selects the provider adapter for a job's audio type, invokes it
// with structured start/success/failure logging, and hands the blob to the
// output writer. The adapter table is closed at construction: one binding per
// audio type.
type Dispatcher struct {
	adapters map[domain.AudioType]audioprovider.Generator
	writer   *outputs.Writer
	sql      infra.SQLExecutor
	logger   zerolog.Logger
}

func NewDispatcher(
	adapters map[domain.AudioType]audioprovider.Generator,
	writer *outputs.Writer,
	sql infra.SQLExecutor,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{adapters: adapters, writer: writer, sql: sql, logger: logger}
}

// DefaultAdapters binds each audio type to its production provider.
func DefaultAdapters(cfg *infra.Config) map[domain.AudioType]audioprovider.Generator {
	return map[domain.AudioType]audioprovider.Generator{
		domain.AudioTypeMusic: audioprovider.NewMiniMaxGenerator(audioprovider.MiniMaxOptions{
			APIKey: cfg.MiniMaxAPIKey, BaseURL: cfg.MiniMaxBaseURL,
		}),
		domain.AudioTypeSpeech: audioprovider.NewElevenLabsGenerator(audioprovider.ElevenLabsOptions{
			APIKey: cfg.ElevenLabsAPIKey, BaseURL: cfg.ElevenLabsBase,
		}),
		domain.AudioTypeNarration: audioprovider.NewPollyGenerator(audioprovider.PollyOptions{
			Endpoint: cfg.PollyEndpoint, AccessKey: cfg.PollyAccessKey, SecretKey: cfg.PollySecretKey,
		}),
	}
}

// Process runs the generation for a claimed job and persists the output.
// Provider failures are logged with their structured code and re-thrown to
// the caller, which owns the job-level failure handling.
func (d *Dispatcher) Process(ctx context.Context, job *domain.AudioJob) (*Result, error) {
	adapter, ok := d.adapters[job.Type]
	if !ok {
		return nil, fmt.Errorf("worker: no adapter bound for audio type %q", job.Type)
	}

	provider := adapter.Name()
	d.logger.Info().
		Str("job_id", job.ID).
		Str("provider", provider).
		Str("audio_type", string(job.Type)).
		Msg("worker: generation started")

	start := time.Now()
	asset, err := adapter.Generate(ctx, audioprovider.GenerateRequest{
		JobID:       job.ID,
		UserID:      job.UserID,
		DurationSec: job.DurationSec,
		Preset:      job.Preset,
		Text:        job.Text,
		VoiceID:     job.VoiceID,
	})
	latency := time.Since(start)

	if err != nil {
		code := domain.ProviderErrorCode(err)
		d.logger.Error().Err(err).
			Str("job_id", job.ID).
			Str("provider", provider).
			Str("error_code", code).
			Dur("latency", latency).
			Msg("worker: generation failed")
		d.recordUsage(ctx, job, provider, false, latency, map[string]any{
			"provider":   provider,
			"audio_type": string(job.Type),
			"error_code": code,
		})
		return nil, err
	}

	out, err := d.writer.Save(ctx, asset.Data, outputs.Meta{
		JobID:    job.ID,
		UserID:   job.UserID,
		Provider: provider,
		MIME:     asset.MIME,
	})
	if err != nil {
		d.recordUsage(ctx, job, provider, false, latency, map[string]any{
			"provider":   provider,
			"audio_type": string(job.Type),
			"error_code": domain.UnknownErrorCode,
		})
		return nil, err
	}

	d.logger.Info().
		Str("job_id", job.ID).
		Str("provider", provider).
		Str("output_id", out.ID).
		Dur("latency", latency).
		Msg("worker: generation succeeded")
	d.recordUsage(ctx, job, provider, true, latency, map[string]any{
		"provider":     provider,
		"audio_type":   string(job.Type),
		"duration_sec": job.DurationSec,
		"output_id":    out.ID,
		"storage_key":  out.StorageKey,
		"mime":         out.MIME,
	})

	return &Result{Provider: provider, OutputID: out.ID, PublicURL: out.PublicURL}, nil
}

func (d *Dispatcher) recordUsage(ctx context.Context, job *domain.AudioJob, provider string, success bool, latency time.Duration, props map[string]any) {
	payload, err := json.Marshal(SanitizeProperties(props))
	if err != nil {
		payload = []byte("{}")
	}
	if _, err := d.sql.Exec(ctx, sqlinline.QInsertUsageEvent,
		job.UserID, job.ID, usageEventAudioGeneration, success, int(latency.Milliseconds()), payload,
	); err != nil {
		d.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: usage event insert failed")
	}
}

// usagePropertyAllowList names the only fields that may reach the persisted
// usage-event payload. Provider SDKs tuck credentials and signed URLs into
// arbitrary metadata; everything not named here is dropped.
var usagePropertyAllowList = map[string]struct{}{
	"provider":     {},
	"audio_type":   {},
	"duration_sec": {},
	"preset":       {},
	"voice_id":     {},
	"error_code":   {},
	"output_id":    {},
	"storage_key":  {},
	"mime":         {},
	"latency_ms":   {},
}

// SanitizeProperties filters props through the allow-list.
func SanitizeProperties(props map[string]any) map[string]any {
	clean := make(map[string]any, len(props))
	for k, v := range props {
		if _, ok := usagePropertyAllowList[k]; ok {
			clean[k] = v
		}
	}
	return clean
}
