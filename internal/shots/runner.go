package shots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"monetiq/internal/domain"
	"monetiq/internal/infra"
	imageprovider "monetiq/internal/providers/image"
	"monetiq/internal/sqlinline"
	"monetiq/internal/storage"
)

const (
	// maxPlanRetries bounds how many plans a variant may burn through.
	// A plan is abandoned on validation failure, a dead hook shot, or a
	// partial result; only an all-shots success ends the loop early.
	maxPlanRetries = 3
	// maxShotRetries bounds generation calls per shot within one plan.
	maxShotRetries = 2
)

// Runner drives a variant from queued to a terminal shot-generation state.
// Generation cost is bounded above by maxPlanRetries * PlanShotCount *
// maxShotRetries calls, and a failed hook aborts its plan before any later
// shot spends a call.
type Runner struct {
	sql    infra.SQLExecutor
	gen    imageprovider.Generator
	store  storage.Store
	logger zerolog.Logger
}

func NewRunner(sql infra.SQLExecutor, gen imageprovider.Generator, store storage.Store, logger zerolog.Logger) *Runner {
	return &Runner{sql: sql, gen: gen, store: store, logger: logger}
}

// GeneratePack runs shot generation for every still-queued variant of the
// pack, sequentially. A variant failure never stops the remaining variants.
func (r *Runner) GeneratePack(ctx context.Context, packID string) error {
	pack, err := r.loadPack(ctx, packID)
	if err != nil {
		return err
	}
	variants, err := r.queuedVariants(ctx, packID)
	if err != nil {
		return err
	}
	for i := range variants {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.GenerateVariant(ctx, pack, &variants[i]); err != nil {
			r.logger.Error().Err(err).
				Str("pack_id", packID).
				Str("variant_id", variants[i].ID).
				Msg("shots: variant generation errored")
		}
	}
	return nil
}

// GenerateVariant runs the bounded plan/shot retry loop for one variant and
// writes its terminal status. The returned error covers infrastructure
// failures only; generation outcomes (ready, partial, failed) are reported
// through the variant status.
func (r *Runner) GenerateVariant(ctx context.Context, pack *domain.AdPack, variant *domain.Variant) error {
	if err := r.setStatus(ctx, variant.ID, domain.VariantStatusGenerating, ""); err != nil {
		return err
	}

	var lastErr error
	partial := false
	for attempt := 1; attempt <= maxPlanRetries; attempt++ {
		plan := BuildPlan(PlanSeed(variant.ID, attempt, time.Now()), pack, variant)
		if err := plan.Validate(); err != nil {
			r.logger.Warn().Err(err).
				Str("variant_id", variant.ID).
				Int("attempt", attempt).
				Msg("shots: plan rejected, replanning")
			lastErr = err
			continue
		}

		status, err := r.runPlan(ctx, variant, plan, attempt)
		if err != nil {
			if errors.Is(err, domain.ErrHookShotFailed) {
				r.logger.Warn().
					Str("variant_id", variant.ID).
					Int("attempt", attempt).
					Msg("shots: hook shot dead, abandoning plan")
				lastErr = err
				continue
			}
			// Storage or database trouble, not a generation outcome.
			if statusErr := r.setStatus(ctx, variant.ID, domain.VariantStatusGenerationError, err.Error()); statusErr != nil {
				r.logger.Error().Err(statusErr).Str("variant_id", variant.ID).Msg("shots: status write failed")
			}
			return err
		}

		if status == domain.VariantStatusShotsPartial {
			// A dead non-hook shot discards the whole plan too; partial is
			// only ever a terminal state, never a reason to stop replanning.
			r.logger.Warn().
				Str("variant_id", variant.ID).
				Int("attempt", attempt).
				Msg("shots: plan ended partial, replanning")
			partial = true
			continue
		}

		r.logger.Info().
			Str("variant_id", variant.ID).
			Int("attempt", attempt).
			Str("status", string(status)).
			Msg("shots: variant finished")
		return r.setStatus(ctx, variant.ID, status, "")
	}

	if partial {
		r.logger.Info().
			Str("variant_id", variant.ID).
			Msg("shots: plan budget exhausted with partial results")
		return r.setStatus(ctx, variant.ID, domain.VariantStatusShotsPartial, "")
	}

	msg := "plan retry budget exhausted"
	if lastErr != nil {
		msg = fmt.Sprintf("%s: %s", msg, lastErr)
	}
	return r.setStatus(ctx, variant.ID, domain.VariantStatusGenerationError, msg)
}

// runPlan generates every shot of an accepted plan in order. A dead hook
// returns ErrHookShotFailed before any later shot is attempted; dead non-hook
// shots are recorded and the remaining shots still run, so the attempt's rows
// are complete when the caller decides whether to replan.
func (r *Runner) runPlan(ctx context.Context, variant *domain.Variant, plan *domain.ShotPlan, attempt int) (domain.VariantStatus, error) {
	failed := 0
	for _, shot := range plan.Shots {
		key, genErr := r.generateShot(ctx, variant.ID, shot)
		if genErr != nil {
			if shot.Type == domain.ShotTypeHook {
				if err := r.recordShot(ctx, variant.ID, shot, attempt, "", genErr.Error()); err != nil {
					return "", err
				}
				return "", fmt.Errorf("%w: %s", domain.ErrHookShotFailed, genErr)
			}
			failed++
			if err := r.recordShot(ctx, variant.ID, shot, attempt, "", genErr.Error()); err != nil {
				return "", err
			}
			continue
		}
		if err := r.recordShot(ctx, variant.ID, shot, attempt, key, ""); err != nil {
			return "", err
		}
	}
	if failed > 0 {
		return domain.VariantStatusShotsPartial, nil
	}
	return domain.VariantStatusShotsReady, nil
}

// generateShot spends up to maxShotRetries calls on one shot and stores the
// first asset that comes back.
func (r *Runner) generateShot(ctx context.Context, variantID string, shot domain.Shot) (string, error) {
	var lastErr error
	for try := 1; try <= maxShotRetries; try++ {
		asset, err := r.gen.GenerateShot(ctx, imageprovider.ShotRequest{
			VariantID:   variantID,
			ShotIndex:   shot.Index,
			Prompt:      Prompt(shot),
			AspectRatio: "9:16",
		})
		if err != nil {
			lastErr = err
			r.logger.Warn().Err(err).
				Str("variant_id", variantID).
				Int("shot_index", shot.Index).
				Int("try", try).
				Msg("shots: generation call failed")
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		key := fmt.Sprintf("generated/shots/%s/shot-%d%s", variantID, shot.Index, extensionForMIME(asset.MIME))
		storedKey, err := r.store.Write(ctx, key, asset.Data, asset.MIME)
		if err != nil {
			return "", fmt.Errorf("shots: store asset: %w", err)
		}
		return storedKey, nil
	}
	return "", lastErr
}

func (r *Runner) recordShot(ctx context.Context, variantID string, shot domain.Shot, attempt int, storageKey, genError string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QUpsertShotResult,
		variantID, shot.Index, string(shot.Type), string(shot.Role), attempt, storageKey, genError,
	); err != nil {
		return fmt.Errorf("shots: record shot %d: %w", shot.Index, err)
	}
	return nil
}

func (r *Runner) setStatus(ctx context.Context, variantID string, status domain.VariantStatus, msg string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QUpdateVariantStatus, variantID, string(status), msg); err != nil {
		return fmt.Errorf("shots: update variant status: %w", err)
	}
	return nil
}

func (r *Runner) loadPack(ctx context.Context, packID string) (*domain.AdPack, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectAdPack, packID)
	var pack domain.AdPack
	if err := row.Scan(&pack.ID, &pack.UserID, &pack.ProductName, &pack.Brief,
		&pack.ReferenceImageURLs, &pack.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("shots: load pack: %w", err)
	}
	return &pack, nil
}

func (r *Runner) queuedVariants(ctx context.Context, packID string) ([]domain.Variant, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectVariantsForGeneration, packID)
	if err != nil {
		return nil, fmt.Errorf("shots: list queued variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.PackID, &v.UserID, &v.Angle, &v.Status,
			&v.ErrorMessage, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("shots: scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func extensionForMIME(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
