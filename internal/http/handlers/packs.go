package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"

	"monetiq/internal/domain"
	"monetiq/internal/infra"
	"monetiq/internal/sqlinline"
	pkgzip "monetiq/pkg/zip"
)

type variantResponse struct {
	VariantID string    `json:"variant_id"`
	Angle     string    `json:"angle"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type generateShotsResponse struct {
	OK           bool   `json:"ok"`
	Message      string `json:"message"`
	VariantCount int    `json:"variant_count"`
}

// GenerateShots kicks off shot generation for every queued variant of the
// pack and returns immediately. Progress is observed by polling ListVariants.
func (a *App) GenerateShots(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	packID := chi.URLParam(r, "pack_id")

	if _, err := a.loadOwnedPack(r.Context(), packID, userID); err != nil {
		a.packError(w, err)
		return
	}
	variants, err := a.packVariants(r.Context(), sqlinline.QSelectVariantsForGeneration, packID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal_error", "failed to load variants")
		return
	}

	if len(variants) > 0 {
		a.Spawner.Run("generate-shots:"+packID, func(ctx context.Context) error {
			return a.Shots.GeneratePack(ctx, packID)
		})
	}
	a.json(w, http.StatusAccepted, generateShotsResponse{
		OK:           true,
		Message:      fmt.Sprintf("shot generation started for %d variant(s)", len(variants)),
		VariantCount: len(variants),
	})
}

// ListVariants returns the status of every variant in the pack, for polling.
func (a *App) ListVariants(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	packID := chi.URLParam(r, "pack_id")

	if _, err := a.loadOwnedPack(r.Context(), packID, userID); err != nil {
		a.packError(w, err)
		return
	}
	variants, err := a.packVariants(r.Context(), sqlinline.QSelectPackVariants, packID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal_error", "failed to load variants")
		return
	}

	resp := make([]variantResponse, 0, len(variants))
	for _, v := range variants {
		resp = append(resp, variantResponse{
			VariantID: v.ID,
			Angle:     v.Angle,
			Status:    string(v.Status),
			Error:     v.ErrorMessage,
			UpdatedAt: v.UpdatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"pack_id": packID, "variants": resp})
}

// ExportPack streams a zip of every stored shot asset in the pack.
func (a *App) ExportPack(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	packID := chi.URLParam(r, "pack_id")

	if _, err := a.loadOwnedPack(r.Context(), packID, userID); err != nil {
		a.packError(w, err)
		return
	}
	variants, err := a.packVariants(r.Context(), sqlinline.QSelectPackVariants, packID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal_error", "failed to load variants")
		return
	}

	var assets []pkgzip.Asset
	for _, v := range variants {
		keys, err := a.variantShotKeys(r.Context(), v.ID)
		if err != nil {
			a.error(w, http.StatusInternalServerError, "internal_error", "failed to load shots")
			return
		}
		for _, key := range keys {
			data, err := a.Reader.Read(r.Context(), key)
			if err != nil {
				a.Logger.Warn().Err(err).Str("storage_key", key).Msg("http: export skipping unreadable asset")
				continue
			}
			assets = append(assets, pkgzip.Asset{
				Filename: v.ID + "-" + path.Base(key),
				Data:     data,
			})
		}
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no stored shots to export")
		return
	}

	blob, err := pkgzip.ArchiveAssets(assets)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal_error", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "pack-"+packID+".zip"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(blob); err != nil {
		a.Logger.Error().Err(err).Str("pack_id", packID).Msg("http: export write failed")
	}
}

func (a *App) packError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized) {
		a.error(w, http.StatusNotFound, "not_found", "pack not found")
		return
	}
	a.error(w, http.StatusInternalServerError, "internal_error", "failed to load pack")
}

// loadOwnedPack loads the pack and enforces ownership. A pack owned by
// someone else reads as not found to avoid leaking pack ids.
func (a *App) loadOwnedPack(ctx context.Context, packID, userID string) (*domain.AdPack, error) {
	row := a.SQL.QueryRow(ctx, sqlinline.QSelectAdPack, packID)
	var pack domain.AdPack
	if err := row.Scan(&pack.ID, &pack.UserID, &pack.ProductName, &pack.Brief,
		&pack.ReferenceImageURLs, &pack.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if pack.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	return &pack, nil
}

func (a *App) packVariants(ctx context.Context, query, packID string) ([]domain.Variant, error) {
	rows, err := a.SQL.Query(ctx, query, packID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.PackID, &v.UserID, &v.Angle, &v.Status,
			&v.ErrorMessage, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// variantShotKeys returns the storage keys of every successfully stored shot.
func (a *App) variantShotKeys(ctx context.Context, variantID string) ([]string, error) {
	rows, err := a.SQL.Query(ctx, sqlinline.QSelectVariantShots, variantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var shot domain.ShotResult
		if err := rows.Scan(&shot.VariantID, &shot.Index, &shot.Type, &shot.Role,
			&shot.Attempt, &shot.StorageKey, &shot.Error, &shot.CreatedAt); err != nil {
			return nil, err
		}
		if shot.StorageKey != "" {
			keys = append(keys, shot.StorageKey)
		}
	}
	return keys, rows.Err()
}
