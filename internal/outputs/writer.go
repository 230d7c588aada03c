package outputs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"monetiq/internal/domain"
	"monetiq/internal/infra"
	"monetiq/internal/sqlinline"
	"monetiq/internal/storage"
)

// Meta describes the owning job for a generated blob.
type Meta struct {
	JobID    string
	UserID   string
	Provider string
	MIME     string
}

// Writer persists generated binaries through the pluggable object store and
// records one output row per job. A duplicate insert caused by a concurrent
// retry is treated as already-succeeded, not as an error.
type Writer struct {
	sql    infra.SQLExecutor
	store  storage.Store
	logger zerolog.Logger
}

func NewWriter(sql infra.SQLExecutor, store storage.Store, logger zerolog.Logger) *Writer {
	return &Writer{sql: sql, store: store, logger: logger}
}

// Save stores data and inserts the output row. On a unique-constraint
// violation the existing row is loaded and returned; any other database
// error propagates so the caller treats the job as failed.
func (w *Writer) Save(ctx context.Context, data []byte, meta Meta) (*domain.Output, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("outputs: empty payload for job %s", meta.JobID)
	}

	key := storageKey(meta)
	storedKey, err := w.store.Write(ctx, key, data, meta.MIME)
	if err != nil {
		return nil, fmt.Errorf("outputs: store blob: %w", err)
	}
	publicURL := w.store.PublicURL(storedKey)

	row := w.sql.QueryRow(ctx, sqlinline.QInsertOutput,
		meta.JobID, meta.UserID, meta.Provider, storedKey, publicURL, meta.MIME, int64(len(data)),
	)
	var outputID string
	if err := row.Scan(&outputID); err != nil {
		if infra.IsUniqueViolation(err) {
			// Lost a duplicate-insert race; the winning row is authoritative.
			w.logger.Warn().Str("job_id", meta.JobID).Msg("outputs: duplicate row tolerated")
			return w.ByJob(ctx, meta.JobID)
		}
		return nil, fmt.Errorf("outputs: insert row: %w", err)
	}

	return &domain.Output{
		ID:         outputID,
		JobID:      meta.JobID,
		UserID:     meta.UserID,
		Provider:   meta.Provider,
		StorageKey: storedKey,
		PublicURL:  publicURL,
		MIME:       meta.MIME,
		Bytes:      int64(len(data)),
	}, nil
}

// ByJob fetches the output row owned by jobID.
func (w *Writer) ByJob(ctx context.Context, jobID string) (*domain.Output, error) {
	row := w.sql.QueryRow(ctx, sqlinline.QSelectOutputByJob, jobID)
	var out domain.Output
	if err := row.Scan(&out.ID, &out.JobID, &out.UserID, &out.Provider,
		&out.StorageKey, &out.PublicURL, &out.MIME, &out.Bytes, &out.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func storageKey(meta Meta) string {
	return fmt.Sprintf("generated/audio/%s/track%s", meta.JobID, extensionForMIME(meta.MIME))
}

func extensionForMIME(mime string) string {
	switch mime {
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".bin"
	}
}
