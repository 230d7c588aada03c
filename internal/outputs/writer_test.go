package outputs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"monetiq/internal/domain"
	"monetiq/internal/sqlinline"
)

type memStore struct {
	written map[string][]byte
}

func (s *memStore) Write(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.written == nil {
		s.written = map[string][]byte{}
	}
	s.written[key] = data
	return key, nil
}

func (s *memStore) PublicURL(key string) string { return "https://cdn.test/" + key }

type outputRowData struct {
	id, jobID, userID, provider, key, url, mime string
	bytes                                       int64
}

type outputDB struct {
	rows      map[string]outputRowData // keyed by job id
	insertErr error
}

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

func (db *outputDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	switch query {
	case sqlinline.QInsertOutput:
		if db.insertErr != nil {
			err := db.insertErr
			return fakeRow{scan: func(...any) error { return err }}
		}
		jobID := args[0].(string)
		if _, exists := db.rows[jobID]; exists {
			return fakeRow{scan: func(...any) error {
				return &pgconn.PgError{Code: "23505", ConstraintName: "audio_outputs_job_id_key"}
			}}
		}
		row := outputRowData{
			id: "out-" + jobID, jobID: jobID, userID: args[1].(string),
			provider: args[2].(string), key: args[3].(string), url: args[4].(string),
			mime: args[5].(string), bytes: args[6].(int64),
		}
		if db.rows == nil {
			db.rows = map[string]outputRowData{}
		}
		db.rows[jobID] = row
		return fakeRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = row.id
			return nil
		}}
	case sqlinline.QSelectOutputByJob:
		row, ok := db.rows[args[0].(string)]
		if !ok {
			return fakeRow{}
		}
		return fakeRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = row.id
			*(dest[1].(*string)) = row.jobID
			*(dest[2].(*string)) = row.userID
			*(dest[3].(*string)) = row.provider
			*(dest[4].(*string)) = row.key
			*(dest[5].(*string)) = row.url
			*(dest[6].(*string)) = row.mime
			*(dest[7].(*int64)) = row.bytes
			*(dest[8].(*time.Time)) = time.Now()
			return nil
		}}
	}
	return fakeRow{scan: func(...any) error { return errors.New("unexpected query") }}
}

func (db *outputDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected exec")
}

func (db *outputDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}

func TestSaveStoresBlobAndInsertsRow(t *testing.T) {
	store := &memStore{}
	db := &outputDB{}
	writer := NewWriter(db, store, zerolog.Nop())

	out, err := writer.Save(context.Background(), []byte("mp3-bytes"), Meta{
		JobID: "job-1", UserID: "user-1", Provider: "minimax", MIME: "audio/mpeg",
	})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if out.StorageKey != "generated/audio/job-1/track.mp3" {
		t.Fatalf("unexpected storage key %q", out.StorageKey)
	}
	if out.PublicURL != "https://cdn.test/generated/audio/job-1/track.mp3" {
		t.Fatalf("unexpected public url %q", out.PublicURL)
	}
	if _, ok := store.written[out.StorageKey]; !ok {
		t.Fatal("blob missing from store")
	}
}

// A duplicate insert must be swallowed and resolve to the winning row.
func TestSaveToleratesDuplicateOutput(t *testing.T) {
	store := &memStore{}
	db := &outputDB{}
	writer := NewWriter(db, store, zerolog.Nop())
	ctx := context.Background()
	meta := Meta{JobID: "job-1", UserID: "user-1", Provider: "minimax", MIME: "audio/mpeg"}

	first, err := writer.Save(ctx, []byte("mp3-bytes"), meta)
	if err != nil {
		t.Fatalf("first Save error: %v", err)
	}
	second, err := writer.Save(ctx, []byte("mp3-bytes"), meta)
	if err != nil {
		t.Fatalf("duplicate Save should be benign, got: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the winning row, got %q vs %q", second.ID, first.ID)
	}
}

func TestSavePropagatesOtherInsertErrors(t *testing.T) {
	db := &outputDB{insertErr: errors.New("connection reset")}
	writer := NewWriter(db, &memStore{}, zerolog.Nop())

	_, err := writer.Save(context.Background(), []byte("x"), Meta{JobID: "job-1", UserID: "u", Provider: "p", MIME: "audio/wav"})
	if err == nil {
		t.Fatal("expected insert error to propagate")
	}
}

func TestSaveRejectsEmptyPayload(t *testing.T) {
	writer := NewWriter(&outputDB{}, &memStore{}, zerolog.Nop())
	if _, err := writer.Save(context.Background(), nil, Meta{JobID: "job-1"}); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestByJobMissing(t *testing.T) {
	writer := NewWriter(&outputDB{}, &memStore{}, zerolog.Nop())
	if _, err := writer.ByJob(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
