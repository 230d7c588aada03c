package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"monetiq/internal/domain"
	"monetiq/internal/outputs"
	audioprovider "monetiq/internal/providers/audio"
	"monetiq/internal/queue"
	"monetiq/internal/quota"
	"monetiq/internal/sqlinline"
	"monetiq/internal/storage"
)

type jobState struct {
	id, userID, audioType, status, workerID, errMsg string
	durationSec, seq                                int
	createdAt                                       time.Time
	startedAt, completedAt                          *time.Time
}

type usageEvent struct {
	jobID     string
	eventType string
	success   bool
	props     map[string]any
}

type workerDB struct {
	mu      sync.Mutex
	seq     int
	jobs    map[string]*jobState
	outputs map[string]string // job id -> output id
	ledger  []domain.LedgerEntry
	premium map[string]int
	events  []usageEvent
}

func newWorkerDB() *workerDB {
	return &workerDB{
		jobs:    map[string]*jobState{},
		outputs: map[string]string{},
		premium: map[string]int{},
	}
}

func (db *workerDB) addQueuedJob(id, userID string, dur int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seq++
	db.jobs[id] = &jobState{
		id: id, userID: userID, audioType: "music", status: "queued",
		durationSec: dur, seq: db.seq, createdAt: time.Now(),
	}
}

type row struct{ scan func(dest ...any) error }

func (r row) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type rowsBase struct{}

func (rowsBase) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (rowsBase) Conn() *pgx.Conn                              { return nil }
func (rowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (rowsBase) Values() ([]any, error)                       { return nil, fmt.Errorf("not supported") }
func (rowsBase) RawValues() [][]byte                          { return nil }

type idRows struct {
	rowsBase
	ids []string
	pos int
}

func (r *idRows) Close()     {}
func (r *idRows) Err() error { return nil }
func (r *idRows) Next() bool { r.pos++; return r.pos <= len(r.ids) }
func (r *idRows) Scan(dest ...any) error {
	*(dest[0].(*string)) = r.ids[r.pos-1]
	return nil
}

func (db *workerDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if query != sqlinline.QSelectClaimCandidates {
		return nil, errors.New("unexpected query")
	}
	var queued []*jobState
	for _, j := range db.jobs {
		if j.status == "queued" {
			queued = append(queued, j)
		}
	}
	sort.Slice(queued, func(a, b int) bool { return queued[a].seq < queued[b].seq })
	if limit := args[0].(int); len(queued) > limit {
		queued = queued[:limit]
	}
	ids := make([]string, len(queued))
	for i, j := range queued {
		ids[i] = j.id
	}
	return &idRows{ids: ids}, nil
}

func (db *workerDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	db.mu.Lock()
	defer db.mu.Unlock()
	switch query {
	case sqlinline.QClaimAudioJob:
		j, ok := db.jobs[args[0].(string)]
		if !ok || j.status != "queued" {
			return row{}
		}
		now := time.Now()
		j.status = "running"
		j.workerID = args[1].(string)
		j.startedAt = &now
		snap := *j
		return row{scan: func(dest ...any) error { return scanJobState(snap, dest) }}
	case sqlinline.QInsertOutput:
		jobID := args[0].(string)
		if _, exists := db.outputs[jobID]; exists {
			return row{scan: func(...any) error { return &pgconn.PgError{Code: "23505"} }}
		}
		id := "out-" + jobID
		db.outputs[jobID] = id
		return row{scan: func(dest ...any) error {
			*(dest[0].(*string)) = id
			return nil
		}}
	}
	return row{scan: func(...any) error { return errors.New("unexpected query") }}
}

func (db *workerDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	switch query {
	case sqlinline.QCompleteAudioJob:
		j, ok := db.jobs[args[0].(string)]
		if !ok || j.workerID != args[1].(string) || j.status != "running" {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		now := time.Now()
		j.status = "succeeded"
		j.completedAt = &now
		return pgconn.NewCommandTag("UPDATE 1"), nil
	case sqlinline.QFailAudioJob:
		j, ok := db.jobs[args[0].(string)]
		if !ok || j.workerID != args[1].(string) || j.status != "running" {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		now := time.Now()
		j.status = "failed"
		j.errMsg = args[2].(string)
		j.completedAt = &now
		return pgconn.NewCommandTag("UPDATE 1"), nil
	case sqlinline.QRefundQuotaPremium, sqlinline.QRefundQuotaStandard:
		userID := args[0].(string)
		seconds := args[1].(int)
		db.premium[userID] += seconds
		jobID := ""
		if s, ok := args[2].(string); ok {
			jobID = s
		}
		db.ledger = append(db.ledger, domain.LedgerEntry{
			UserID: userID, Action: domain.LedgerActionRefund, Amount: seconds,
			JobID: jobID, Reason: args[3].(string),
		})
		return pgconn.NewCommandTag("UPDATE 1"), nil
	case sqlinline.QInsertUsageEvent:
		var props map[string]any
		_ = json.Unmarshal(args[5].([]byte), &props)
		db.events = append(db.events, usageEvent{
			jobID:     args[1].(string),
			eventType: args[2].(string),
			success:   args[3].(bool),
			props:     props,
		})
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected exec")
}

func scanJobState(j jobState, dest []any) error {
	*(dest[0].(*string)) = j.id
	*(dest[1].(*string)) = j.userID
	*(dest[2].(*domain.AudioType)) = domain.AudioType(j.audioType)
	*(dest[3].(*domain.JobStatus)) = domain.JobStatus(j.status)
	*(dest[4].(*int)) = j.durationSec
	*(dest[5].(*string)) = ""
	*(dest[6].(*string)) = ""
	*(dest[7].(*string)) = ""
	*(dest[8].(*string)) = j.workerID
	*(dest[9].(*string)) = j.errMsg
	*(dest[10].(*time.Time)) = j.createdAt
	*(dest[11].(**time.Time)) = j.startedAt
	*(dest[12].(**time.Time)) = j.completedAt
	return nil
}

type fakeGenerator struct {
	name string
	data []byte
	err  error
}

func (g *fakeGenerator) Name() string { return g.name }

func (g *fakeGenerator) Generate(ctx context.Context, req audioprovider.GenerateRequest) (*audioprovider.Asset, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &audioprovider.Asset{Data: g.data, MIME: "audio/mpeg"}, nil
}

type nullStore struct{}

func (nullStore) Write(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return key, nil
}

func (nullStore) PublicURL(key string) string { return "https://cdn.test/" + key }

var _ storage.Store = nullStore{}

func testRunner(db *workerDB, gen audioprovider.Generator) *Runner {
	logger := zerolog.Nop()
	writer := outputs.NewWriter(db, nullStore{}, logger)
	dispatcher := NewDispatcher(map[domain.AudioType]audioprovider.Generator{
		domain.AudioTypeMusic: gen,
	}, writer, db, logger)
	claimer := queue.NewClaimer(db, logger, queue.WithRetryDelay(time.Millisecond))
	return NewRunner(claimer, queue.NewJobs(db), dispatcher, quota.NewLedger(db), logger)
}

func TestRunOnceEmptyQueue(t *testing.T) {
	runner := testRunner(newWorkerDB(), &fakeGenerator{name: "minimax"})
	outcome, err := runner.RunOnce(context.Background(), NewWorkerID())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if outcome != nil {
		t.Fatalf("expected nil outcome for empty queue, got %+v", outcome)
	}
}

func TestRunOnceSuccess(t *testing.T) {
	db := newWorkerDB()
	db.addQueuedJob("job-1", "user-1", 30)
	runner := testRunner(db, &fakeGenerator{name: "minimax", data: []byte("mp3")})

	outcome, err := runner.RunOnce(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if outcome == nil || outcome.Err != nil {
		t.Fatalf("expected success outcome, got %+v", outcome)
	}
	if db.jobs["job-1"].status != "succeeded" {
		t.Fatalf("expected succeeded, got %s", db.jobs["job-1"].status)
	}
	if outcome.Result.OutputID != "out-job-1" {
		t.Fatalf("unexpected output id %q", outcome.Result.OutputID)
	}
	if len(db.ledger) != 0 {
		t.Fatalf("no refund expected on success, got %+v", db.ledger)
	}
	last := db.events[len(db.events)-1]
	if !last.success || last.props["output_id"] != "out-job-1" {
		t.Fatalf("unexpected usage event %+v", last)
	}
}

// Scenario: provider throws a typed RATE_LIMITED error. The usage event must
// capture the code, the job must end failed and the reserved seconds must be
// refunded with reason job_failed.
func TestRunOnceProviderFailure(t *testing.T) {
	db := newWorkerDB()
	db.addQueuedJob("job-1", "user-1", 30)
	gen := &fakeGenerator{name: "minimax", err: &domain.ProviderError{
		Provider: "minimax", Code: "RATE_LIMITED", Message: "quota hit",
	}}
	runner := testRunner(db, gen)

	outcome, err := runner.RunOnce(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if outcome == nil || outcome.Err == nil {
		t.Fatal("expected failure outcome")
	}

	if db.jobs["job-1"].status != "failed" {
		t.Fatalf("expected failed, got %s", db.jobs["job-1"].status)
	}
	if db.jobs["job-1"].errMsg == "" {
		t.Fatal("expected persisted error message")
	}

	if len(db.ledger) != 1 {
		t.Fatalf("expected one refund entry, got %d", len(db.ledger))
	}
	refund := db.ledger[0]
	if refund.Reason != "job_failed" || refund.Amount != 30 {
		t.Fatalf("unexpected refund %+v", refund)
	}

	last := db.events[len(db.events)-1]
	if last.success {
		t.Fatal("usage event should record failure")
	}
	if last.props["error_code"] != "RATE_LIMITED" {
		t.Fatalf("expected RATE_LIMITED code in event, got %v", last.props["error_code"])
	}
}

func TestRunOnceUntypedErrorRecordsUnknownCode(t *testing.T) {
	db := newWorkerDB()
	db.addQueuedJob("job-1", "user-1", 20)
	runner := testRunner(db, &fakeGenerator{name: "minimax", err: errors.New("socket closed")})

	if _, err := runner.RunOnce(context.Background(), "worker-1"); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	last := db.events[len(db.events)-1]
	if last.props["error_code"] != domain.UnknownErrorCode {
		t.Fatalf("expected %s, got %v", domain.UnknownErrorCode, last.props["error_code"])
	}
}

func TestSanitizePropertiesDropsUnknownFields(t *testing.T) {
	clean := SanitizeProperties(map[string]any{
		"provider":      "minimax",
		"api_key":       "sk-secret",
		"signed_url":    "https://example.com?token=abc",
		"duration_sec":  30,
		"Authorization": "Bearer x",
	})
	if _, leaked := clean["api_key"]; leaked {
		t.Fatal("api_key must not survive sanitization")
	}
	if _, leaked := clean["signed_url"]; leaked {
		t.Fatal("signed_url must not survive sanitization")
	}
	if _, leaked := clean["Authorization"]; leaked {
		t.Fatal("Authorization must not survive sanitization")
	}
	if clean["provider"] != "minimax" || clean["duration_sec"] != 30 {
		t.Fatalf("allow-listed fields missing: %+v", clean)
	}
}
