package queue

import (
	"context"
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
	"monetiq/internal/sqlinline"
)

type jobRow struct {
	id          string
	userID      string
	audioType   string
	status      string
	durationSec int
	preset      string
	text        string
	voiceID     string
	workerID    string
	errMsg      string
	seq         int
	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time
}

// memDB simulates the audio_jobs and quota tables. The claim update holds the
// mutex across predicate check and write, matching the atomicity of the real
// conditional UPDATE.
type memDB struct {
	mu         sync.Mutex
	seq        int
	jobs       map[string]*jobRow
	standard   map[string]int
	premium    map[string]int
	ledger     []domain.LedgerEntry
	failInsert bool
}

func newMemDB() *memDB {
	return &memDB{
		jobs:     map[string]*jobRow{},
		standard: map[string]int{},
		premium:  map[string]int{},
	}
}

func (db *memDB) addQueuedJob(id, userID string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seq++
	db.jobs[id] = &jobRow{
		id: id, userID: userID, audioType: "music", status: "queued",
		durationSec: 30, seq: db.seq, createdAt: time.Now(),
	}
}

type scanRow struct {
	scan func(dest ...any) error
}

func (r scanRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type rowsBase struct{}

func (rowsBase) CommandTag() pgconn.CommandTag               { return pgconn.CommandTag{} }
func (rowsBase) Conn() *pgx.Conn                             { return nil }
func (rowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (rowsBase) Values() ([]any, error)                      { return nil, fmt.Errorf("values not supported") }
func (rowsBase) RawValues() [][]byte                         { return nil }

type idRows struct {
	rowsBase
	ids []string
	pos int
}

func (r *idRows) Close()     {}
func (r *idRows) Err() error { return nil }
func (r *idRows) Next() bool {
	r.pos++
	return r.pos <= len(r.ids)
}

func (r *idRows) Scan(dest ...any) error {
	*(dest[0].(*string)) = r.ids[r.pos-1]
	return nil
}

func (db *memDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if query != sqlinline.QSelectClaimCandidates {
		return nil, errors.New("unexpected query")
	}
	limit := args[0].(int)
	queued := make([]*jobRow, 0)
	for _, j := range db.jobs {
		if j.status == "queued" {
			queued = append(queued, j)
		}
	}
	sort.Slice(queued, func(a, b int) bool { return queued[a].seq < queued[b].seq })
	if len(queued) > limit {
		queued = queued[:limit]
	}
	ids := make([]string, len(queued))
	for i, j := range queued {
		ids[i] = j.id
	}
	return &idRows{ids: ids}, nil
}

func (db *memDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	db.mu.Lock()
	defer db.mu.Unlock()
	switch query {
	case sqlinline.QClaimAudioJob:
		id := args[0].(string)
		workerID := args[1].(string)
		j, ok := db.jobs[id]
		if !ok || j.status != "queued" {
			return scanRow{}
		}
		now := time.Now()
		j.status = "running"
		j.workerID = workerID
		j.startedAt = &now
		snapshot := *j
		return scanRow{scan: func(dest ...any) error { return scanJobFields(snapshot, dest) }}
	case sqlinline.QSelectAudioJob:
		id := args[0].(string)
		j, ok := db.jobs[id]
		if !ok {
			return scanRow{}
		}
		snapshot := *j
		return scanRow{scan: func(dest ...any) error { return scanJobFields(snapshot, dest) }}
	case sqlinline.QReserveQuotaStandard, sqlinline.QReserveQuotaPremium:
		userID := args[0].(string)
		seconds := args[1].(int)
		tier := domain.QuotaTierStandard
		counters := db.standard
		if query == sqlinline.QReserveQuotaPremium {
			tier = domain.QuotaTierPremium
			counters = db.premium
		}
		if counters[userID] < seconds {
			return scanRow{}
		}
		counters[userID] -= seconds
		db.ledger = append(db.ledger, domain.LedgerEntry{
			UserID: userID, Action: domain.LedgerActionReserve, Tier: tier, Amount: -seconds,
		})
		return scanRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = userID
			return nil
		}}
	}
	return scanRow{scan: func(...any) error { return errors.New("unexpected query") }}
}

func (db *memDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	switch query {
	case sqlinline.QInsertAudioJob:
		if db.failInsert {
			return pgconn.CommandTag{}, errors.New("insert rejected")
		}
		db.seq++
		db.jobs[args[0].(string)] = &jobRow{
			id: args[0].(string), userID: args[1].(string), audioType: args[2].(string),
			status: "queued", durationSec: args[3].(int), seq: db.seq, createdAt: time.Now(),
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
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
	case sqlinline.QRefundQuotaStandard, sqlinline.QRefundQuotaPremium:
		userID := args[0].(string)
		seconds := args[1].(int)
		tier := domain.QuotaTierStandard
		counters := db.standard
		if query == sqlinline.QRefundQuotaPremium {
			tier = domain.QuotaTierPremium
			counters = db.premium
		}
		counters[userID] += seconds
		db.ledger = append(db.ledger, domain.LedgerEntry{
			UserID: userID, Action: domain.LedgerActionRefund, Tier: tier,
			Amount: seconds, Reason: args[3].(string),
		})
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected query")
}

func scanJobFields(j jobRow, dest []any) error {
	if len(dest) != 13 {
		return fmt.Errorf("expected 13 dest, got %d", len(dest))
	}
	*(dest[0].(*string)) = j.id
	*(dest[1].(*string)) = j.userID
	*(dest[2].(*domain.AudioType)) = domain.AudioType(j.audioType)
	*(dest[3].(*domain.JobStatus)) = domain.JobStatus(j.status)
	*(dest[4].(*int)) = j.durationSec
	*(dest[5].(*string)) = j.preset
	*(dest[6].(*string)) = j.text
	*(dest[7].(*string)) = j.voiceID
	*(dest[8].(*string)) = j.workerID
	*(dest[9].(*string)) = j.errMsg
	*(dest[10].(*time.Time)) = j.createdAt
	*(dest[11].(**time.Time)) = j.startedAt
	*(dest[12].(**time.Time)) = j.completedAt
	return nil
}

func testClaimer(db *memDB) *Claimer {
	return NewClaimer(db, zerolog.Nop(), WithRetryDelay(time.Millisecond))
}

func TestClaimEmptyQueue(t *testing.T) {
	claimer := testClaimer(newMemDB())
	job, err := claimer.Claim(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("Claim error: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job for empty queue, got %+v", job)
	}
}

func TestClaimTransfersOwnership(t *testing.T) {
	db := newMemDB()
	db.addQueuedJob("job-1", "user-1")
	claimer := testClaimer(db)

	job, err := claimer.Claim(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("Claim error: %v", err)
	}
	if job == nil {
		t.Fatal("expected a claimed job")
	}
	if job.Status != domain.JobStatusRunning {
		t.Fatalf("expected running, got %s", job.Status)
	}
	if job.WorkerID != "worker-1" {
		t.Fatalf("expected worker-1 ownership, got %q", job.WorkerID)
	}
	if job.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}
}

func TestClaimOldestFirst(t *testing.T) {
	db := newMemDB()
	db.addQueuedJob("job-old", "user-1")
	db.addQueuedJob("job-new", "user-1")
	claimer := testClaimer(db)

	job, err := claimer.Claim(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("Claim error: %v", err)
	}
	if job == nil || job.ID != "job-old" {
		t.Fatalf("expected job-old first, got %+v", job)
	}
}

func TestClaimRejectsEmptyWorkerID(t *testing.T) {
	db := newMemDB()
	db.addQueuedJob("job-1", "user-1")
	claimer := testClaimer(db)

	if _, err := claimer.Claim(context.Background(), ""); !errors.Is(err, domain.ErrJobNotOwned) {
		t.Fatalf("expected ErrJobNotOwned, got %v", err)
	}
}

// Mutual exclusion: N concurrent claimers against one queued job. Exactly one
// wins; the rest exhaust their retries against an emptied queue and get nil.
func TestClaimMutualExclusion(t *testing.T) {
	db := newMemDB()
	db.addQueuedJob("job-1", "user-1")

	const workers = 8
	results := make([]*domain.AudioJob, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			claimer := testClaimer(db)
			results[n], errs[n] = claimer.Claim(context.Background(), fmt.Sprintf("worker-%d", n))
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d returned error: %v", i, errs[i])
		}
		if results[i] != nil {
			winners++
			if results[i].WorkerID != fmt.Sprintf("worker-%d", i) {
				t.Fatalf("worker %d claimed a job owned by %q", i, results[i].WorkerID)
			}
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", winners)
	}
}

func TestCompleteRequiresOwnership(t *testing.T) {
	db := newMemDB()
	db.addQueuedJob("job-1", "user-1")
	claimer := testClaimer(db)
	jobs := NewJobs(db)
	ctx := context.Background()

	job, err := claimer.Claim(ctx, "worker-1")
	if err != nil || job == nil {
		t.Fatalf("Claim failed: job=%v err=%v", job, err)
	}

	if err := jobs.Complete(ctx, job.ID, "worker-2"); !errors.Is(err, domain.ErrJobNotOwned) {
		t.Fatalf("expected ErrJobNotOwned for wrong worker, got %v", err)
	}
	if err := jobs.Complete(ctx, job.ID, "worker-1"); err != nil {
		t.Fatalf("Complete by owner failed: %v", err)
	}

	got, err := jobs.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != domain.JobStatusSucceeded {
		t.Fatalf("expected succeeded, got %s", got.Status)
	}
}

func TestFailRecordsMessage(t *testing.T) {
	db := newMemDB()
	db.addQueuedJob("job-1", "user-1")
	claimer := testClaimer(db)
	jobs := NewJobs(db)
	ctx := context.Background()

	job, _ := claimer.Claim(ctx, "worker-1")
	if err := jobs.Fail(ctx, job.ID, "worker-1", "minimax: quota hit (RATE_LIMITED)"); err != nil {
		t.Fatalf("Fail error: %v", err)
	}

	got, err := jobs.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("expected persisted error message")
	}
}
