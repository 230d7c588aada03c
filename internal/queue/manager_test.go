package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"monetiq/internal/domain"
	"monetiq/internal/quota"
)

func testManager(db *memDB) *Manager {
	return NewManager(db, quota.NewLedger(db), zerolog.Nop())
}

func TestEnqueueInsufficientQuota(t *testing.T) {
	db := newMemDB()
	db.premium["user-1"] = 10
	mgr := testManager(db)

	_, err := mgr.Enqueue(context.Background(), EnqueueParams{
		UserID: "user-1", Type: domain.AudioTypeMusic, DurationSec: 30,
	})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if len(db.jobs) != 0 {
		t.Fatalf("expected no job rows, got %d", len(db.jobs))
	}
	if len(db.ledger) != 0 {
		t.Fatalf("expected no ledger entries, got %d", len(db.ledger))
	}
}

func TestEnqueueReservesAndCreates(t *testing.T) {
	db := newMemDB()
	db.premium["user-1"] = 120
	mgr := testManager(db)

	job, err := mgr.Enqueue(context.Background(), EnqueueParams{
		UserID: "user-1", Type: domain.AudioTypeMusic, DurationSec: 45, Preset: "upbeat",
	})
	if err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if job.Status != domain.JobStatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}
	if db.premium["user-1"] != 75 {
		t.Fatalf("expected 75 premium seconds left, got %d", db.premium["user-1"])
	}
	if _, ok := db.jobs[job.ID]; !ok {
		t.Fatal("expected job row to exist")
	}
	if len(db.ledger) != 1 || db.ledger[0].Action != domain.LedgerActionReserve {
		t.Fatalf("expected one reserve entry, got %+v", db.ledger)
	}
}

func TestEnqueueSpeechDrawsStandardTier(t *testing.T) {
	db := newMemDB()
	db.standard["user-1"] = 60
	mgr := testManager(db)

	_, err := mgr.Enqueue(context.Background(), EnqueueParams{
		UserID: "user-1", Type: domain.AudioTypeSpeech, DurationSec: 20, Text: "hello", VoiceID: "v1",
	})
	if err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if db.standard["user-1"] != 40 {
		t.Fatalf("expected 40 standard seconds left, got %d", db.standard["user-1"])
	}
}

// A failed insert after a successful reservation must append the
// compensating refund so the ledger nets to zero.
func TestEnqueueRefundsWhenInsertFails(t *testing.T) {
	db := newMemDB()
	db.premium["user-1"] = 100
	db.failInsert = true
	mgr := testManager(db)

	_, err := mgr.Enqueue(context.Background(), EnqueueParams{
		UserID: "user-1", Type: domain.AudioTypeMusic, DurationSec: 40,
	})
	if err == nil {
		t.Fatal("expected insert failure")
	}
	if db.premium["user-1"] != 100 {
		t.Fatalf("expected balance restored to 100, got %d", db.premium["user-1"])
	}
	if len(db.ledger) != 2 {
		t.Fatalf("expected reserve+refund entries, got %d", len(db.ledger))
	}
	refund := db.ledger[1]
	if refund.Action != domain.LedgerActionRefund || refund.Reason != "enqueue_failed" {
		t.Fatalf("unexpected refund entry: %+v", refund)
	}
}

func TestEnqueueRejectsUnknownType(t *testing.T) {
	mgr := testManager(newMemDB())
	_, err := mgr.Enqueue(context.Background(), EnqueueParams{
		UserID: "user-1", Type: "podcast", DurationSec: 30,
	})
	if err == nil {
		t.Fatal("expected error for unknown audio type")
	}
}
