package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunExecutesAndWaits(t *testing.T) {
	s := NewSpawner(zerolog.Nop(), 0)
	var ran atomic.Bool
	s.Run("unit", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	s.Wait()
	if !ran.Load() {
		t.Fatal("task did not run")
	}
}

func TestRunRecoversPanic(t *testing.T) {
	s := NewSpawner(zerolog.Nop(), 0)
	s.Run("panics", func(ctx context.Context) error {
		panic("boom")
	})
	s.Wait() // must return instead of crashing the process
}

func TestRunSwallowsError(t *testing.T) {
	s := NewSpawner(zerolog.Nop(), 0)
	s.Run("fails", func(ctx context.Context) error {
		return errors.New("expected")
	})
	s.Wait()
}

func TestRunAppliesTimeout(t *testing.T) {
	s := NewSpawner(zerolog.Nop(), time.Millisecond)
	deadlineSeen := make(chan bool, 1)
	s.Run("bounded", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		deadlineSeen <- ok
		return nil
	})
	s.Wait()
	if !<-deadlineSeen {
		t.Fatal("expected a deadline on the task context")
	}
}
