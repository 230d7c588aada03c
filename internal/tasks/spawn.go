package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Spawner is the single entry point for fire-and-forget work. Every detached
// goroutine in the codebase goes through Run, so panics are always recovered
// and failures always land in the log instead of vanishing.
type Spawner struct {
	logger  zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewSpawner builds a Spawner whose tasks are bounded by timeout. A zero
// timeout means no deadline.
func NewSpawner(logger zerolog.Logger, timeout time.Duration) *Spawner {
	return &Spawner{logger: logger, timeout: timeout}
}

// Run executes fn on a detached goroutine. The task context is independent
// of the caller's request context, so an early HTTP response does not cancel
// the work it triggered.
func (s *Spawner) Run(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Str("task", name).
					Interface("panic", r).
					Msg("tasks: recovered panic")
			}
		}()

		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		start := time.Now()
		if err := fn(ctx); err != nil {
			s.logger.Error().Err(err).
				Str("task", name).
				Dur("elapsed", time.Since(start)).
				Msg("tasks: task failed")
			return
		}
		s.logger.Debug().
			Str("task", name).
			Dur("elapsed", time.Since(start)).
			Msg("tasks: task finished")
	}()
}

// Wait blocks until every spawned task has returned. Used on shutdown.
func (s *Spawner) Wait() {
	s.wg.Wait()
}
