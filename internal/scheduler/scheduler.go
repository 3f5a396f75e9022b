// Package scheduler drives the two periodic jobs of the economy: the
// passive-production tick and the persistence flush. The jobs run on
// independent timers in independent goroutines, so a slow disk write never
// delays production fairness across players.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/idleharvest/internal/store"
)

// Scheduler owns the background cadence of the game server.
type Scheduler struct {
	store         *store.Store
	tickInterval  time.Duration
	flushInterval time.Duration

	ticks atomic.Uint64
}

// New creates a scheduler. tickInterval should be a whole number of
// seconds; production is credited in whole-second units.
func New(st *store.Store, tickInterval, flushInterval time.Duration) *Scheduler {
	return &Scheduler{
		store:         st,
		tickInterval:  tickInterval,
		flushInterval: flushInterval,
	}
}

// Ticks returns how many production ticks have run since startup.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Run starts both jobs and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runProduction(ctx)
	}()
	go func() {
		defer wg.Done()
		s.runFlush(ctx)
	}()
	wg.Wait()
	slog.Info("scheduler stopped", "ticks", s.ticks.Load())
}

func (s *Scheduler) runProduction(ctx context.Context) {
	seconds := int64(s.tickInterval / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	slog.Info("production tick started", "interval", s.tickInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.store.TickAll(ctx, seconds)
			n := s.ticks.Add(1)

			// Periodic operational summary, once a minute at the default
			// cadence.
			if n%60 == 0 {
				players, coins := s.store.Stats(ctx)
				slog.Info("economy report",
					"tick", n,
					"players_cached", players,
					"total_coins", humanize.Comma(coins),
				)
			}
		}
	}
}

func (s *Scheduler) runFlush(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	slog.Info("persistence flush started", "interval", s.flushInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.store.FlushAll(ctx); err != nil {
				// The cache stays authoritative; the next cycle retries.
				slog.Error("periodic flush failed", "error", err)
			}
		}
	}
}
