package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/botflowhq/botflow/internal/store"
)

// Cleaner is the interface the janitor uses to evict stale run state.
// Satisfied by the engine (avoids import cycle).
type Cleaner interface {
	CleanupExecutions(maxAge time.Duration)
	ActiveRuns() int
}

// Janitor periodically evicts stale in-memory runs and purges old archive
// rows on a cron cadence.
type Janitor struct {
	cleaner   Cleaner
	archive   store.Archive
	parser    cron.Parser
	schedule  cron.Schedule
	maxRunAge time.Duration
	retention time.Duration
	logger    *slog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex
}

// Config holds janitor settings. CronExpression uses standard five-field
// syntax. MaxRunAge bounds how long an idle run survives in memory;
// Retention bounds how long terminal runs stay in the archive.
type Config struct {
	CronExpression string
	MaxRunAge      time.Duration
	Retention      time.Duration
}

// NewJanitor creates a Janitor. The cron expression is parsed eagerly so a
// bad configuration fails at startup rather than on the first tick.
func NewJanitor(cleaner Cleaner, archive store.Archive, cfg Config, logger *slog.Logger) (*Janitor, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cfg.CronExpression)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", cfg.CronExpression, err)
	}
	return &Janitor{
		cleaner:   cleaner,
		archive:   archive,
		parser:    parser,
		schedule:  schedule,
		maxRunAge: cfg.MaxRunAge,
		retention: cfg.Retention,
		logger:    logger,
	}, nil
}

// Start launches the background sweep loop.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.done != nil {
		j.mu.Unlock()
		return fmt.Errorf("janitor already started")
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.mu.Unlock()

	go j.loop(sweepCtx)
	j.logger.Info("janitor started",
		slog.Duration("max_run_age", j.maxRunAge),
		slog.Duration("retention", j.retention))
	return nil
}

func (j *Janitor) loop(ctx context.Context) {
	defer close(j.done)

	for {
		next := j.schedule.Next(time.Now().UTC())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.sweep(ctx)
		}
	}
}

// sweep evicts idle in-memory runs, then purges expired archive rows.
func (j *Janitor) sweep(ctx context.Context) {
	before := j.cleaner.ActiveRuns()
	j.cleaner.CleanupExecutions(j.maxRunAge)
	after := j.cleaner.ActiveRuns()
	if before != after {
		j.logger.Info("janitor swept runs",
			slog.Int("evicted", before-after),
			slog.Int("remaining", after))
	}

	if j.archive == nil || j.retention <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-j.retention)
	purged, err := j.archive.PurgeRunsBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("janitor archive purge failed", slog.String("error", err.Error()))
		return
	}
	if purged > 0 {
		j.logger.Info("janitor purged archived runs", slog.Int64("purged", purged))
	}
}

// NextSweep computes the next sweep time after the given instant.
func (j *Janitor) NextSweep(from time.Time) time.Time {
	return j.schedule.Next(from)
}

// Stop gracefully shuts down the janitor.
func (j *Janitor) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cancel == nil {
		return nil
	}

	j.cancel()
	<-j.done
	j.cancel = nil
	j.done = nil

	j.logger.Info("janitor stopped")
	return nil
}
