// Package scheduler runs periodic store maintenance.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/procdesigner/internal/store"
	"github.com/rendis/procdesigner/internal/streaming"
)

// DefaultSchedule prunes once a day at midnight.
const DefaultSchedule = "@daily"

// Config configures a Pruner.
type Config struct {
	Schedule      string // standard 5-field cron spec or a descriptor such as @daily
	KeepRevisions int    // revisions kept per process, at least 1

	// Hub, when set, receives a revisions.pruned event after each run that
	// removed something.
	Hub streaming.Hub
}

// Report summarizes one maintenance run.
type Report struct {
	Removed  int64         `json:"removed"`
	Duration time.Duration `json:"duration"`
}

// Pruner trims process revision history on a cron schedule and vacuums the
// database afterwards.
type Pruner struct {
	store  store.Store
	cfg    Config
	sched  cron.Schedule
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	lastRun *Report
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewPruner validates cfg and returns a stopped Pruner.
func NewPruner(s store.Store, cfg Config, logger *slog.Logger) (*Pruner, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.KeepRevisions < 1 {
		return nil, fmt.Errorf("scheduler: keep_revisions must be at least 1, got %d", cfg.KeepRevisions)
	}
	sched, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid prune schedule %q: %w", cfg.Schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{store: s, cfg: cfg, sched: sched, logger: logger}, nil
}

// Start registers the prune job and starts the cron runner. Overlapping runs
// are skipped.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	c.Schedule(p.sched, cron.FuncJob(func() {
		if _, err := p.RunOnce(p.ctx); err != nil {
			p.logger.Error("revision prune failed", slog.String("error", err.Error()))
		}
	}))
	c.Start()
	p.cron = c

	p.logger.Info("scheduler started",
		slog.String("schedule", p.cfg.Schedule),
		slog.Int("keep_revisions", p.cfg.KeepRevisions),
		slog.Time("next_run", p.sched.Next(time.Now().UTC())),
	)
	return nil
}

// Stop halts the cron runner and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	cancel := p.cancel
	p.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	cancel()
	p.logger.Info("scheduler stopped")
}

// RunOnce prunes revisions and vacuums immediately.
func (p *Pruner) RunOnce(ctx context.Context) (*Report, error) {
	start := time.Now()
	removed, err := p.store.PruneRevisions(ctx, p.cfg.KeepRevisions)
	if err != nil {
		return nil, fmt.Errorf("prune revisions: %w", err)
	}
	if err := p.store.Vacuum(ctx); err != nil {
		return nil, fmt.Errorf("vacuum: %w", err)
	}

	r := &Report{Removed: removed, Duration: time.Since(start)}
	p.mu.Lock()
	p.lastRun = r
	p.mu.Unlock()

	p.logger.Info("revisions pruned",
		slog.Int64("removed", removed),
		slog.Duration("duration", r.Duration),
	)
	if p.cfg.Hub != nil && removed > 0 {
		ev := streaming.Event{Type: streaming.EventRevisionsPruned, Count: int(removed), Source: "scheduler"}
		if err := p.cfg.Hub.Publish(ctx, ev); err != nil {
			p.logger.Warn("publish prune event", slog.String("error", err.Error()))
		}
	}
	return r, nil
}

// Next returns the next scheduled run after t.
func (p *Pruner) Next(t time.Time) time.Time {
	return p.sched.Next(t)
}

// LastRun returns the report of the most recent run, or nil.
func (p *Pruner) LastRun() *Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun
}
