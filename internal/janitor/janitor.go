// Package janitor periodically prunes local state that no mailbox refers
// to any more.
package janitor

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nhle/tempmail/internal/logging"
)

// runTimeout bounds one cleanup pass.
const runTimeout = time.Minute

// Store is the subset of store.Store the janitor prunes.
type Store interface {
	PruneOrphanCache(ctx context.Context) (int64, error)
	PruneCreations(ctx context.Context, before time.Time) (int64, error)
}

// Janitor runs cleanup on a cron schedule.
type Janitor struct {
	cfg    Config
	store  Store
	logger *zap.Logger
	now    func() time.Time

	mu   gosync.Mutex
	cron *cronv3.Cron
}

// New creates a Janitor. Start schedules it; RunOnce runs it now.
func New(cfg Config, st Store, logger *zap.Logger) *Janitor {
	return &Janitor{
		cfg:    cfg,
		store:  st,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// RunOnce deletes cache rows of removed mailboxes and creation-log rows
// older than the retention window.
func (j *Janitor) RunOnce(ctx context.Context) error {
	caches, err := j.store.PruneOrphanCache(ctx)
	if err != nil {
		return fmt.Errorf("pruning cache: %w", err)
	}

	before := j.now().Add(-j.cfg.Retention)
	creations, err := j.store.PruneCreations(ctx, before)
	if err != nil {
		return fmt.Errorf("pruning creation log: %w", err)
	}

	j.logger.Debug("janitor pass complete",
		zap.Int64("cache_rows", caches),
		zap.Int64("creation_rows", creations),
	)
	return nil
}

// Start schedules RunOnce. Overlapping runs are skipped and panics are
// recovered.
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return nil
	}

	cl := cronLogger{j.logger.Sugar()}
	c := cronv3.New(
		cronv3.WithSeconds(),
		cronv3.WithLogger(cl),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cl),
			cronv3.Recover(cl),
		),
	)

	_, err := c.AddFunc(j.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := j.RunOnce(ctx); err != nil {
			j.logger.Warn("janitor pass failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling janitor %q: %w", j.cfg.Schedule, err)
	}

	c.Start()
	j.cron = c
	j.logger.Debug("janitor started", zap.String("schedule", j.cfg.Schedule))
	return nil
}

// Stop cancels the schedule and waits for a running pass to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
