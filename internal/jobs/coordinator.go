// Package jobs runs the batch passes (import, relatedness, maintenance) one
// at a time, on demand or on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/edgard/slackqa/internal/errs"
	"github.com/edgard/slackqa/internal/notify"
	"github.com/edgard/slackqa/internal/pipeline"
	"github.com/edgard/slackqa/internal/qa"
	"github.com/edgard/slackqa/internal/related"
)

// Importer runs an import for a window.
type Importer interface {
	DefaultWindow(now time.Time) pipeline.Window
	Run(ctx context.Context, w pipeline.Window) (pipeline.Stats, error)
}

// Store is the subset of database.Store the passes need.
type Store interface {
	AllRecords(ctx context.Context) ([]qa.Record, error)
	ReplaceRelated(ctx context.Context, related map[string][]string) error
	RunSQLMaintenance(ctx context.Context) error
}

// Indexer rebuilds the full-text index.
type Indexer interface {
	Rebuild(records []qa.Record) error
}

// RelateStats summarises one relatedness pass.
type RelateStats struct {
	Records  int           `json:"records"`
	Linked   int           `json:"linked"`
	Duration time.Duration `json:"duration"`
}

// RefreshStats summarises an import followed by a relatedness pass.
type RefreshStats struct {
	Import pipeline.Stats `json:"import"`
	Relate RelateStats    `json:"relate"`
}

// Coordinator serialises the passes. A pass requested while another one runs
// waits for it to finish.
type Coordinator struct {
	sem      *semaphore.Weighted
	importer Importer
	store    Store
	engine   *related.Engine
	index    Indexer
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewCoordinator creates a Coordinator. index and notifier may be nil.
func NewCoordinator(importer Importer, store Store, engine *related.Engine, index Indexer, notifier notify.Notifier, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if engine == nil {
		engine = related.New(related.FieldAuxKeywords)
	}
	return &Coordinator{
		sem:      semaphore.NewWeighted(1),
		importer: importer,
		store:    store,
		engine:   engine,
		index:    index,
		notifier: notifier,
		logger:   logger.With("component", "coordinator"),
		now:      time.Now,
	}
}

// Import imports the default window.
func (c *Coordinator) Import(ctx context.Context) (pipeline.Stats, error) {
	return c.ImportWindow(ctx, c.importer.DefaultWindow(c.now()))
}

// ImportWindow imports w and rebuilds the full-text index.
func (c *Coordinator) ImportWindow(ctx context.Context, w pipeline.Window) (pipeline.Stats, error) {
	if err := c.acquire(ctx, "import"); err != nil {
		return pipeline.Stats{Window: w}, err
	}
	defer c.sem.Release(1)

	stats, err := c.importLocked(ctx, w)
	c.report(ctx, "import", err, importSummary(stats))
	return stats, err
}

// Relate recomputes the related ids of every stored record.
func (c *Coordinator) Relate(ctx context.Context) (RelateStats, error) {
	if err := c.acquire(ctx, "relate"); err != nil {
		return RelateStats{}, err
	}
	defer c.sem.Release(1)

	stats, err := c.relateLocked(ctx)
	c.report(ctx, "relate", err, relateSummary(stats))
	return stats, err
}

// Refresh imports the default window and then recomputes relatedness. The
// relatedness pass is skipped when the import fails.
func (c *Coordinator) Refresh(ctx context.Context) (RefreshStats, error) {
	if err := c.acquire(ctx, "refresh"); err != nil {
		return RefreshStats{}, err
	}
	defer c.sem.Release(1)

	var out RefreshStats
	var err error
	out.Import, err = c.importLocked(ctx, c.importer.DefaultWindow(c.now()))
	if err == nil {
		out.Relate, err = c.relateLocked(ctx)
	}
	c.report(ctx, "refresh", err, importSummary(out.Import)+"\n"+relateSummary(out.Relate))
	return out, err
}

// Maintenance runs database maintenance.
func (c *Coordinator) Maintenance(ctx context.Context) error {
	if err := c.acquire(ctx, "maintenance"); err != nil {
		return err
	}
	defer c.sem.Release(1)

	startTime := time.Now()
	if err := c.store.RunSQLMaintenance(ctx); err != nil {
		return fmt.Errorf("sql maintenance failed: %w", err)
	}
	c.logger.InfoContext(ctx, "Maintenance finished", "duration", time.Since(startTime))
	return nil
}

func (c *Coordinator) acquire(ctx context.Context, pass string) error {
	if c.sem.TryAcquire(1) {
		return nil
	}
	c.logger.InfoContext(ctx, "Waiting for running pass to finish", "pass", pass)
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return errs.New(errs.CodeBusy, fmt.Sprintf("gave up waiting to run %s", pass), err)
	}
	return nil
}

func (c *Coordinator) importLocked(ctx context.Context, w pipeline.Window) (pipeline.Stats, error) {
	stats, err := c.importer.Run(ctx, w)
	if err != nil {
		return stats, err
	}
	if c.index == nil || stats.Inserted == 0 {
		return stats, nil
	}

	records, err := c.store.AllRecords(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to load records for the search index", "error", err)
		return stats, nil
	}
	if err := c.index.Rebuild(records); err != nil {
		c.logger.WarnContext(ctx, "Failed to rebuild search index", "error", err)
	}
	return stats, nil
}

func (c *Coordinator) relateLocked(ctx context.Context) (RelateStats, error) {
	startTime := time.Now()

	records, err := c.store.AllRecords(ctx)
	if err != nil {
		return RelateStats{}, fmt.Errorf("failed to load records: %w", err)
	}

	relations := c.engine.Compute(records)
	if err := c.store.ReplaceRelated(ctx, relations); err != nil {
		return RelateStats{Records: len(records)}, fmt.Errorf("failed to store related ids: %w", err)
	}

	stats := RelateStats{Records: len(records), Duration: time.Since(startTime)}
	for _, ids := range relations {
		if len(ids) > 0 {
			stats.Linked++
		}
	}
	c.logger.InfoContext(ctx, "Relatedness pass finished",
		"records", stats.Records,
		"linked", stats.Linked,
		"field", c.engine.Field(),
		"duration", stats.Duration)
	return stats, nil
}

// report sends a job summary. Notification failures are logged only.
func (c *Coordinator) report(ctx context.Context, pass string, err error, summary string) {
	text := fmt.Sprintf("slackqa %s finished\n%s", pass, summary)
	if err != nil {
		text = fmt.Sprintf("slackqa %s failed: %v", pass, err)
	}
	if nerr := c.notifier.Notify(context.WithoutCancel(ctx), text); nerr != nil {
		c.logger.WarnContext(ctx, "Failed to send job summary", "pass", pass, "error", nerr)
	}
}

func importSummary(s pipeline.Stats) string {
	return fmt.Sprintf("import %s..%s: %d questions, %d answers, %d matched, %d inserted, %d skipped",
		s.Window.Start.Format(time.DateOnly), s.Window.End.Format(time.DateOnly),
		s.Questions, s.Answers, s.Matched, s.Inserted, s.Skipped)
}

func relateSummary(s RelateStats) string {
	return fmt.Sprintf("relate: %d records, %d with related questions", s.Records, s.Linked)
}
