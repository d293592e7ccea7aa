// Package pipeline imports answered questions for a time window: it reads
// questions and accepted answers from the message source, enriches the
// matched pairs and stores them.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/edgard/slackqa/internal/qa"
)

// DefaultWindowDays is the look-back of DefaultWindow.
const DefaultWindowDays = 7

// Source reads messages from the chat workspace.
type Source interface {
	History(ctx context.Context, start, end time.Time) ([]qa.Message, error)
	SearchAnswers(ctx context.Context, start, end time.Time) ([]qa.Message, error)
}

// Enricher turns questions and answers into records.
type Enricher interface {
	Enrich(questions, answers []qa.Message) []qa.Record
}

// Store persists records.
type Store interface {
	InsertRecords(ctx context.Context, records []qa.Record) (int, error)
}

// Config holds the pipeline settings.
type Config struct {
	DoneReaction string
	WindowDays   int
}

// Window is an inclusive time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DefaultWindow returns the range from midnight days ago to the last
// microsecond of today, in now's location.
func DefaultWindow(now time.Time, days int) Window {
	if days <= 0 {
		days = DefaultWindowDays
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return Window{
		Start: today.AddDate(0, 0, -days),
		End:   today.AddDate(0, 0, 1).Add(-time.Microsecond),
	}
}

// Stats summarises one run.
type Stats struct {
	Window    Window        `json:"window"`
	Questions int           `json:"questions"`
	Answers   int           `json:"answers"`
	Matched   int           `json:"matched"`
	Inserted  int           `json:"inserted"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Pipeline runs imports.
type Pipeline struct {
	cfg      Config
	source   Source
	enricher Enricher
	store    Store
	logger   *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config, source Source, enricher Enricher, store Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultWindowDays
	}
	return &Pipeline{
		cfg:      cfg,
		source:   source,
		enricher: enricher,
		store:    store,
		logger:   logger.With("component", "pipeline"),
	}
}

// DefaultWindow is DefaultWindow with the configured look-back.
func (p *Pipeline) DefaultWindow(now time.Time) Window {
	return DefaultWindow(now, p.cfg.WindowDays)
}

// Run imports window. Records already stored are left untouched. Either all
// new records of the run are stored or none are.
func (p *Pipeline) Run(ctx context.Context, w Window) (Stats, error) {
	startTime := time.Now()
	stats := Stats{Window: w}
	log := p.logger.With("start", w.Start.Format(time.RFC3339), "end", w.End.Format(time.RFC3339))

	if !w.End.After(w.Start) {
		return stats, fmt.Errorf("invalid import window: end %s is not after start %s", w.End, w.Start)
	}

	questions, err := p.source.History(ctx, w.Start, w.End)
	if err != nil {
		log.ErrorContext(ctx, "Failed to fetch questions", "error", err)
		return stats, fmt.Errorf("failed to fetch questions: %w", err)
	}
	questions = withoutReaction(questions, p.cfg.DoneReaction)
	stats.Questions = len(questions)

	answers, err := p.source.SearchAnswers(ctx, w.Start, w.End)
	if err != nil {
		log.ErrorContext(ctx, "Failed to fetch answers", "error", err)
		return stats, fmt.Errorf("failed to fetch answers: %w", err)
	}
	stats.Answers = len(answers)

	records := p.enricher.Enrich(questions, answers)
	stats.Matched = len(records)

	inserted, err := p.store.InsertRecords(ctx, records)
	if err != nil {
		log.ErrorContext(ctx, "Failed to store records", "count", len(records), "error", err)
		return stats, fmt.Errorf("failed to store records: %w", err)
	}
	stats.Inserted = inserted
	stats.Skipped = len(records) - inserted
	stats.Duration = time.Since(startTime)

	log.InfoContext(ctx, "Import finished",
		"questions", stats.Questions,
		"answers", stats.Answers,
		"matched", stats.Matched,
		"inserted", stats.Inserted,
		"skipped", stats.Skipped,
		"duration", stats.Duration)
	return stats, nil
}

func withoutReaction(messages []qa.Message, reaction string) []qa.Message {
	if reaction == "" {
		return messages
	}
	out := make([]qa.Message, 0, len(messages))
	for _, m := range messages {
		if !m.HasReaction(reaction) {
			out = append(out, m)
		}
	}
	return out
}
