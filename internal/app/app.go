// Package app wires the slackqa components together and runs the HTTP
// server and the scheduler until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/slackqa/internal/api"
	"github.com/edgard/slackqa/internal/config"
	"github.com/edgard/slackqa/internal/database"
	"github.com/edgard/slackqa/internal/enrich"
	"github.com/edgard/slackqa/internal/gemini"
	"github.com/edgard/slackqa/internal/jobs"
	"github.com/edgard/slackqa/internal/keywords"
	"github.com/edgard/slackqa/internal/notify"
	"github.com/edgard/slackqa/internal/pipeline"
	"github.com/edgard/slackqa/internal/related"
	"github.com/edgard/slackqa/internal/search"
	"github.com/edgard/slackqa/internal/service"
	"github.com/edgard/slackqa/internal/slack"
)

// App holds the wired components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	db          *sqlx.DB
	Store       database.Store
	Slack       *slack.Client
	Pipeline    *pipeline.Pipeline
	Coordinator *jobs.Coordinator
	Queries     *service.QueryService
	index       *search.Index
}

// New opens the database and builds every component. Close must be called
// when New succeeds.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	db, err := database.NewDB(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, logger: log, db: db}
	store := database.NewStore(db, log)
	a.Store = store

	lexicon, err := newLexicon(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	field, err := related.ParseField(cfg.Related.Field)
	if err != nil {
		a.Close()
		return nil, err
	}

	notifier, err := notify.New(cfg.Telegram, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	var indexer jobs.Indexer
	var searchIndex service.Index
	if cfg.Search.Enabled {
		if a.index, err = openIndex(ctx, cfg.Search, store, log); err != nil {
			a.Close()
			return nil, err
		}
		indexer, searchIndex = a.index, a.index
	}

	a.Slack = slack.NewClient(cfg.Slack, log)
	enricher := enrich.New(keywords.NewExtractor(lexicon), cfg.Slack.DoneReaction)
	a.Pipeline = pipeline.New(pipeline.Config{
		DoneReaction: cfg.Slack.DoneReaction,
		WindowDays:   cfg.Import.WindowDays,
	}, a.Slack, enricher, store, log)
	a.Coordinator = jobs.NewCoordinator(a.Pipeline, store, related.New(field), indexer, notifier, log)
	a.Queries = service.New(store, searchIndex, log)

	log.Info("Application initialized",
		"lexicon", cfg.Keywords.Lexicon,
		"related_field", field,
		"search_enabled", cfg.Search.Enabled)
	return a, nil
}

func newLexicon(ctx context.Context, cfg *config.Config, log *slog.Logger) (keywords.Lexicon, error) {
	switch cfg.Keywords.Lexicon {
	case "gemini":
		return gemini.NewLexicon(ctx, cfg.Gemini, log)
	case "none":
		return keywords.NoLexicon{}, nil
	default:
		t, err := keywords.Builtin()
		if err != nil {
			return nil, fmt.Errorf("failed to load builtin thesaurus: %w", err)
		}
		return t, nil
	}
}

// openIndex opens the full-text index and fills it from the store.
func openIndex(ctx context.Context, cfg config.SearchConfig, store database.Store, log *slog.Logger) (*search.Index, error) {
	idx, err := search.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}
	records, err := store.AllRecords(ctx)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	if err := idx.Rebuild(records); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to build search index: %w", err)
	}
	log.Info("Search index ready", "path", cfg.Path, "records", len(records))
	return idx, nil
}

// Serve runs the HTTP server and the scheduler until ctx is cancelled or one
// of them fails.
func (a *App) Serve(ctx context.Context) error {
	sched, err := jobs.NewScheduler(a.logger, a.cfg.Scheduler, jobs.RegisterAllTasks(a.Coordinator, a.logger))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           api.NewServer(a.Queries, a.Coordinator, a.Slack, a.cfg.HTTP.CORSOrigins, a.logger).Handler(),
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Error shutting down HTTP server", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		if _, err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		for name, next := range sched.NextRuns() {
			a.logger.Info("Next scheduled run", "task_name", name, "at", next.Format(time.RFC3339))
		}

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := sched.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Server stopped due to error", "error", err)
		return err
	}
	a.logger.Info("Server stopped gracefully")
	return nil
}

// Close releases the index and the database.
func (a *App) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Error("Error closing search index", "error", err)
		}
	}
	database.CloseDB(a.db, a.logger)
}
