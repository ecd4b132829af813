// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/importer"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/model"
	"github.com/starford/raido/internal/plan"
	"github.com/starford/raido/internal/tracker"
)

// Run executes an import with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("tracker", cfg.Tracker.BaseURL),
		slog.String("project", cfg.Project.Key),
		slog.String("plan", cfg.Import.PlanPath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	p, err := plan.Load(cfg.Import.PlanPath)
	if err != nil {
		return err
	}
	logger.Info("Plan loaded",
		slog.Int("epics", len(p.Epics)),
		slog.Int("stories", len(p.Stories)))

	if app.dryRun {
		return dryRun(logger, p)
	}

	// Journal failures downgrade to an unjournaled run, never abort it.
	var recorder importer.Recorder
	if cfg.Import.JournalPath != "" {
		j, err := journal.Open(cfg.Import.JournalPath)
		if err != nil {
			logger.Warn("journal unavailable, continuing without it",
				slog.String("error", err.Error()))
		} else {
			defer j.Close()
			recorder = j
		}
	}

	client := tracker.New(cfg.Tracker.BaseURL, cfg.Tracker.Email, cfg.Tracker.Token)
	imp := importer.New(client, recorder, logger, importer.Options{
		ProjectKey:  cfg.Project.Key,
		ProjectName: cfg.Project.Name,
		Pace:        cfg.Import.Pace,
	})

	var result *model.Result

	g, gCtx := errgroup.WithContext(ctx)

	// Run the import.
	g.Go(func() error {
		r, err := imp.Run(gCtx, p)
		result = r
		return err
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			return fmt.Errorf("interrupted by %s", sig)
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Import failed", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Import succeeded",
		slog.String("project", result.ProjectKey),
		slog.Int("epics_created", result.EpicsCreated),
		slog.Int("stories_created", result.StoriesCreated))
	return nil
}

// dryRun reports what an import would do without touching the tracker.
func dryRun(logger *slog.Logger, p *plan.Plan) error {
	summaries := p.EpicSummaries()
	unresolved := 0
	for _, s := range p.Stories {
		if s.EpicLink != "" && !summaries[s.EpicLink] {
			logger.Warn("story references unknown epic",
				slog.String("story", s.Summary),
				slog.String("epic_link", s.EpicLink))
			unresolved++
		}
	}
	logger.Info("dry run complete",
		slog.Int("epics", len(p.Epics)),
		slog.Int("stories", len(p.Stories)),
		slog.Int("components", len(p.ComponentNames())),
		slog.Int("unresolved_epic_links", unresolved))
	return nil
}

// Check verifies tracker credentials by fetching the authenticated identity.
func Check(ctx context.Context, cfg *Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	client := tracker.New(cfg.Tracker.BaseURL, cfg.Tracker.Email, cfg.Tracker.Token)
	me, err := client.Myself(ctx)
	if err != nil {
		return fmt.Errorf("auth check: %w", err)
	}
	logger.Info("authenticated",
		slog.String("account_id", me.AccountID),
		slog.String("display_name", me.DisplayName))
	return nil
}
