package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/raido/internal"
	pkgconfig "github.com/starford/raido/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()

	// An explicitly given config path must exist; the default path is
	// optional so defaults plus environment variables can carry a run.
	var err error
	if cmd.IsSet("config") {
		err = pkgconfig.Load(cmd.String("config"), cfg)
	} else {
		err = pkgconfig.LoadIfPresent(cmd.String("config"), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if planPath := cmd.String("plan"); planPath != "" {
		cfg.Import.PlanPath = planPath
	}
	return cfg, nil
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithDryRun(cmd.Bool("dry-run")),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("import error: %w", err)
	}
	return nil
}

func runCheck(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Check(ctx, cfg)
}

func main() {
	cmd := &cli.Command{
		Name:  "raido",
		Usage: "Import epics and stories into a Jira-class tracker, adapting to whatever schema the target actually supports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("RAIDO_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "import",
				Usage:  "Run the import against the configured project",
				Action: runImport,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "plan",
						Usage:   "Path to the plan file (overrides config)",
						Sources: cli.EnvVars("RAIDO_PLAN_FILE"),
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Validate the plan and report what would be imported",
					},
				},
			},
			{
				Name:   "check",
				Usage:  "Verify tracker credentials",
				Action: runCheck,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
