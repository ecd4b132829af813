package importer

import (
	"context"
	"log/slog"
	"time"
)

// ProvisionComponents idempotently creates the component names referenced by
// the plan. Duplicates are collapsed first; per-name failures (typically
// "already exists") are logged and skipped. The returned slice of created
// names is informational only.
func ProvisionComponents(ctx context.Context, api API, projectKey string, names []string, logger *slog.Logger, pace time.Duration) []string {
	seen := make(map[string]bool, len(names))
	var created []string

	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		if err := api.CreateComponent(ctx, projectKey, name); err != nil {
			logger.Warn("component not created",
				slog.String("component", name),
				slog.String("error", err.Error()))
		} else {
			logger.Info("component created", slog.String("component", name))
			created = append(created, name)
		}
		pause(ctx, pace)
	}
	return created
}
