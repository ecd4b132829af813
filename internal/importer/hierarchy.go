package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/raido/internal/model"
)

// Builder creates epic and story records using a two-tier creation
// protocol: a create with the probed type id first, then a retry with the
// generic fallback type name. A record counts as created the moment the
// minimal create call returns a key; description attachment and linking are
// strictly best-effort afterwards.
type Builder struct {
	api        API
	formatter  *Formatter
	logger     *slog.Logger
	projectKey string
	pace       time.Duration
}

// NewBuilder creates a hierarchy builder for one project.
func NewBuilder(api API, formatter *Formatter, logger *slog.Logger, projectKey string, pace time.Duration) *Builder {
	return &Builder{
		api:        api,
		formatter:  formatter,
		logger:     logger,
		projectKey: projectKey,
		pace:       pace,
	}
}

// fallbackTypeName is the generic record type retried when the probed type
// id is rejected. Minimal fields only, to maximize acceptance across
// schema variants.
const fallbackTypeName = "Task"

type creationTier struct {
	name   string
	fields func() map[string]any
}

// create walks the tier chain and returns the first assigned key.
func (b *Builder) create(ctx context.Context, summary string, tiers []creationTier) (string, bool) {
	for _, tier := range tiers {
		key, err := b.api.CreateIssue(ctx, tier.fields())
		pause(ctx, b.pace)
		if err == nil {
			b.logger.Info("record created",
				slog.String("key", key),
				slog.String("summary", summary),
				slog.String("tier", tier.name))
			return key, true
		}
		b.logger.Warn("creation tier failed",
			slog.String("summary", summary),
			slog.String("tier", tier.name),
			slog.String("error", err.Error()))
	}
	return "", false
}

func (b *Builder) baseFields(summary string) map[string]any {
	return map[string]any{
		"project": map[string]string{"key": b.projectKey},
		"summary": summary,
	}
}

// CreateEpic creates one epic and records its key in keys on success.
// Returns the key and false when both tiers were rejected (the epic is
// dropped from the run).
func (b *Builder) CreateEpic(ctx context.Context, epic model.Epic, caps *model.CapabilitySet, keys model.EpicKeyMap) (string, bool) {
	tiers := []creationTier{
		{name: "probed-type", fields: func() map[string]any {
			f := b.baseFields(epic.Summary)
			f["issuetype"] = map[string]string{"id": caps.EpicTypeID}
			return f
		}},
		{name: "generic-task", fields: func() map[string]any {
			f := b.baseFields(epic.Summary)
			f["issuetype"] = map[string]string{"name": fallbackTypeName}
			return f
		}},
	}

	key, ok := b.create(ctx, epic.Summary, tiers)
	if !ok {
		b.logger.Warn("epic dropped, both creation tiers rejected",
			slog.String("summary", epic.Summary))
		return "", false
	}

	// Last-write-wins when the plan repeats a summary.
	keys[epic.Summary] = key
	b.formatter.Attach(ctx, key, epic.Description)
	return key, true
}

// CreateStory creates one story. When native hierarchy is available and the
// parent epic key is known, a direct parent-linked creation is attempted
// first; its failure is absorbed silently into the standard path.
func (b *Builder) CreateStory(ctx context.Context, story model.Story, caps *model.CapabilitySet, parentEpicKey string) (*model.CreatedRecord, bool) {
	if caps.HierarchySupported && caps.SubtaskTypeID != "" && parentEpicKey != "" {
		fields := b.baseFields(story.Summary)
		fields["issuetype"] = map[string]string{"id": caps.SubtaskTypeID}
		fields["parent"] = map[string]string{"key": parentEpicKey}

		key, err := b.api.CreateIssue(ctx, fields)
		pause(ctx, b.pace)
		if err == nil {
			b.logger.Info("story created under parent",
				slog.String("key", key),
				slog.String("parent", parentEpicKey))
			b.formatter.Attach(ctx, key, story.Description)
			return &model.CreatedRecord{
				Key:            key,
				Summary:        story.Summary,
				EpicLink:       story.EpicLink,
				LinkedAsNative: true,
			}, true
		}
		b.logger.Debug("parent-linked creation rejected, falling back to standard path",
			slog.String("summary", story.Summary),
			slog.String("error", err.Error()))
	}

	tiers := []creationTier{
		{name: "probed-type", fields: func() map[string]any {
			f := b.baseFields(story.Summary)
			f["issuetype"] = map[string]string{"id": caps.StoryTypeID}
			return f
		}},
		{name: "generic-task", fields: func() map[string]any {
			f := b.baseFields(story.Summary)
			f["issuetype"] = map[string]string{"name": fallbackTypeName}
			return f
		}},
	}

	key, ok := b.create(ctx, story.Summary, tiers)
	if !ok {
		b.logger.Warn("story dropped, both creation tiers rejected",
			slog.String("summary", story.Summary))
		return nil, false
	}

	b.formatter.Attach(ctx, key, story.Description)
	return &model.CreatedRecord{
		Key:      key,
		Summary:  story.Summary,
		EpicLink: story.EpicLink,
	}, true
}
