package importer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/starford/raido/internal/model"
	"github.com/starford/raido/internal/tracker"
)

// Engine applies an ordered chain of linking strategies to stories that
// were not created with native parent linkage. Each strategy either
// succeeds (the chain stops) or fails (logged, next strategy tried). A
// strategy is never retried for the same pair.
type Engine struct {
	api        API
	logger     *slog.Logger
	projectKey string
	pace       time.Duration
}

// NewEngine creates a link strategy engine for one project.
func NewEngine(api API, logger *slog.Logger, projectKey string, pace time.Duration) *Engine {
	return &Engine{api: api, logger: logger, projectKey: projectKey, pace: pace}
}

// Link type names understood by Jira-class trackers.
const (
	linkTypeRelates = "Relates"
	linkTypeBlocks  = "Blocks"
)

type linkStrategy struct {
	name string
	// apply returns the replacement key when the strategy produced a new
	// record in place of the original; "" otherwise.
	apply func(ctx context.Context, storyKey, epicKey string, caps *model.CapabilitySet) (string, error)
}

func (e *Engine) strategies() []linkStrategy {
	return []linkStrategy{
		{name: "type-conversion", apply: e.convertToSubtask},
		{name: "issue-link-relates", apply: e.relatesLink},
		{name: "issue-link-blocks", apply: e.blocksLink},
		{name: "custom-field", apply: e.customField},
		{name: "recreate-subtask", apply: e.recreateAsSubtask},
		{name: "label-tag", apply: e.labelTag},
	}
}

// Link walks the strategy chain for one (story, epic) pair, stopping at the
// first success. All six failing is non-fatal to the run.
func (e *Engine) Link(ctx context.Context, storyKey, epicKey string, caps *model.CapabilitySet) model.LinkOutcome {
	for _, s := range e.strategies() {
		replacement, err := s.apply(ctx, storyKey, epicKey, caps)
		pause(ctx, e.pace)
		if err == nil {
			e.logger.Info("story linked to epic",
				slog.String("story", storyKey),
				slog.String("epic", epicKey),
				slog.String("strategy", s.name))
			return model.LinkOutcome{Success: true, Strategy: s.name, ReplacementKey: replacement}
		}
		e.logger.Debug("link strategy failed",
			slog.String("story", storyKey),
			slog.String("epic", epicKey),
			slog.String("strategy", s.name),
			slog.String("error", err.Error()))
	}
	e.logger.Warn("story could not be linked to epic",
		slog.String("story", storyKey),
		slog.String("epic", epicKey))
	return model.LinkOutcome{}
}

// convertToSubtask re-queries the sub-record type and updates the story in
// place to that type with the epic as parent.
func (e *Engine) convertToSubtask(ctx context.Context, storyKey, epicKey string, _ *model.CapabilitySet) (string, error) {
	types, err := e.api.IssueTypes(ctx, e.projectKey)
	if err != nil {
		return "", fmt.Errorf("re-query record types: %w", err)
	}
	subtaskID := pickSubtaskType(types)
	if subtaskID == "" {
		return "", fmt.Errorf("no sub-record type available")
	}
	return "", e.api.UpdateIssue(ctx, storyKey, map[string]any{
		"fields": map[string]any{
			"issuetype": map[string]string{"id": subtaskID},
			"parent":    map[string]string{"key": epicKey},
		},
	})
}

// relatesLink creates a generic bidirectional "relates to" link.
func (e *Engine) relatesLink(ctx context.Context, storyKey, epicKey string, _ *model.CapabilitySet) (string, error) {
	return "", e.api.LinkIssues(ctx, linkTypeRelates, storyKey, epicKey)
}

// blocksLink creates a "blocks" link with the epic as blocker of the story.
func (e *Engine) blocksLink(ctx context.Context, storyKey, epicKey string, _ *model.CapabilitySet) (string, error) {
	return "", e.api.LinkIssues(ctx, linkTypeBlocks, storyKey, epicKey)
}

// customField discovers a field whose name matches the epic-link naming
// heuristic and sets it to the epic key directly. Name-based lookup is
// best-effort and fails closed when no field matches.
func (e *Engine) customField(ctx context.Context, storyKey, epicKey string, _ *model.CapabilitySet) (string, error) {
	fields, err := e.api.Fields(ctx)
	if err != nil {
		return "", fmt.Errorf("list fields: %w", err)
	}
	fieldID := findEpicLinkField(fields)
	if fieldID == "" {
		return "", fmt.Errorf("no epic-link field found")
	}
	return "", e.api.UpdateIssue(ctx, storyKey, map[string]any{
		"fields": map[string]any{fieldID: epicKey},
	})
}

// findEpicLinkField is a pure lookup over the field list for a name that
// looks like the tracker's epic-link custom field.
func findEpicLinkField(fields []tracker.Field) string {
	for _, f := range fields {
		name := strings.ToLower(f.Name)
		if strings.Contains(name, "epic link") || strings.Contains(name, "parent link") {
			return f.ID
		}
	}
	return ""
}

// recreateAsSubtask creates a brand-new sub-record under the epic carrying
// the story's summary and description, then relates the new record back to
// the original. The original is deliberately left in place; the replacement
// key is reported so callers can see the duplication.
func (e *Engine) recreateAsSubtask(ctx context.Context, storyKey, epicKey string, caps *model.CapabilitySet) (string, error) {
	if caps.SubtaskTypeID == "" {
		return "", fmt.Errorf("no sub-record type available")
	}

	original, err := e.api.GetIssue(ctx, storyKey)
	if err != nil {
		return "", fmt.Errorf("fetch original story: %w", err)
	}
	summary, _ := original["summary"].(string)
	if summary == "" {
		summary = storyKey
	}

	fields := map[string]any{
		"project":   map[string]string{"key": e.projectKey},
		"summary":   summary,
		"issuetype": map[string]string{"id": caps.SubtaskTypeID},
		"parent":    map[string]string{"key": epicKey},
	}
	if desc, ok := original["description"]; ok && desc != nil {
		fields["description"] = desc
	}

	newKey, err := e.api.CreateIssue(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("create replacement sub-record: %w", err)
	}

	if err := e.api.LinkIssues(ctx, linkTypeRelates, storyKey, newKey); err != nil {
		e.logger.Warn("replacement created but back-link failed",
			slog.String("original", storyKey),
			slog.String("replacement", newKey),
			slog.String("error", err.Error()))
	}
	return newKey, nil
}

var labelSanitizer = regexp.MustCompile(`[^a-z0-9-]+`)

// labelTag fetches the epic's summary and adds a sanitized label derived
// from the epic key to the story, as a soft marker of association.
func (e *Engine) labelTag(ctx context.Context, storyKey, epicKey string, _ *model.CapabilitySet) (string, error) {
	epicFields, err := e.api.GetIssue(ctx, epicKey)
	if err != nil {
		return "", fmt.Errorf("fetch epic: %w", err)
	}
	epicSummary, _ := epicFields["summary"].(string)

	label := "epic-" + labelSanitizer.ReplaceAllString(strings.ToLower(epicKey), "-")
	err = e.api.UpdateIssue(ctx, storyKey, map[string]any{
		"update": map[string]any{
			"labels": []map[string]any{{"add": label}},
		},
	})
	if err != nil {
		return "", err
	}
	e.logger.Debug("story tagged with epic label",
		slog.String("story", storyKey),
		slog.String("label", label),
		slog.String("epic_summary", epicSummary))
	return "", nil
}
