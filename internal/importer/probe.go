package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/raido/internal/model"
	"github.com/starford/raido/internal/tracker"
)

// Probe queries the project's record-type schema and classifies which type
// ids to use for epics, stories, and sub-records, and whether the target
// supports native parent/child hierarchy. A project exposing zero record
// types is a fatal error; a failed hierarchy check is not.
func Probe(ctx context.Context, api API, projectKey string, logger *slog.Logger) (*model.CapabilitySet, error) {
	types, err := api.IssueTypes(ctx, projectKey)
	if err != nil {
		return nil, fmt.Errorf("probe: list record types for %s: %w", projectKey, err)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("probe: project %s exposes no record types", projectKey)
	}

	caps := &model.CapabilitySet{
		EpicTypeID:    pickEpicType(types).ID,
		StoryTypeID:   pickStoryType(types).ID,
		SubtaskTypeID: pickSubtaskType(types),
	}

	if caps.SubtaskTypeID != "" {
		fields, err := api.IssueTypeFields(ctx, projectKey, caps.SubtaskTypeID)
		if err != nil {
			logger.Warn("hierarchy check failed, assuming no native hierarchy",
				slog.String("subtask_type", caps.SubtaskTypeID),
				slog.String("error", err.Error()))
		} else if parent, ok := fields["parent"]; ok && parent.Settable() {
			caps.HierarchySupported = true
		}
	}

	logger.Info("capabilities probed",
		slog.String("epic_type", caps.EpicTypeID),
		slog.String("story_type", caps.StoryTypeID),
		slog.String("subtask_type", caps.SubtaskTypeID),
		slog.Bool("hierarchy", caps.HierarchySupported))
	return caps, nil
}

// pickEpicType selects the type used for epics:
// exact "Epic" > name containing "Epic" > exact "Task" > first available.
func pickEpicType(types []tracker.IssueType) tracker.IssueType {
	if t, ok := byExactName(types, "Epic"); ok {
		return t
	}
	if t, ok := byNameContains(types, "epic"); ok {
		return t
	}
	if t, ok := byExactName(types, "Task"); ok {
		return t
	}
	return types[0]
}

// pickStoryType selects the type used for stories:
// exact "Story" > name containing "Story" > a non-sub-record "Task" >
// any non-sub-record type > first available.
func pickStoryType(types []tracker.IssueType) tracker.IssueType {
	if t, ok := byExactName(types, "Story"); ok {
		return t
	}
	if t, ok := byNameContains(types, "story"); ok {
		return t
	}
	for _, t := range types {
		if !t.Subtask && strings.EqualFold(t.Name, "Task") {
			return t
		}
	}
	for _, t := range types {
		if !t.Subtask {
			return t
		}
	}
	return types[0]
}

// pickSubtaskType selects the sub-record type, or "" when none exists:
// exact "Sub-task" > name containing "Subtask" > any type flagged subtask.
func pickSubtaskType(types []tracker.IssueType) string {
	if t, ok := byExactName(types, "Sub-task"); ok {
		return t.ID
	}
	if t, ok := byNameContains(types, "subtask"); ok {
		return t.ID
	}
	for _, t := range types {
		if t.Subtask {
			return t.ID
		}
	}
	return ""
}

func byExactName(types []tracker.IssueType, name string) (tracker.IssueType, bool) {
	for _, t := range types {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return tracker.IssueType{}, false
}

func byNameContains(types []tracker.IssueType, sub string) (tracker.IssueType, bool) {
	for _, t := range types {
		if strings.Contains(strings.ToLower(t.Name), sub) {
			return t, true
		}
	}
	return tracker.IssueType{}, false
}
