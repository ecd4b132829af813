package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/raido/internal/testutil"
	"github.com/starford/raido/internal/tracker"
)

func standardTypes() []tracker.IssueType {
	return []tracker.IssueType{
		{ID: "10000", Name: "Epic"},
		{ID: "10001", Name: "Story"},
		{ID: "10002", Name: "Task"},
		{ID: "10003", Name: "Sub-task", Subtask: true},
	}
}

func TestProbe_ClassifiesStandardTypes(t *testing.T) {
	api := &fakeAPI{
		types: standardTypes(),
		typeFields: map[string]tracker.FieldMeta{
			"parent": {Name: "Parent", Operations: []string{"set"}},
		},
	}

	caps, err := Probe(context.Background(), api, "TST", testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caps.EpicTypeID != "10000" {
		t.Errorf("epic type = %q, want 10000", caps.EpicTypeID)
	}
	if caps.StoryTypeID != "10001" {
		t.Errorf("story type = %q, want 10001", caps.StoryTypeID)
	}
	if caps.SubtaskTypeID != "10003" {
		t.Errorf("subtask type = %q, want 10003", caps.SubtaskTypeID)
	}
	if !caps.HierarchySupported {
		t.Error("hierarchy should be supported with a settable parent field")
	}
}

func TestProbe_NoRecordTypesIsFatal(t *testing.T) {
	api := &fakeAPI{}
	if _, err := Probe(context.Background(), api, "TST", testutil.DiscardLogger()); err == nil {
		t.Fatal("expected error for project with no record types")
	}
}

func TestProbe_HierarchyCheckFailureIsNonFatal(t *testing.T) {
	api := &fakeAPI{
		types:         standardTypes(),
		typeFieldsErr: errors.New("createmeta expansion unavailable"),
	}

	caps, err := Probe(context.Background(), api, "TST", testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caps.HierarchySupported {
		t.Error("hierarchy must be off when the field query fails")
	}
}

func TestProbe_ParentFieldNotSettable(t *testing.T) {
	api := &fakeAPI{
		types: standardTypes(),
		typeFields: map[string]tracker.FieldMeta{
			"parent": {Name: "Parent", Operations: []string{"edit"}},
		},
	}

	caps, err := Probe(context.Background(), api, "TST", testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caps.HierarchySupported {
		t.Error("hierarchy must be off when parent is not settable")
	}
}

func TestProbe_NoSubtaskTypeSkipsFieldQuery(t *testing.T) {
	api := &fakeAPI{
		types: []tracker.IssueType{{ID: "1", Name: "Task"}},
	}

	caps, err := Probe(context.Background(), api, "TST", testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caps.SubtaskTypeID != "" || caps.HierarchySupported {
		t.Errorf("caps = %+v, want no subtask and no hierarchy", caps)
	}
	if api.callCount("IssueTypeFields") != 0 {
		t.Error("field query must be skipped without a subtask type")
	}
}

func TestPickEpicType(t *testing.T) {
	cases := []struct {
		name  string
		types []tracker.IssueType
		want  string
	}{
		{"exact epic", standardTypes(), "10000"},
		{"contains epic", []tracker.IssueType{{ID: "1", Name: "Bug"}, {ID: "2", Name: "Portfolio Epic"}}, "2"},
		{"falls back to task", []tracker.IssueType{{ID: "1", Name: "Bug"}, {ID: "2", Name: "Task"}}, "2"},
		{"first available", []tracker.IssueType{{ID: "9", Name: "Incident"}}, "9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pickEpicType(tc.types).ID; got != tc.want {
				t.Errorf("pickEpicType = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPickStoryType(t *testing.T) {
	cases := []struct {
		name  string
		types []tracker.IssueType
		want  string
	}{
		{"exact story", standardTypes(), "10001"},
		{"contains story", []tracker.IssueType{{ID: "1", Name: "Bug"}, {ID: "2", Name: "User Story"}}, "2"},
		{"non-subtask task", []tracker.IssueType{{ID: "1", Name: "Task", Subtask: true}, {ID: "2", Name: "Task"}}, "2"},
		{"any non-subtask", []tracker.IssueType{{ID: "1", Name: "Sub-task", Subtask: true}, {ID: "2", Name: "Bug"}}, "2"},
		{"first when all subtasks", []tracker.IssueType{{ID: "1", Name: "Sub-task", Subtask: true}}, "1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pickStoryType(tc.types).ID; got != tc.want {
				t.Errorf("pickStoryType = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPickSubtaskType(t *testing.T) {
	cases := []struct {
		name  string
		types []tracker.IssueType
		want  string
	}{
		{"exact sub-task", standardTypes(), "10003"},
		{"contains subtask", []tracker.IssueType{{ID: "1", Name: "Task"}, {ID: "2", Name: "Subtask of Story"}}, "2"},
		{"flagged subtask", []tracker.IssueType{{ID: "1", Name: "Task"}, {ID: "2", Name: "Child", Subtask: true}}, "2"},
		{"none", []tracker.IssueType{{ID: "1", Name: "Task"}}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pickSubtaskType(tc.types); got != tc.want {
				t.Errorf("pickSubtaskType = %q, want %q", got, tc.want)
			}
		})
	}
}
