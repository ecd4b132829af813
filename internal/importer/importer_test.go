package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/model"
	"github.com/starford/raido/internal/plan"
	"github.com/starford/raido/internal/testutil"
	"github.com/starford/raido/internal/tracker"
	"github.com/starford/raido/internal/tracker/trackertest"
)

// scenarioServer builds a fake tracker with the TST project and a standard
// type palette. withHierarchy controls whether the sub-task type exposes a
// settable parent field.
func scenarioServer(t *testing.T, withHierarchy bool) *trackertest.Server {
	t.Helper()
	srv := trackertest.New(t)
	srv.Projects["TST"] = tracker.Project{ID: "10001", Key: "TST", Name: "Test"}
	srv.Types = standardTypes()
	if withHierarchy {
		srv.TypeFields["10003"] = map[string]tracker.FieldMeta{
			"parent": {Name: "Parent", Operations: []string{"set"}},
		}
	}
	return srv
}

func newScenarioImporter(srv *trackertest.Server, recorder Recorder) *Importer {
	return New(srv.Client(), recorder, testutil.DiscardLogger(), Options{
		ProjectKey:  "TST",
		ProjectName: "Test",
	})
}

func foundationPlan() *plan.Plan {
	return &plan.Plan{
		Epics:   []model.Epic{{Summary: "Foundation"}},
		Stories: []model.Story{{Summary: "Login flow", EpicLink: "Foundation"}},
	}
}

// findIssue returns the key of the issue with the given summary.
func findIssue(t *testing.T, srv *trackertest.Server, summary string) (string, map[string]any) {
	t.Helper()
	for key, fields := range srv.Issues {
		if fields["summary"] == summary {
			return key, fields
		}
	}
	t.Fatalf("no issue with summary %q", summary)
	return "", nil
}

func TestRun_NativeHierarchy(t *testing.T) {
	srv := scenarioServer(t, true)
	imp := newScenarioImporter(srv, nil)

	result, err := imp.Run(context.Background(), foundationPlan())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.EpicsCreated != 1 || result.StoriesCreated != 1 {
		t.Errorf("created = %d/%d, want 1/1", result.EpicsCreated, result.StoriesCreated)
	}
	if result.LinksResolved != 0 || result.LinksFailed != 0 {
		t.Errorf("deferred linking ran (%d/%d), want zero stories processed",
			result.LinksResolved, result.LinksFailed)
	}

	epicKey, _ := findIssue(t, srv, "Foundation")
	_, storyFields := findIssue(t, srv, "Login flow")
	parent, _ := storyFields["parent"].(map[string]any)
	if parent["key"] != epicKey {
		t.Errorf("story parent = %v, want %q", storyFields["parent"], epicKey)
	}
	if len(srv.Links) != 0 {
		t.Errorf("links = %v, want none", srv.Links)
	}
}

func TestRun_DeferredLinkingWithoutHierarchy(t *testing.T) {
	srv := scenarioServer(t, false)
	// Veto in-place type conversion so the chain reaches the relates link.
	srv.RejectUpdate = func(_ string, payload map[string]any) string {
		if fields, ok := payload["fields"].(map[string]any); ok {
			if _, conversion := fields["issuetype"]; conversion {
				return "issue type cannot be changed"
			}
		}
		return ""
	}
	imp := newScenarioImporter(srv, nil)

	result, err := imp.Run(context.Background(), foundationPlan())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.LinksResolved != 1 {
		t.Errorf("links resolved = %d, want exactly one deferred link", result.LinksResolved)
	}

	epicKey, _ := findIssue(t, srv, "Foundation")
	storyKey, _ := findIssue(t, srv, "Login flow")
	if len(srv.Links) != 1 {
		t.Fatalf("links = %v, want one", srv.Links)
	}
	link := srv.Links[0]
	if link.Type != "Relates" || link.Inward != storyKey || link.Outward != epicKey {
		t.Errorf("link = %+v, want Relates %s -> %s", link, storyKey, epicKey)
	}
}

func TestRun_TypeConversionHandlesDeferredLink(t *testing.T) {
	srv := scenarioServer(t, false)
	imp := newScenarioImporter(srv, nil)

	result, err := imp.Run(context.Background(), foundationPlan())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.LinksResolved != 1 {
		t.Errorf("links resolved = %d, want 1", result.LinksResolved)
	}

	epicKey, _ := findIssue(t, srv, "Foundation")
	_, storyFields := findIssue(t, srv, "Login flow")
	parent, _ := storyFields["parent"].(map[string]any)
	if parent["key"] != epicKey {
		t.Errorf("story parent after conversion = %v, want %q", storyFields["parent"], epicKey)
	}
}

func TestRun_CreatesProjectOnceAcrossRuns(t *testing.T) {
	srv := trackertest.New(t)
	srv.Types = standardTypes()

	for i := 0; i < 2; i++ {
		imp := newScenarioImporter(srv, nil)
		if _, err := imp.Run(context.Background(), &plan.Plan{}); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}
	if len(srv.Projects) != 1 {
		t.Errorf("projects = %d, want the existing project reused", len(srv.Projects))
	}
}

func TestRun_DuplicateEpicSummaryLastWriteWins(t *testing.T) {
	srv := scenarioServer(t, true)
	imp := newScenarioImporter(srv, nil)

	p := &plan.Plan{
		Epics: []model.Epic{
			{Summary: "Foundation", Description: ""},
			{Summary: "Foundation", Description: ""},
		},
		Stories: []model.Story{{Summary: "Login flow", EpicLink: "Foundation"}},
	}
	result, err := imp.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.EpicsCreated != 2 {
		t.Errorf("epics created = %d, want 2 (both records exist)", result.EpicsCreated)
	}

	// The second epic gets the higher issue number; the story must point
	// at it, not at the first.
	var lastEpicKey string
	for key, fields := range srv.Issues {
		if fields["summary"] == "Foundation" && key > lastEpicKey {
			lastEpicKey = key
		}
	}
	_, storyFields := findIssue(t, srv, "Login flow")
	parent, _ := storyFields["parent"].(map[string]any)
	if parent["key"] != lastEpicKey {
		t.Errorf("story parent = %v, want %q (last-write-wins)", storyFields["parent"], lastEpicKey)
	}
}

func TestRun_DuplicateEpicSummaryLastWriteWinsWithJournal(t *testing.T) {
	srv := scenarioServer(t, true)
	j := testutil.TestJournal(t)
	imp := newScenarioImporter(srv, j)

	p := &plan.Plan{
		Epics: []model.Epic{
			{Summary: "Foundation"},
			{Summary: "Foundation"},
		},
		Stories: []model.Story{{Summary: "Login flow", EpicLink: "Foundation"}},
	}
	result, err := imp.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.EpicsCreated != 2 {
		t.Errorf("epics created = %d, want 2 (rows journaled this run must not suppress later duplicates)",
			result.EpicsCreated)
	}

	var lastEpicKey string
	for key, fields := range srv.Issues {
		if fields["summary"] == "Foundation" && key > lastEpicKey {
			lastEpicKey = key
		}
	}
	_, storyFields := findIssue(t, srv, "Login flow")
	parent, _ := storyFields["parent"].(map[string]any)
	if parent["key"] != lastEpicKey {
		t.Errorf("story parent = %v, want %q (last-write-wins)", storyFields["parent"], lastEpicKey)
	}

	key, _, found, err := j.Lookup("TST", journal.KindEpic, "Foundation")
	if err != nil || !found {
		t.Fatalf("journal lookup = (found %v, err %v)", found, err)
	}
	if key != lastEpicKey {
		t.Errorf("journaled key = %q, want %q (upsert keeps the latest row)", key, lastEpicKey)
	}
}

func TestRun_UnresolvedEpicLinkStaysUnlinked(t *testing.T) {
	srv := scenarioServer(t, true)
	imp := newScenarioImporter(srv, nil)

	p := &plan.Plan{
		Stories: []model.Story{{Summary: "Orphan", EpicLink: "Missing"}},
	}
	result, err := imp.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.StoriesCreated != 1 {
		t.Errorf("stories created = %d, want 1", result.StoriesCreated)
	}
	if result.LinksResolved != 0 || result.LinksFailed != 0 {
		t.Error("orphan story must never enter the linking pass")
	}
	_, fields := findIssue(t, srv, "Orphan")
	if _, hasParent := fields["parent"]; hasParent {
		t.Error("orphan story must not carry a parent")
	}
	if len(srv.Links) != 0 {
		t.Errorf("links = %v, want none", srv.Links)
	}
}

func TestRun_ComponentsProvisionedOnce(t *testing.T) {
	srv := scenarioServer(t, true)
	imp := newScenarioImporter(srv, nil)

	p := &plan.Plan{
		Epics: []model.Epic{
			{Summary: "A", Component: "backend"},
			{Summary: "B", Component: "backend"},
		},
		Stories: []model.Story{{Summary: "S", Component: "frontend"}},
	}
	if _, err := imp.Run(context.Background(), p); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(srv.Components) != 2 {
		t.Errorf("components = %v, want [backend frontend]", srv.Components)
	}
}

func TestRun_JournaledRerunSkipsExistingRecords(t *testing.T) {
	srv := scenarioServer(t, true)
	j := testutil.TestJournal(t)

	first, err := newScenarioImporter(srv, j).Run(context.Background(), foundationPlan())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.EpicsCreated != 1 || first.StoriesCreated != 1 {
		t.Fatalf("first run created %d/%d, want 1/1", first.EpicsCreated, first.StoriesCreated)
	}
	issuesAfterFirst := len(srv.Issues)

	second, err := newScenarioImporter(srv, j).Run(context.Background(), foundationPlan())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.EpicsCreated != 0 || second.StoriesCreated != 0 {
		t.Errorf("second run created %d/%d, want 0/0", second.EpicsCreated, second.StoriesCreated)
	}
	if len(srv.Issues) != issuesAfterFirst {
		t.Errorf("issues = %d, want unchanged %d", len(srv.Issues), issuesAfterFirst)
	}
}

func TestRun_DescriptionSurvivesRichTextRejection(t *testing.T) {
	srv := scenarioServer(t, true)
	// Reject every structured document; only the raw string assignment works.
	srv.RejectUpdate = func(_ string, payload map[string]any) string {
		if upd, ok := payload["update"].(map[string]any); ok {
			if _, isDesc := upd["description"]; isDesc {
				return "operation not supported"
			}
		}
		if fields, ok := payload["fields"].(map[string]any); ok {
			if _, isDoc := fields["description"].(map[string]any); isDoc {
				return "expected a string"
			}
		}
		return ""
	}
	imp := newScenarioImporter(srv, nil)

	p := &plan.Plan{Epics: []model.Epic{{Summary: "Foundation", Description: "plain words"}}}
	if _, err := imp.Run(context.Background(), p); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	_, fields := findIssue(t, srv, "Foundation")
	desc, _ := fields["description"].(string)
	if !strings.Contains(desc, "plain words") {
		t.Errorf("description = %v, want the plain string fallback applied", fields["description"])
	}
}
