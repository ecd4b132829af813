package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/model"
	"github.com/starford/raido/internal/plan"
	"github.com/starford/raido/internal/tracker"
)

// Recorder persists what a run created so later runs can skip it. A nil
// Recorder disables journaling; journal failures are never fatal.
type Recorder interface {
	RecordCreated(project, kind, summary, key, epicLink string, nativeLink bool) error
	Lookup(project, kind, summary string) (key string, nativeLink bool, found bool, err error)
	RecordLink(project, storyKey, epicKey string, outcome model.LinkOutcome) error
	EpicKeys(project string) (model.EpicKeyMap, error)
}

// Journal record kinds, mirrored from the journal package to keep the
// dependency pointing one way.
const (
	kindEpic  = "epic"
	kindStory = "story"
)

// Options configures an import run.
type Options struct {
	ProjectKey  string
	ProjectName string
	Pace        time.Duration
}

// Importer sequences project acquisition, capability probing, component
// provisioning, record creation, deferred linking, and summary reporting.
// It owns the epic key map and passes it explicitly to the stages that
// need it.
type Importer struct {
	api      API
	recorder Recorder
	logger   *slog.Logger
	opts     Options
}

// New creates an importer. recorder may be nil.
func New(api API, recorder Recorder, logger *slog.Logger, opts Options) *Importer {
	return &Importer{api: api, recorder: recorder, logger: logger, opts: opts}
}

// Run executes the full import. Only project acquisition and capability
// probing are fatal; every later stage tolerates per-item failures.
func (imp *Importer) Run(ctx context.Context, p *plan.Plan) (*model.Result, error) {
	project, err := imp.acquireProject(ctx)
	if err != nil {
		return &model.Result{Error: err.Error()}, err
	}

	caps, err := Probe(ctx, imp.api, project.Key, imp.logger)
	if err != nil {
		return &model.Result{ProjectKey: project.Key, Error: err.Error()}, err
	}

	ProvisionComponents(ctx, imp.api, project.Key, p.ComponentNames(), imp.logger, imp.opts.Pace)

	formatter := NewFormatter(imp.api, imp.logger, imp.opts.Pace)
	builder := NewBuilder(imp.api, formatter, imp.logger, project.Key, imp.opts.Pace)

	result := &model.Result{ProjectKey: project.Key}
	keys := make(model.EpicKeyMap)

	// Journal state is snapshotted before anything is created: only records
	// from earlier runs are skipped. A summary repeated within the current
	// plan is created again and overwrites, last-write-wins.
	priorEpics := imp.journaledEpicKeys(project.Key)
	priorStories := imp.journaledStoryKeys(project.Key, p.Stories)

	for _, epic := range p.Epics {
		if key, ok := priorEpics[epic.Summary]; ok {
			imp.logger.Info("epic already imported, skipping",
				slog.String("summary", epic.Summary), slog.String("key", key))
			keys[epic.Summary] = key
			continue
		}
		key, ok := builder.CreateEpic(ctx, epic, caps, keys)
		if !ok {
			continue
		}
		result.EpicsCreated++
		imp.journalCreated(project.Key, kindEpic, epic.Summary, key, "", false)
	}

	var created []model.CreatedRecord
	for _, story := range p.Stories {
		if key, ok := priorStories[story.Summary]; ok {
			imp.logger.Info("story already imported, skipping",
				slog.String("summary", story.Summary), slog.String("key", key))
			continue
		}
		rec, ok := builder.CreateStory(ctx, story, caps, keys[story.EpicLink])
		if !ok {
			continue
		}
		result.StoriesCreated++
		imp.journalCreated(project.Key, kindStory, story.Summary, rec.Key, rec.EpicLink, rec.LinkedAsNative)
		created = append(created, *rec)
	}

	imp.deferredLinking(ctx, project.Key, caps, keys, created, result)

	result.Success = true
	imp.logger.Info("import finished",
		slog.String("project", result.ProjectKey),
		slog.Int("epics_created", result.EpicsCreated),
		slog.Int("stories_created", result.StoriesCreated),
		slog.Int("links_resolved", result.LinksResolved),
		slog.Int("links_failed", result.LinksFailed))
	return result, nil
}

// acquireProject reuses an existing project with the target key, creating
// one only if absent, with the authenticated identity as default lead.
func (imp *Importer) acquireProject(ctx context.Context) (*tracker.Project, error) {
	project, err := imp.api.GetProject(ctx, imp.opts.ProjectKey)
	if err == nil {
		imp.logger.Info("reusing existing project", slog.String("key", project.Key))
		return project, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("acquire project %s: %w", imp.opts.ProjectKey, err)
	}

	var lead string
	if me, err := imp.api.Myself(ctx); err != nil {
		imp.logger.Warn("could not resolve authenticated identity, creating project without lead",
			slog.String("error", err.Error()))
	} else {
		lead = me.AccountID
	}

	name := imp.opts.ProjectName
	if name == "" {
		name = imp.opts.ProjectKey
	}
	project, err = imp.api.CreateProject(ctx, tracker.CreateProjectRequest{
		Key:           imp.opts.ProjectKey,
		Name:          name,
		LeadAccountID: lead,
	})
	if err != nil {
		return nil, fmt.Errorf("create project %s: %w", imp.opts.ProjectKey, err)
	}
	imp.logger.Info("project created", slog.String("key", project.Key))
	return project, nil
}

// deferredLinking runs the strategy chain over stories that were created
// without native linkage and whose epic link resolved.
func (imp *Importer) deferredLinking(ctx context.Context, projectKey string, caps *model.CapabilitySet, keys model.EpicKeyMap, created []model.CreatedRecord, result *model.Result) {
	var pending []model.CreatedRecord
	for _, rec := range created {
		if rec.LinkedAsNative || rec.EpicLink == "" {
			continue
		}
		if _, ok := keys[rec.EpicLink]; !ok {
			imp.logger.Warn("story's epic link does not resolve, leaving unlinked",
				slog.String("story", rec.Key),
				slog.String("epic_link", rec.EpicLink))
			continue
		}
		pending = append(pending, rec)
	}

	if len(pending) == 0 {
		imp.logger.Info("no stories need deferred linking")
		return
	}

	engine := NewEngine(imp.api, imp.logger, projectKey, imp.opts.Pace)
	for _, rec := range pending {
		epicKey := keys[rec.EpicLink]
		outcome := engine.Link(ctx, rec.Key, epicKey, caps)
		if outcome.Success {
			result.LinksResolved++
		} else {
			result.LinksFailed++
		}
		if imp.recorder != nil {
			if err := imp.recorder.RecordLink(projectKey, rec.Key, epicKey, outcome); err != nil {
				imp.logger.Warn("journal write failed", slog.String("error", err.Error()))
			}
		}
	}
}

// journaledEpicKeys loads the epic map recorded by earlier runs. Failures
// downgrade to an empty snapshot, so nothing gets skipped.
func (imp *Importer) journaledEpicKeys(project string) model.EpicKeyMap {
	if imp.recorder == nil {
		return nil
	}
	keys, err := imp.recorder.EpicKeys(project)
	if err != nil {
		imp.logger.Warn("journal lookup failed", slog.String("error", err.Error()))
		return nil
	}
	return keys
}

// journaledStoryKeys looks up each plan story once, before creation starts.
func (imp *Importer) journaledStoryKeys(project string, stories []model.Story) map[string]string {
	out := make(map[string]string, len(stories))
	if imp.recorder == nil {
		return out
	}
	for _, s := range stories {
		if _, done := out[s.Summary]; done {
			continue
		}
		if key, ok := imp.lookupJournaled(project, kindStory, s.Summary); ok {
			out[s.Summary] = key
		}
	}
	return out
}

func (imp *Importer) lookupJournaled(project, kind, summary string) (string, bool) {
	if imp.recorder == nil {
		return "", false
	}
	key, _, found, err := imp.recorder.Lookup(project, kind, summary)
	if err != nil {
		imp.logger.Warn("journal lookup failed", slog.String("error", err.Error()))
		return "", false
	}
	return key, found
}

func (imp *Importer) journalCreated(project, kind, summary, key, epicLink string, native bool) {
	if imp.recorder == nil {
		return
	}
	if err := imp.recorder.RecordCreated(project, kind, summary, key, epicLink, native); err != nil {
		imp.logger.Warn("journal write failed", slog.String("error", err.Error()))
	}
}
