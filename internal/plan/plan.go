// Package plan loads and validates the import plan: the epics and stories
// to be created in the target tracker.
package plan

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/raido/internal/model"
)

// Plan is the parsed input record set.
type Plan struct {
	Epics   []model.Epic  `yaml:"epics"`
	Stories []model.Story `yaml:"stories"`
}

// Load reads and validates a plan file. Absent or malformed content is a
// fatal load error surfaced before the orchestrator starts.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: read %s: %w", path, err)
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("plan: parse %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("plan: %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks every record. Duplicate epic summaries are allowed and
// resolve last-write-wins downstream; an empty plan is allowed too.
func (p *Plan) Validate() error {
	for i := range p.Epics {
		if err := validation.ValidateStruct(&p.Epics[i],
			validation.Field(&p.Epics[i].Summary, validation.Required),
		); err != nil {
			return fmt.Errorf("epic %d: %w", i, err)
		}
	}
	for i := range p.Stories {
		if err := validation.ValidateStruct(&p.Stories[i],
			validation.Field(&p.Stories[i].Summary, validation.Required),
		); err != nil {
			return fmt.Errorf("story %d: %w", i, err)
		}
	}
	return nil
}

// ComponentNames collects every component referenced by the plan, duplicates
// included; the provisioner deduplicates before creating.
func (p *Plan) ComponentNames() []string {
	var names []string
	for _, e := range p.Epics {
		if e.Component != "" {
			names = append(names, e.Component)
		}
	}
	for _, s := range p.Stories {
		if s.Component != "" {
			names = append(names, s.Component)
		}
	}
	return names
}

// EpicSummaries returns the set of epic summaries, for resolving epic links
// without hitting the tracker (dry runs).
func (p *Plan) EpicSummaries() map[string]bool {
	out := make(map[string]bool, len(p.Epics))
	for _, e := range p.Epics {
		out[e.Summary] = true
	}
	return out
}
