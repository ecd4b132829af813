// Package model defines the domain types for Raido.
package model

// Epic is a top-level grouping record from the import plan.
type Epic struct {
	Summary     string   `yaml:"summary" json:"summary"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Priority    string   `yaml:"priority,omitempty" json:"priority,omitempty"`
	Labels      []string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Component   string   `yaml:"component,omitempty" json:"component,omitempty"`
}

// Story is a leaf record optionally belonging to one Epic via EpicLink,
// which references the epic's Summary, not a tracker key.
type Story struct {
	Summary     string   `yaml:"summary" json:"summary"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Priority    string   `yaml:"priority,omitempty" json:"priority,omitempty"`
	Labels      []string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Component   string   `yaml:"component,omitempty" json:"component,omitempty"`
	EpicLink    string   `yaml:"epic,omitempty" json:"epic,omitempty"`
}

// EpicKeyMap maps an epic's summary to its tracker-assigned key.
// Populated only on successful creation. Duplicate summaries in the
// plan overwrite earlier entries (last-write-wins).
type EpicKeyMap map[string]string

// CapabilitySet holds the record-type ids probed from the target project.
// Computed once per run and treated as read-only afterwards.
type CapabilitySet struct {
	EpicTypeID    string
	StoryTypeID   string
	SubtaskTypeID string // empty when the project exposes no sub-record type
	// HierarchySupported is true only when the sub-record type exposes a
	// settable parent field.
	HierarchySupported bool
}

// CreatedRecord is a story that made it into the tracker.
type CreatedRecord struct {
	Key      string
	Summary  string
	EpicLink string
	// LinkedAsNative is true when the parent was set at creation time,
	// meaning the deferred linking pass can skip this record.
	LinkedAsNative bool
}

// LinkOutcome reports the result of the deferred linking pass for one story.
type LinkOutcome struct {
	Success  bool
	Strategy string
	// ReplacementKey is set only when a strategy replaced the original
	// record with a new one (the original is left in place).
	ReplacementKey string
}

// Result is the final value handed back to the CLI surface.
type Result struct {
	Success        bool   `json:"success"`
	ProjectKey     string `json:"project_key,omitempty"`
	EpicsCreated   int    `json:"epics_created"`
	StoriesCreated int    `json:"stories_created"`
	LinksResolved  int    `json:"links_resolved"`
	LinksFailed    int    `json:"links_failed"`
	Error          string `json:"error,omitempty"`
}
