// Package importer implements the adaptive import pipeline: capability
// probing, two-tier record creation, content formatting, and the deferred
// linking strategy chain.
package importer

import (
	"context"

	"github.com/starford/raido/internal/tracker"
)

// API is the slice of the tracker client the importer depends on.
// Tests substitute an in-process fake; production wires *tracker.Client.
type API interface {
	Myself(ctx context.Context) (*tracker.User, error)
	GetProject(ctx context.Context, key string) (*tracker.Project, error)
	CreateProject(ctx context.Context, req tracker.CreateProjectRequest) (*tracker.Project, error)
	IssueTypes(ctx context.Context, projectKey string) ([]tracker.IssueType, error)
	IssueTypeFields(ctx context.Context, projectKey, typeID string) (map[string]tracker.FieldMeta, error)
	CreateIssue(ctx context.Context, fields map[string]any) (string, error)
	UpdateIssue(ctx context.Context, key string, payload map[string]any) error
	GetIssue(ctx context.Context, key string) (map[string]any, error)
	CreateComponent(ctx context.Context, projectKey, name string) error
	LinkIssues(ctx context.Context, linkType, inwardKey, outwardKey string) error
	Fields(ctx context.Context) ([]tracker.Field, error)
}

// Verify *tracker.Client satisfies API at compile time.
var _ API = (*tracker.Client)(nil)
