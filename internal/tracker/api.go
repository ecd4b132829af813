package tracker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// User is the authenticated identity.
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"emailAddress"`
}

// Project is a tracker project.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// IssueType is one record type a project accepts.
type IssueType struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}

// FieldMeta describes one settable field of an issue type.
type FieldMeta struct {
	Name       string   `json:"name"`
	Required   bool     `json:"required"`
	Operations []string `json:"operations"`
}

// Settable reports whether the field accepts a set operation. An absent
// operations list is treated as settable; some deployments omit it.
func (f FieldMeta) Settable() bool {
	if len(f.Operations) == 0 {
		return true
	}
	for _, op := range f.Operations {
		if op == "set" {
			return true
		}
	}
	return false
}

// Field is an entry from the global field list.
type Field struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Myself returns the authenticated user.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/myself", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetProject fetches a project by key. Missing projects surface as
// apperr.ErrNotFound.
func (c *Client) GetProject(ctx context.Context, key string) (*Project, error) {
	var p Project
	if err := c.get(ctx, "/project/"+url.PathEscape(key), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProjectRequest is the payload for CreateProject.
type CreateProjectRequest struct {
	Key           string `json:"key"`
	Name          string `json:"name"`
	TypeKey       string `json:"projectTypeKey"`
	LeadAccountID string `json:"leadAccountId,omitempty"`
}

// CreateProject creates a new project.
func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	if req.TypeKey == "" {
		req.TypeKey = "software"
	}
	var p Project
	if err := c.do(ctx, http.MethodPost, "/project", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

type createMetaResponse struct {
	Projects []struct {
		IssueTypes []struct {
			IssueType
			Fields map[string]FieldMeta `json:"fields"`
		} `json:"issuetypes"`
	} `json:"projects"`
}

// IssueTypes lists the record types the project accepts.
func (c *Client) IssueTypes(ctx context.Context, projectKey string) ([]IssueType, error) {
	var meta createMetaResponse
	path := "/issue/createmeta?projectKeys=" + url.QueryEscape(projectKey)
	if err := c.get(ctx, path, &meta); err != nil {
		return nil, err
	}
	if len(meta.Projects) == 0 {
		return nil, nil
	}
	types := make([]IssueType, 0, len(meta.Projects[0].IssueTypes))
	for _, it := range meta.Projects[0].IssueTypes {
		types = append(types, it.IssueType)
	}
	return types, nil
}

// IssueTypeFields returns the field set of one issue type, keyed by field id.
func (c *Client) IssueTypeFields(ctx context.Context, projectKey, typeID string) (map[string]FieldMeta, error) {
	var meta createMetaResponse
	path := fmt.Sprintf("/issue/createmeta?projectKeys=%s&issuetypeIds=%s&expand=projects.issuetypes.fields",
		url.QueryEscape(projectKey), url.QueryEscape(typeID))
	if err := c.get(ctx, path, &meta); err != nil {
		return nil, err
	}
	if len(meta.Projects) == 0 || len(meta.Projects[0].IssueTypes) == 0 {
		return nil, nil
	}
	return meta.Projects[0].IssueTypes[0].Fields, nil
}

// CreateIssue creates an issue from raw fields and returns its key.
func (c *Client) CreateIssue(ctx context.Context, fields map[string]any) (string, error) {
	var created struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/issue", map[string]any{"fields": fields}, &created); err != nil {
		return "", err
	}
	if created.Key == "" {
		return "", fmt.Errorf("tracker: create issue: response carried no key")
	}
	return created.Key, nil
}

// UpdateIssue applies a raw update payload (fields and/or update sections)
// to an existing issue.
func (c *Client) UpdateIssue(ctx context.Context, key string, payload map[string]any) error {
	return c.do(ctx, http.MethodPut, "/issue/"+url.PathEscape(key), payload, nil)
}

// GetIssue fetches an issue's fields.
func (c *Client) GetIssue(ctx context.Context, key string) (map[string]any, error) {
	var issue struct {
		Fields map[string]any `json:"fields"`
	}
	if err := c.get(ctx, "/issue/"+url.PathEscape(key), &issue); err != nil {
		return nil, err
	}
	return issue.Fields, nil
}

// CreateComponent creates a component in the project.
func (c *Client) CreateComponent(ctx context.Context, projectKey, name string) error {
	payload := map[string]any{"name": name, "project": projectKey}
	return c.do(ctx, http.MethodPost, "/component", payload, nil)
}

// LinkIssues creates a bidirectional link of the named type between two
// issues. The inward issue is the one the link points at (e.g. for a
// "Blocks" link the inward issue is blocked by the outward issue).
func (c *Client) LinkIssues(ctx context.Context, linkType, inwardKey, outwardKey string) error {
	payload := map[string]any{
		"type":         map[string]string{"name": linkType},
		"inwardIssue":  map[string]string{"key": inwardKey},
		"outwardIssue": map[string]string{"key": outwardKey},
	}
	return c.do(ctx, http.MethodPost, "/issueLink", payload, nil)
}

// Fields lists every field the deployment knows, custom fields included.
func (c *Client) Fields(ctx context.Context) ([]Field, error) {
	var fields []Field
	if err := c.get(ctx, "/field", &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
