package importer

import (
	"context"
	"fmt"

	"github.com/starford/raido/internal/tracker"
)

// fakeAPI is an in-process API stub for strategy-chain tests. Zero-value
// behavior is "everything succeeds"; individual calls are overridden per
// test through the function fields. Every call is appended to calls.
type fakeAPI struct {
	calls []string

	types         []tracker.IssueType
	typesErr      error
	typeFields    map[string]tracker.FieldMeta
	typeFieldsErr error
	fieldList     []tracker.Field
	fieldListErr  error

	createIssue     func(fields map[string]any) (string, error)
	updateIssue     func(key string, payload map[string]any) error
	getIssue        func(key string) (map[string]any, error)
	linkIssues      func(linkType, inwardKey, outwardKey string) error
	createComponent func(name string) error

	counter int
}

func (f *fakeAPI) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Myself(context.Context) (*tracker.User, error) {
	f.record("Myself")
	return &tracker.User{AccountID: "acct-1", DisplayName: "Import Bot"}, nil
}

func (f *fakeAPI) GetProject(_ context.Context, key string) (*tracker.Project, error) {
	f.record("GetProject")
	return &tracker.Project{Key: key}, nil
}

func (f *fakeAPI) CreateProject(_ context.Context, req tracker.CreateProjectRequest) (*tracker.Project, error) {
	f.record("CreateProject")
	return &tracker.Project{Key: req.Key, Name: req.Name}, nil
}

func (f *fakeAPI) IssueTypes(context.Context, string) ([]tracker.IssueType, error) {
	f.record("IssueTypes")
	return f.types, f.typesErr
}

func (f *fakeAPI) IssueTypeFields(context.Context, string, string) (map[string]tracker.FieldMeta, error) {
	f.record("IssueTypeFields")
	return f.typeFields, f.typeFieldsErr
}

func (f *fakeAPI) CreateIssue(_ context.Context, fields map[string]any) (string, error) {
	f.record("CreateIssue")
	if f.createIssue != nil {
		return f.createIssue(fields)
	}
	f.counter++
	return fmt.Sprintf("TST-%d", f.counter), nil
}

func (f *fakeAPI) UpdateIssue(_ context.Context, key string, payload map[string]any) error {
	f.record("UpdateIssue")
	if f.updateIssue != nil {
		return f.updateIssue(key, payload)
	}
	return nil
}

func (f *fakeAPI) GetIssue(_ context.Context, key string) (map[string]any, error) {
	f.record("GetIssue")
	if f.getIssue != nil {
		return f.getIssue(key)
	}
	return map[string]any{"summary": "fetched " + key}, nil
}

func (f *fakeAPI) CreateComponent(_ context.Context, _, name string) error {
	f.record("CreateComponent")
	if f.createComponent != nil {
		return f.createComponent(name)
	}
	return nil
}

func (f *fakeAPI) LinkIssues(_ context.Context, linkType, inwardKey, outwardKey string) error {
	f.record("LinkIssues")
	if f.linkIssues != nil {
		return f.linkIssues(linkType, inwardKey, outwardKey)
	}
	return nil
}

func (f *fakeAPI) Fields(context.Context) ([]tracker.Field, error) {
	f.record("Fields")
	return f.fieldList, f.fieldListErr
}

func (f *fakeAPI) callCount(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}
