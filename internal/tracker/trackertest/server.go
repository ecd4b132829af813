// Package trackertest provides a configurable in-memory tracker for tests.
package trackertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/tracker"
)

// Link records one issue link created against the fake tracker.
type Link struct {
	Type    string
	Inward  string
	Outward string
}

// Server is an in-memory Jira-class tracker backed by httptest. Exported
// fields configure behavior and expose state for assertions; mutate them
// only before issuing requests or from test goroutines holding no requests
// in flight.
type Server struct {
	srv *httptest.Server

	mu         sync.Mutex
	Projects   map[string]tracker.Project
	Types      []tracker.IssueType
	TypeFields map[string]map[string]tracker.FieldMeta
	FieldList  []tracker.Field
	Issues     map[string]map[string]any
	Updates    map[string][]map[string]any
	Links      []Link
	Components []string

	// RejectCreate, when set, vetoes issue creation: a non-empty return is
	// sent back as a 400 with that message.
	RejectCreate func(fields map[string]any) string
	// RejectUpdate vetoes issue updates the same way.
	RejectUpdate func(key string, payload map[string]any) string
	// RejectLink vetoes link creation by link type name.
	RejectLink func(linkType string) string
	// FailTypeFields makes the field-scoped createmeta query return a 500.
	FailTypeFields bool

	counter int
}

// New starts a fake tracker that is shut down with the test.
func New(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		Projects:   make(map[string]tracker.Project),
		TypeFields: make(map[string]map[string]tracker.FieldMeta),
		Issues:     make(map[string]map[string]any),
		Updates:    make(map[string][]map[string]any),
	}

	r := chi.NewRouter()
	r.Route("/rest/api/2", func(r chi.Router) {
		r.Get("/myself", s.handleMyself)
		r.Get("/project/{key}", s.handleGetProject)
		r.Post("/project", s.handleCreateProject)
		r.Get("/issue/createmeta", s.handleCreateMeta)
		r.Post("/issue", s.handleCreateIssue)
		r.Get("/issue/{key}", s.handleGetIssue)
		r.Put("/issue/{key}", s.handleUpdateIssue)
		r.Post("/component", s.handleCreateComponent)
		r.Post("/issueLink", s.handleCreateLink)
		r.Get("/field", s.handleFields)
	})

	s.srv = httptest.NewServer(r)
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the fake tracker's base URL.
func (s *Server) URL() string {
	return s.srv.URL
}

// Client returns a tracker client pointed at the fake server.
func (s *Server) Client() *tracker.Client {
	return tracker.New(s.srv.URL, "importer@example.com", "test-token")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"errorMessages": []string{msg}})
}

func (s *Server) handleMyself(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, tracker.User{
		AccountID:   "acct-1",
		DisplayName: "Import Bot",
		Email:       "importer@example.com",
	})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chi.URLParam(r, "key")
	p, ok := s.Projects[key]
	if !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var req tracker.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, exists := s.Projects[req.Key]; exists {
		writeError(w, http.StatusBadRequest, "project already exists")
		return
	}
	p := tracker.Project{ID: fmt.Sprintf("1%04d", len(s.Projects)), Key: req.Key, Name: req.Name}
	s.Projects[req.Key] = p
	writeJSON(w, http.StatusCreated, p)
}

type metaIssueType struct {
	tracker.IssueType
	Fields map[string]tracker.FieldMeta `json:"fields,omitempty"`
}

func (s *Server) handleCreateMeta(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	typeID := r.URL.Query().Get("issuetypeIds")
	if typeID != "" && s.FailTypeFields {
		writeError(w, http.StatusInternalServerError, "createmeta expansion unavailable")
		return
	}

	var issueTypes []metaIssueType
	for _, it := range s.Types {
		if typeID != "" && it.ID != typeID {
			continue
		}
		entry := metaIssueType{IssueType: it}
		if typeID != "" {
			entry.Fields = s.TypeFields[it.ID]
		}
		issueTypes = append(issueTypes, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"projects": []map[string]any{{"issuetypes": issueTypes}},
	})
}

func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var req struct {
		Fields map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.RejectCreate != nil {
		if msg := s.RejectCreate(req.Fields); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	s.counter++
	key := fmt.Sprintf("%s-%d", s.projectKeyOf(req.Fields), s.counter)
	s.Issues[key] = req.Fields
	writeJSON(w, http.StatusCreated, map[string]string{"id": fmt.Sprintf("%d", 10000+s.counter), "key": key})
}

func (s *Server) projectKeyOf(fields map[string]any) string {
	if p, ok := fields["project"].(map[string]any); ok {
		if k, ok := p["key"].(string); ok && k != "" {
			return k
		}
	}
	return "TST"
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chi.URLParam(r, "key")
	fields, ok := s.Issues[key]
	if !ok {
		writeError(w, http.StatusNotFound, "issue not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "fields": fields})
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chi.URLParam(r, "key")
	if _, ok := s.Issues[key]; !ok {
		writeError(w, http.StatusNotFound, "issue not found")
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.RejectUpdate != nil {
		if msg := s.RejectUpdate(key, payload); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	s.Updates[key] = append(s.Updates[key], payload)
	if fields, ok := payload["fields"].(map[string]any); ok {
		for k, v := range fields {
			s.Issues[key][k] = v
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateComponent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var req struct {
		Name    string `json:"name"`
		Project string `json:"project"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, existing := range s.Components {
		if existing == req.Name {
			writeError(w, http.StatusBadRequest, "component already exists")
			return
		}
	}
	s.Components = append(s.Components, req.Name)
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var req struct {
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
		InwardIssue struct {
			Key string `json:"key"`
		} `json:"inwardIssue"`
		OutwardIssue struct {
			Key string `json:"key"`
		} `json:"outwardIssue"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.RejectLink != nil {
		if msg := s.RejectLink(req.Type.Name); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}
	s.Links = append(s.Links, Link{Type: req.Type.Name, Inward: req.InwardIssue.Key, Outward: req.OutwardIssue.Key})
	writeJSON(w, http.StatusCreated, map[string]string{"id": fmt.Sprintf("%d", len(s.Links))})
}

func (s *Server) handleFields(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := s.FieldList
	if fields == nil {
		fields = []tracker.Field{}
	}
	writeJSON(w, http.StatusOK, fields)
}
