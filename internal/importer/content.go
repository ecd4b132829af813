package importer

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Formatter attaches plain-text descriptions to created records, trying
// rich-text encodings in priority order until one is accepted. Attachment
// is always best-effort: a record stands without its description rather
// than being invalidated.
type Formatter struct {
	api    API
	logger *slog.Logger
	pace   time.Duration
}

// NewFormatter creates a content formatter.
func NewFormatter(api API, logger *slog.Logger, pace time.Duration) *Formatter {
	return &Formatter{api: api, logger: logger, pace: pace}
}

type contentStrategy struct {
	name  string
	apply func(ctx context.Context, key, text string) error
}

// strategies returns the ordered encoding chain. First success wins;
// later options are not attempted.
func (f *Formatter) strategies() []contentStrategy {
	return []contentStrategy{
		{name: "doc-set", apply: func(ctx context.Context, key, text string) error {
			return f.api.UpdateIssue(ctx, key, map[string]any{
				"update": map[string]any{
					"description": []map[string]any{{"set": document(text)}},
				},
			})
		}},
		{name: "doc-field", apply: func(ctx context.Context, key, text string) error {
			return f.api.UpdateIssue(ctx, key, map[string]any{
				"fields": map[string]any{"description": document(text)},
			})
		}},
		{name: "doc-paragraphs", apply: func(ctx context.Context, key, text string) error {
			return f.api.UpdateIssue(ctx, key, map[string]any{
				"fields": map[string]any{"description": document(splitParagraphs(text)...)},
			})
		}},
		{name: "plain-text", apply: func(ctx context.Context, key, text string) error {
			return f.api.UpdateIssue(ctx, key, map[string]any{
				"fields": map[string]any{"description": text},
			})
		}},
	}
}

// Attach tries each encoding in order and reports whether any succeeded.
func (f *Formatter) Attach(ctx context.Context, key, text string) bool {
	if text == "" {
		return true
	}
	for _, s := range f.strategies() {
		err := s.apply(ctx, key, text)
		pause(ctx, f.pace)
		if err == nil {
			f.logger.Debug("description attached",
				slog.String("key", key), slog.String("encoding", s.name))
			return true
		}
		f.logger.Debug("description encoding rejected",
			slog.String("key", key),
			slog.String("encoding", s.name),
			slog.String("error", err.Error()))
	}
	f.logger.Warn("description could not be attached, record stands without it",
		slog.String("key", key))
	return false
}

// document builds a rich-text document with one paragraph block per
// argument. A single argument yields the single-paragraph form.
func document(paragraphs ...string) map[string]any {
	content := make([]map[string]any, 0, len(paragraphs))
	for _, p := range paragraphs {
		content = append(content, map[string]any{
			"type": "paragraph",
			"content": []map[string]any{
				{"type": "text", "text": p},
			},
		})
	}
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": content,
	}
}

// splitParagraphs breaks text into blank-line-delimited blocks.
func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(normalized, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}

// pause sleeps for the pacing delay unless the context ends first.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
