package search

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/janekbaraniewski/clarc/internal/index"
	"github.com/janekbaraniewski/clarc/internal/session"
)

func writeSessionLog(t *testing.T, dir, sessionID string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, sessionID+".jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func userLine(uuid, text string) string {
	return `{"type":"user","uuid":"` + uuid + `","timestamp":"2025-06-01T10:00:00Z","message":{"role":"user","content":"` + text + `"}}`
}

func assistantLine(uuid, text, thinking string) string {
	blocks := `{"type":"text","text":"` + text + `"}`
	if thinking != "" {
		blocks = `{"type":"thinking","thinking":"` + thinking + `"},` + blocks
	}
	return `{"type":"assistant","uuid":"` + uuid + `","timestamp":"2025-06-01T10:00:05Z","message":{"role":"assistant","model":"claude-sonnet-4-5","content":[` + blocks + `]}}`
}

func testIndex(t *testing.T) (*index.Index, string) {
	dir := t.TempDir()
	pathA := writeSessionLog(t, dir, "session-a",
		userLine("u1", "how do I configure the database pool"),
		assistantLine("a1", "set the pool size in config", "the user wants database tuning advice"),
	)
	pathB := writeSessionLog(t, dir, "session-b",
		userLine("u2", "write a haiku about rivers"),
	)

	now := time.Now()
	idx := &index.Index{
		Projects: []*index.Project{
			{
				ID:   "-home-jan-app",
				Name: "app",
				Sessions: []*index.SessionRef{
					{ID: "session-a", ProjectID: "-home-jan-app", FilePath: pathA, Model: "claude-sonnet-4-5", ModifiedAt: now},
					{ID: "session-b", ProjectID: "-home-jan-app", FilePath: pathB, Model: "claude-haiku-4", ModifiedAt: now.Add(-48 * time.Hour)},
				},
			},
		},
	}
	return idx, dir
}

func TestSearchMatchesContent(t *testing.T) {
	idx, _ := testIndex(t)
	searcher := NewSearcher(session.NewParser(session.DefaultCacheSize))

	results := searcher.Search(idx, Options{Query: "Database Pool"})
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	r := results[0]
	if r.SessionID != "session-a" || r.MessageUUID != "u1" || r.Type != "user" {
		t.Errorf("unexpected match: %+v", r)
	}
	if !strings.Contains(r.Snippet, "configure the database pool") {
		t.Errorf("snippet = %q", r.Snippet)
	}
	if r.ProjectName != "app" {
		t.Errorf("project name = %q", r.ProjectName)
	}
}

func TestSearchMatchesThinking(t *testing.T) {
	idx, _ := testIndex(t)
	searcher := NewSearcher(session.NewParser(session.DefaultCacheSize))

	results := searcher.Search(idx, Options{Query: "tuning advice"})
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Type != "thinking" || results[0].MessageUUID != "a1" {
		t.Errorf("unexpected match: %+v", results[0])
	}
}

func TestSearchSnippetEllipsis(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("x", 100) + "needle" + strings.Repeat("y", 100)
	path := writeSessionLog(t, dir, "session-long", userLine("u1", long))
	idx := &index.Index{Projects: []*index.Project{{
		ID: "p", Name: "p",
		Sessions: []*index.SessionRef{{ID: "session-long", ProjectID: "p", FilePath: path, ModifiedAt: time.Now()}},
	}}}

	results := NewSearcher(session.NewParser(session.DefaultCacheSize)).Search(idx, Options{Query: "needle"})
	if len(results) != 1 {
		t.Fatalf("results = %d", len(results))
	}
	snippet := results[0].Snippet
	if !strings.HasPrefix(snippet, "...") || !strings.HasSuffix(snippet, "...") {
		t.Errorf("snippet not ellipsized: %q", snippet)
	}
	if want := "..." + strings.Repeat("x", 60) + "needle" + strings.Repeat("y", 60) + "..."; snippet != want {
		t.Errorf("snippet window wrong:\n got %q\nwant %q", snippet, want)
	}
}

func TestSearchFilters(t *testing.T) {
	idx, _ := testIndex(t)
	searcher := NewSearcher(session.NewParser(session.DefaultCacheSize))

	if got := searcher.Search(idx, Options{Query: "haiku", Model: "claude-sonnet-4-5"}); len(got) != 0 {
		t.Errorf("model filter leaked: %+v", got)
	}
	if got := searcher.Search(idx, Options{Query: "haiku", Model: "claude-haiku-4"}); len(got) != 1 {
		t.Errorf("model filter too strict: %+v", got)
	}
	if got := searcher.Search(idx, Options{Query: "haiku", After: time.Now().Add(-time.Hour)}); len(got) != 0 {
		t.Errorf("after filter leaked: %+v", got)
	}
	if got := searcher.Search(idx, Options{Query: "configure", Project: "app"}); len(got) != 1 {
		t.Errorf("project-by-name filter: %+v", got)
	}
	if got := searcher.Search(idx, Options{Query: "configure", Project: "-home-jan-app"}); len(got) != 1 {
		t.Errorf("project-by-id filter: %+v", got)
	}
	if got := searcher.Search(idx, Options{Query: "configure", Project: "other"}); len(got) != 0 {
		t.Errorf("project filter leaked: %+v", got)
	}
}

func TestSearchLimitAndEmptyQuery(t *testing.T) {
	dir := t.TempDir()
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = userLine("u"+string(rune('0'+i)), "repeat target phrase")
	}
	path := writeSessionLog(t, dir, "session-many", lines...)
	idx := &index.Index{Projects: []*index.Project{{
		ID: "p", Name: "p",
		Sessions: []*index.SessionRef{{ID: "session-many", ProjectID: "p", FilePath: path, ModifiedAt: time.Now()}},
	}}}

	searcher := NewSearcher(session.NewParser(session.DefaultCacheSize))
	if got := searcher.Search(idx, Options{Query: "target", Limit: 3}); len(got) != 3 {
		t.Errorf("limit not honored: %d results", len(got))
	}
	if got := searcher.Search(idx, Options{Query: ""}); got != nil {
		t.Errorf("empty query should return nil, got %+v", got)
	}
}

func TestSearchSkipsUnparseableSessions(t *testing.T) {
	idx, _ := testIndex(t)
	idx.Projects[0].Sessions = append([]*index.SessionRef{{
		ID: "missing", ProjectID: "-home-jan-app", FilePath: "/nonexistent/missing.jsonl", ModifiedAt: time.Now(),
	}}, idx.Projects[0].Sessions...)

	results := NewSearcher(session.NewParser(session.DefaultCacheSize)).Search(idx, Options{Query: "configure"})
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 (bad session skipped)", len(results))
	}
}
