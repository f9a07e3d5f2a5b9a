// Package search walks an index snapshot and scans full session logs for a
// query string, with project, model and time filters. It is the heaviest
// read path in the tree and leans on the parser cache to keep repeated
// searches over the same sessions cheap.
package search

import (
	"log"
	"strings"
	"time"

	"github.com/janekbaraniewski/clarc/internal/index"
	"github.com/janekbaraniewski/clarc/internal/session"
)

const (
	// DefaultLimit bounds a search when the caller does not set one.
	DefaultLimit = 50

	snippetContext = 60
)

// Options filter a search. Zero values mean "no filter"; Project matches
// either a project's id or its display name.
type Options struct {
	Query   string
	Project string
	Model   string
	After   time.Time
	Before  time.Time
	Limit   int
}

// Result is one match. Type mirrors the matched message's record type,
// except matches inside extended-thinking text which report "thinking".
type Result struct {
	SessionID   string    `json:"sessionId"`
	ProjectID   string    `json:"projectId"`
	ProjectName string    `json:"projectName"`
	MessageUUID string    `json:"messageUuid"`
	Type        string    `json:"type"`
	Snippet     string    `json:"snippet"`
	Timestamp   time.Time `json:"timestamp"`
	Model       string    `json:"model,omitempty"`
}

// Searcher resolves session refs through a shared parser so hot sessions
// stay cached between searches.
type Searcher struct {
	parser *session.Parser
}

func NewSearcher(parser *session.Parser) *Searcher {
	return &Searcher{parser: parser}
}

// Search scans sessions in index order and stops as soon as the limit is
// reached. Sessions that fail to parse are skipped, not fatal.
func (s *Searcher) Search(idx *index.Index, opts Options) []Result {
	if opts.Query == "" {
		return nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	queryLower := strings.ToLower(opts.Query)

	var results []Result
	for _, project := range idx.Projects {
		if opts.Project != "" && project.ID != opts.Project && project.Name != opts.Project {
			continue
		}
		for _, ref := range project.Sessions {
			if opts.Model != "" && ref.Model != opts.Model {
				continue
			}
			if !opts.After.IsZero() && ref.ModifiedAt.Before(opts.After) {
				continue
			}
			if !opts.Before.IsZero() && ref.ModifiedAt.After(opts.Before) {
				continue
			}

			sess, err := s.parser.Parse(ref.FilePath, ref.ID, ref.ProjectID)
			if err != nil {
				log.Printf("[search] skipping session %s: %v", ref.ID, err)
				continue
			}
			results = s.scanSession(results, sess, project, queryLower, opts.Query, limit)
			if len(results) >= limit {
				return results
			}
		}
	}
	return results
}

// scanSession reports at most one content match and one thinking match per
// message so a single chatty message cannot flood the result list.
func (s *Searcher) scanSession(results []Result, sess *session.Session, project *index.Project, queryLower, query string, limit int) []Result {
	for i := range sess.Messages {
		if len(results) >= limit {
			return results
		}
		msg := &sess.Messages[i]

		for _, block := range msg.Content {
			if block.Text == "" {
				continue
			}
			if snippet, ok := extractSnippet(block.Text, queryLower, len(query)); ok {
				results = append(results, Result{
					SessionID:   sess.ID,
					ProjectID:   project.ID,
					ProjectName: project.Name,
					MessageUUID: msg.UUID,
					Type:        msg.Type,
					Snippet:     snippet,
					Timestamp:   msg.Timestamp,
					Model:       msg.Model,
				})
				break
			}
		}

		for _, tb := range msg.Thinking {
			if len(results) >= limit {
				return results
			}
			if snippet, ok := extractSnippet(tb.Thinking, queryLower, len(query)); ok {
				results = append(results, Result{
					SessionID:   sess.ID,
					ProjectID:   project.ID,
					ProjectName: project.Name,
					MessageUUID: msg.UUID,
					Type:        "thinking",
					Snippet:     snippet,
					Timestamp:   msg.Timestamp,
					Model:       msg.Model,
				})
				break
			}
		}
	}
	return results
}

// extractSnippet finds the first case-insensitive occurrence and returns it
// with up to snippetContext characters either side, ellipsized at cut
// edges.
func extractSnippet(text, queryLower string, queryLen int) (string, bool) {
	idx := strings.Index(strings.ToLower(text), queryLower)
	if idx < 0 {
		return "", false
	}
	start := idx - snippetContext
	if start < 0 {
		start = 0
	}
	end := idx + queryLen + snippetContext
	if end > len(text) {
		end = len(text)
	}
	snippet := text[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet += "..."
	}
	return snippet, true
}
