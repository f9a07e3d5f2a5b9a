package index

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/clarc/internal/session"
)

const (
	projectsDirName    = "projects"
	todosDirName       = "todos"
	subagentsDirName   = "subagents"
	toolResultsDirName = "tool-results"
	agentFilePrefix    = "agent-"
	logExtension       = ".jsonl"
)

// Scanner rebuilds the Index from the mirrored working directory. Build is
// a pure read-then-construct pass: it never mutates shared state and is
// cheap enough to run on every invalidation.
type Scanner struct {
	dataDir string
}

func NewScanner(dataDir string) *Scanner {
	return &Scanner{dataDir: dataDir}
}

// Build scans the working directory into a fresh Index. Every per-project
// and per-session failure is logged and skipped; the result is always a
// usable (possibly partial) index.
func (sc *Scanner) Build() *Index {
	idx := &Index{
		Projects:      sc.scanProjects(),
		LastIndexedAt: time.Now(),
	}

	stats, err := ReadStatsCache(sc.dataDir)
	if err != nil {
		log.Printf("[index] stats snapshot unavailable: %v", err)
	} else {
		idx.GlobalStats = stats
	}

	history, err := ReadPromptHistory(sc.dataDir)
	if err != nil {
		log.Printf("[index] prompt history unavailable: %v", err)
	}
	idx.PromptHistory = history

	return idx
}

func (sc *Scanner) scanProjects() []*Project {
	projectsDir := filepath.Join(sc.dataDir, projectsDirName)
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		return nil
	}

	// Group physical directories by canonical identity so alternate
	// path encodings of the same real directory merge into one project.
	groups := make(map[string][]string)
	var order []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		canonical := CanonicalProjectID(entry.Name())
		if _, ok := groups[canonical]; !ok {
			order = append(order, canonical)
		}
		groups[canonical] = append(groups[canonical], entry.Name())
	}

	var projects []*Project
	for _, canonical := range order {
		project := sc.scanProjectGroup(canonical, groups[canonical], projectsDir)
		if project != nil {
			projects = append(projects, project)
		}
	}

	sort.SliceStable(projects, func(a, b int) bool {
		return projects[a].LastActiveAt.After(projects[b].LastActiveAt)
	})
	return projects
}

// scanProjectGroup scans each physical directory of one logical project and
// merges the results: sessions deduplicate by id (first occurrence wins),
// last-active takes the maximum, message counts sum.
func (sc *Scanner) scanProjectGroup(canonical string, rawDirs []string, projectsDir string) *Project {
	project := &Project{
		ID:   canonical,
		Name: projectName(canonical),
	}

	seen := make(map[string]bool)
	for _, rawDir := range rawDirs {
		sessions, agents, err := sc.scanPhysicalDir(canonical, filepath.Join(projectsDir, rawDir))
		if err != nil {
			log.Printf("[index] skipping project dir %s: %v", rawDir, err)
			continue
		}
		for _, ref := range sessions {
			if seen[ref.ID] {
				continue
			}
			seen[ref.ID] = true
			project.Sessions = append(project.Sessions, ref)
			project.MessageCount += ref.MessageCount
			if ref.ModifiedAt.After(project.LastActiveAt) {
				project.LastActiveAt = ref.ModifiedAt
			}
		}
		project.Agents = append(project.Agents, agents...)
	}

	sort.SliceStable(project.Sessions, func(a, b int) bool {
		return project.Sessions[a].ModifiedAt.After(project.Sessions[b].ModifiedAt)
	})

	sessionIDs := lo.Map(project.Sessions, func(ref *SessionRef, _ int) string { return ref.ID })
	project.Tasks = sc.loadProjectTasks(sessionIDs)

	return project
}

// scanPhysicalDir walks one path-encoded project directory: session logs at
// the top level, sub-agent logs under each session's subagents directory,
// then a pass for orphaned session directories that never produced a
// primary log.
func (sc *Scanner) scanPhysicalDir(projectID, dir string) ([]*SessionRef, []session.AgentRef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	var (
		refs      []*SessionRef
		allAgents []session.AgentRef
		seen      = make(map[string]bool)
	)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, logExtension) || strings.HasPrefix(name, agentFilePrefix) {
			continue
		}
		sessionID := strings.TrimSuffix(name, logExtension)
		ref, err := sc.scanSessionRef(projectID, sessionID, filepath.Join(dir, name))
		if err != nil {
			log.Printf("[index] skipping session %s: %v", name, err)
			continue
		}
		agents := sc.scanSubagents(projectID, sessionID, filepath.Join(dir, sessionID, subagentsDirName))
		ref.Agents = agents
		allAgents = append(allAgents, agents...)
		refs = append(refs, ref)
		seen[sessionID] = true
	}

	// Orphan pass: session-id-shaped directories with no primary log can
	// still hold tool results or sub-agent logs worth surfacing.
	for _, entry := range entries {
		if !entry.IsDir() || !looksLikeSessionID(entry.Name()) || seen[entry.Name()] {
			continue
		}
		ref, agents := sc.scanOrphanDir(projectID, entry.Name(), filepath.Join(dir, entry.Name()))
		if ref != nil {
			refs = append(refs, ref)
			allAgents = append(allAgents, agents...)
		}
	}

	return refs, allAgents, nil
}

func (sc *Scanner) scanSessionRef(projectID, sessionID, path string) (*SessionRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	ref := &SessionRef{
		ID:         sessionID,
		ProjectID:  projectID,
		FilePath:   path,
		FileSize:   info.Size(),
		ModifiedAt: info.ModTime(),
	}

	meta, err := session.ScanRefMetadata(path)
	if err != nil {
		// The ref survives without metadata; the file exists and is listed.
		log.Printf("[index] metadata read failed for %s: %v", sessionID, err)
		return ref, nil
	}
	ref.MessageCount = meta.MessageCount
	ref.Summary = meta.Summary
	ref.Model = meta.Model
	ref.GitBranch = meta.GitBranch
	ref.Slug = meta.Slug
	ref.Version = meta.Version
	ref.StartedAt = meta.StartedAt
	if meta.Usage != (session.TokenUsage{}) {
		usage := meta.Usage
		ref.Usage = &usage
		ref.EstimatedCostUSD = meta.EstimatedCostUSD
	}
	return ref, nil
}

func (sc *Scanner) scanSubagents(projectID, parentSessionID, dir string) []session.AgentRef {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil // no subagents directory
	}
	var agents []session.AgentRef
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, agentFilePrefix) || !strings.HasSuffix(name, logExtension) {
			continue
		}
		agents = append(agents, session.AgentRef{
			AgentID:         strings.TrimSuffix(strings.TrimPrefix(name, agentFilePrefix), logExtension),
			FilePath:        filepath.Join(dir, name),
			ParentSessionID: parentSessionID,
			ProjectID:       projectID,
		})
	}
	return agents
}

// scanOrphanDir inspects a session-id-shaped directory that has no primary
// log. It yields a synthetic SessionRef only when the directory contributes
// at least one tool result or one sub-agent; empty shells are ignored.
func (sc *Scanner) scanOrphanDir(projectID, sessionID, dir string) (*SessionRef, []session.AgentRef) {
	agents := sc.scanSubagents(projectID, sessionID, filepath.Join(dir, subagentsDirName))

	toolResultsDir := filepath.Join(dir, toolResultsDirName)
	var (
		resultCount int
		preview     string
	)
	if entries, err := os.ReadDir(toolResultsDir); err == nil {
		names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
			return e.Name(), !e.IsDir()
		})
		resultCount = len(names)
		if resultCount > 0 {
			sort.Strings(names)
			if data, err := os.ReadFile(filepath.Join(toolResultsDir, names[0])); err == nil {
				preview = session.Summarize(string(data))
			}
		}
	}

	if resultCount == 0 && len(agents) == 0 {
		return nil, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil
	}
	return &SessionRef{
		ID:           sessionID,
		ProjectID:    projectID,
		FilePath:     dir,
		ModifiedAt:   info.ModTime(),
		MessageCount: resultCount,
		Summary:      preview,
		Agents:       agents,
	}, agents
}
