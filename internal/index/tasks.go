package index

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

const agentFileMarker = "-agent-"

// loadProjectTasks collects todo files belonging to any of the given
// sessions. File names follow <sessionId>-agent-<agentId>.json; empty lists
// are dropped so the index only carries todo files with actual content.
func (sc *Scanner) loadProjectTasks(sessionIDs []string) []TaskList {
	if len(sessionIDs) == 0 {
		return nil
	}
	todosDir := filepath.Join(sc.dataDir, todosDirName)
	entries, err := os.ReadDir(todosDir)
	if err != nil {
		return nil
	}

	wanted := lo.SliceToMap(sessionIDs, func(id string) (string, bool) { return id, true })

	var lists []TaskList
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		sessionID, agentID, ok := splitTodoFileName(strings.TrimSuffix(name, ".json"))
		if !ok || !wanted[sessionID] {
			continue
		}
		tasks, err := readTaskFile(filepath.Join(todosDir, name))
		if err != nil {
			log.Printf("[index] skipping todo file %s: %v", name, err)
			continue
		}
		if len(tasks) == 0 {
			continue
		}
		lists = append(lists, TaskList{
			SessionID: sessionID,
			AgentID:   agentID,
			Tasks:     tasks,
		})
	}
	return lists
}

// splitTodoFileName separates the session and agent components of a todo
// file's base name. Agent ids never contain the marker, so the first
// occurrence is the split point.
func splitTodoFileName(base string) (sessionID, agentID string, ok bool) {
	i := strings.Index(base, agentFileMarker)
	if i < 0 {
		return base, "", base != ""
	}
	sessionID = base[:i]
	agentID = base[i+len(agentFileMarker):]
	return sessionID, agentID, sessionID != ""
}

func readTaskFile(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
