package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// HistoryFileName is the merged prompt-history log in the destination.
const HistoryFileName = "history.jsonl"

func shadowName(sourceIndex int) string {
	return fmt.Sprintf("history-%d.jsonl", sourceIndex)
}

// historyRecord carries just the fields that identify a prompt entry; the
// merged output preserves each record's original line verbatim.
type historyRecord struct {
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
}

// mergeHistory combines all per-source history shadows into one deduplicated
// file sorted by timestamp, newest first. Records are identified by
// (sessionId, timestamp); the first occurrence in source order wins.
func (s *Syncer) mergeHistory(st *persistedState) {
	type entry struct {
		ts   int64
		line []byte
	}
	var (
		merged []entry
		seen   = make(map[string]bool)
		found  bool
	)

	for i := range s.sources {
		path := filepath.Join(s.dest, shadowName(i))
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				s.recordError(st, shadowName(i), err)
			}
			continue
		}
		found = true
		for _, line := range splitLines(data) {
			var rec historyRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				continue
			}
			key := fmt.Sprintf("%s\x00%d", rec.SessionID, rec.Timestamp)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, entry{ts: rec.Timestamp, line: line})
		}
	}
	if !found {
		return
	}

	sort.SliceStable(merged, func(a, b int) bool { return merged[a].ts > merged[b].ts })

	var out []byte
	for _, e := range merged {
		out = append(out, e.line...)
		out = append(out, '\n')
	}
	if err := os.WriteFile(filepath.Join(s.dest, HistoryFileName), out, 0o644); err != nil {
		s.recordError(st, HistoryFileName, err)
	}
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
