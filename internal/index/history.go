package index

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const promptHistoryFileName = "history.jsonl"

// ReadPromptHistory loads the merged prompt history log. Malformed lines
// are skipped; the mirror already wrote the file newest-first.
func ReadPromptHistory(dataDir string) ([]PromptEntry, error) {
	f, err := os.Open(filepath.Join(dataDir, promptHistoryFileName))
	if err != nil {
		return nil, fmt.Errorf("opening prompt history: %w", err)
	}
	defer f.Close()

	var entries []PromptEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 256*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry PromptEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("reading prompt history: %w", err)
	}
	return entries, nil
}
