// Package syncer mirrors an allow-listed subset of one or more read-only
// Claude Code profile directories into a local working copy. The mirror is
// strictly additive: upstream deletions never propagate, so the local
// archive outlives profiles that prune their own history.
package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// stateVersion is the current persisted schema. Older states are migrated
// forward at load time; unparseable or absent state starts fresh.
const stateVersion = 2

// maxErrors caps the persisted error ring.
const maxErrors = 50

// SourceFile records one successfully copied file. An entry exists if and
// only if the file was copied at least once.
type SourceFile struct {
	RelativePath    string    `json:"relativePath"`
	SourceIndex     int       `json:"sourceIndex"`
	SourceMtimeMs   int64     `json:"sourceMtimeMs"`
	SourceSizeBytes int64     `json:"sourceSizeBytes"`
	SyncedAt        time.Time `json:"syncedAt"`
}

// SyncError is one captured per-file failure.
type SyncError struct {
	Timestamp    time.Time `json:"timestamp"`
	RelativePath string    `json:"relativePath"`
	Error        string    `json:"error"`
}

// persistedState is the on-disk SyncState. SourceDir only appears in v1
// payloads and is folded into SourceDirs by migration.
type persistedState struct {
	Version            int                   `json:"version"`
	LastSyncAt         time.Time             `json:"lastSyncAt,omitzero"`
	LastSyncDurationMs int64                 `json:"lastSyncDurationMs"`
	SyncCount          int                   `json:"syncCount"`
	SourceDir          string                `json:"sourceDir,omitempty"`
	SourceDirs         []string              `json:"sourceDirs"`
	FileInventory      map[string]SourceFile `json:"fileInventory"`
	Errors             []SyncError           `json:"errors"`
}

func freshState() persistedState {
	return persistedState{
		Version:       stateVersion,
		FileInventory: make(map[string]SourceFile),
	}
}

// inventoryKey scopes a relative path to its originating source root.
func inventoryKey(sourceIndex int, rel string) string {
	return fmt.Sprintf("%d:%s", sourceIndex, filepath.ToSlash(rel))
}

// migrations[i] upgrades a state from version i+1 to version i+2. Each step
// is pure over the state value and applied in sequence at load time.
var migrations = []func(*persistedState){
	migrateSingleSourceToMulti, // v1 → v2
}

// migrateSingleSourceToMulti folds the v1 scalar source dir into the source
// list and prefixes legacy inventory keys with source index 0.
func migrateSingleSourceToMulti(st *persistedState) {
	if st.SourceDir != "" {
		st.SourceDirs = []string{st.SourceDir}
		st.SourceDir = ""
	}
	inventory := make(map[string]SourceFile, len(st.FileInventory))
	for key, f := range st.FileInventory {
		if !hasSourcePrefix(key) {
			f.RelativePath = filepath.ToSlash(key)
			key = inventoryKey(0, key)
		}
		inventory[key] = f
	}
	st.FileInventory = inventory
}

func hasSourcePrefix(key string) bool {
	idx := strings.Index(key, ":")
	if idx <= 0 {
		return false
	}
	for _, c := range key[:idx] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// loadState reads and migrates persisted state. Any load failure yields a
// fresh empty state, never an error: a corrupt state file means re-copying
// everything, which the unchanged-skip logic makes cheap after one pass.
func loadState(path string) persistedState {
	data, err := os.ReadFile(path)
	if err != nil {
		return freshState()
	}
	var st persistedState
	if err := json.Unmarshal(data, &st); err != nil {
		return freshState()
	}
	if st.Version < 1 || st.Version > stateVersion {
		return freshState()
	}
	for v := st.Version; v < stateVersion; v++ {
		migrations[v-1](&st)
		st.Version = v + 1
	}
	if st.FileInventory == nil {
		st.FileInventory = make(map[string]SourceFile)
	}
	return st
}

func saveState(path string, st persistedState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sync state: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing sync state: %w", err)
	}
	return nil
}
