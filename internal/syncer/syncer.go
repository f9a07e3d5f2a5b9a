package syncer

import (
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// target is one allow-listed entry to mirror from every source root.
type target struct {
	rel       string
	dir       bool
	appendLog bool
}

// defaultTargets mirrors the conversation tree, the todo lists, the stats
// snapshot and the prompt history. Everything else in a profile dir
// (credentials, caches) stays untouched.
var defaultTargets = []target{
	{rel: "projects", dir: true},
	{rel: "todos", dir: true},
	{rel: "stats-cache.json"},
	{rel: "history.jsonl", appendLog: true},
}

// dirExtensions filters directory targets by top-level directory name.
var dirExtensions = map[string][]string{
	"projects": {".jsonl", ".txt"},
	"todos":    {".json"},
}

// Report is the caller-facing view of the last sync cycle.
type Report struct {
	LastSyncAt         time.Time   `json:"lastSyncAt,omitzero"`
	LastSyncDurationMs int64       `json:"lastSyncDurationMs"`
	SyncCount          int         `json:"syncCount"`
	SourceDirs         []string    `json:"sourceDirs"`
	TotalFiles         int         `json:"totalFiles"`
	TotalSizeBytes     int64       `json:"totalSizeBytes"`
	Errors             []SyncError `json:"errors"`
	IsSyncing          bool        `json:"isSyncing"`
}

// Syncer performs one-way, idempotent copies from its source roots into the
// destination. At most one sync runs at a time; a call arriving while one is
// in flight returns the current (stale) report instead of queuing.
type Syncer struct {
	sources   []string
	dest      string
	statePath string
	targets   []target
	now       func() time.Time

	mu      sync.Mutex
	running bool
	state   persistedState
}

// StateFileName is where the Syncer persists its inventory, inside the
// destination so the mirror and its bookkeeping travel together.
const StateFileName = "sync-state.json"

func New(sources []string, dest string) *Syncer {
	return &Syncer{
		sources:   sources,
		dest:      dest,
		statePath: filepath.Join(dest, StateFileName),
		targets:   defaultTargets,
		now:       time.Now,
		state:     freshState(),
	}
}

// LoadState reads persisted inventory from a previous run. Call once before
// the first Sync; a missing or corrupt file silently starts fresh.
func (s *Syncer) LoadState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = loadState(s.statePath)
}

// Status reports the last completed sync without starting one.
func (s *Syncer) Status() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportLocked()
}

// Sync runs one full mirror pass and returns the resulting report. Partial
// failure is normal operation: individual file errors land in the report's
// error ring and the pass continues.
func (s *Syncer) Sync() Report {
	s.mu.Lock()
	if s.running {
		r := s.reportLocked()
		s.mu.Unlock()
		return r
	}
	s.running = true
	st := s.state
	st.FileInventory = make(map[string]SourceFile, len(s.state.FileInventory))
	for k, v := range s.state.FileInventory {
		st.FileInventory[k] = v
	}
	s.mu.Unlock()

	start := s.now()
	st.Errors = nil
	s.runPass(&st)
	st.LastSyncAt = s.now()
	st.LastSyncDurationMs = s.now().Sub(start).Milliseconds()
	st.SyncCount++
	st.SourceDirs = append([]string(nil), s.sources...)
	if len(st.Errors) > maxErrors {
		st.Errors = st.Errors[len(st.Errors)-maxErrors:]
	}
	if err := saveState(s.statePath, st); err != nil {
		log.Printf("[sync] persisting state: %v", err)
	}

	s.mu.Lock()
	s.state = st
	s.running = false
	r := s.reportLocked()
	s.mu.Unlock()
	return r
}

// runPass walks every source against every target. A panic anywhere inside
// ends the cycle early but still leaves a usable partial state.
func (s *Syncer) runPass(st *persistedState) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[sync] cycle aborted: %v", r)
			s.recordError(st, "", fmt.Errorf("sync cycle aborted: %v", r))
		}
	}()

	if err := os.MkdirAll(s.dest, 0o755); err != nil {
		s.recordError(st, "", err)
		return
	}

	for _, t := range s.targets {
		switch {
		case t.dir:
			for i, src := range s.sources {
				s.syncDirectory(st, i, src, t.rel)
			}
		case t.appendLog:
			// Each source keeps its own shadow so one profile's history
			// never overwrites another's; the shadows merge afterwards.
			for i, src := range s.sources {
				s.syncSingleFile(st, i, filepath.Join(src, t.rel), shadowName(i))
			}
			s.mergeHistory(st)
		default:
			s.syncLastSourceWins(st, t.rel)
		}
	}
}

// syncLastSourceWins resolves a single-file target defined by multiple
// sources: the highest source index that has the file owns the destination
// and the inventory entry for it.
func (s *Syncer) syncLastSourceWins(st *persistedState, rel string) {
	winner := -1
	for i := len(s.sources) - 1; i >= 0; i-- {
		if _, err := os.Stat(filepath.Join(s.sources[i], rel)); err == nil {
			winner = i
			break
		}
	}
	if winner < 0 {
		return
	}
	for i := range s.sources {
		if i != winner {
			delete(st.FileInventory, inventoryKey(i, rel))
		}
	}
	s.syncSingleFile(st, winner, filepath.Join(s.sources[winner], rel), rel)
}

// syncSingleFile copies one file when the live stat differs from the
// inventory entry. Missing sources are a non-event.
func (s *Syncer) syncSingleFile(st *persistedState, sourceIndex int, sourcePath, destRel string) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.recordError(st, destRel, err)
		}
		return
	}
	key := inventoryKey(sourceIndex, destRel)
	if existing, ok := st.FileInventory[key]; ok &&
		existing.SourceMtimeMs == info.ModTime().UnixMilli() &&
		existing.SourceSizeBytes == info.Size() {
		return
	}
	if err := copyFile(sourcePath, filepath.Join(s.dest, destRel)); err != nil {
		s.recordError(st, destRel, err)
		return
	}
	st.FileInventory[key] = SourceFile{
		RelativePath:    filepath.ToSlash(destRel),
		SourceIndex:     sourceIndex,
		SourceMtimeMs:   info.ModTime().UnixMilli(),
		SourceSizeBytes: info.Size(),
		SyncedAt:        s.now(),
	}
}

// syncDirectory recursively mirrors a directory target, applying the
// extension filter scoped to the target's top-level name.
func (s *Syncer) syncDirectory(st *persistedState, sourceIndex int, src, rel string) {
	root := filepath.Join(src, rel)
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			s.recordError(st, rel, err)
		}
		return
	}
	extensions := dirExtensions[rel]

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.recordError(st, relativeTo(src, path), err)
			return nil
		}
		if d.IsDir() || !matchesExtension(d.Name(), extensions) {
			return nil
		}
		s.syncSingleFile(st, sourceIndex, path, relativeTo(src, path))
		return nil
	})
	if err != nil {
		s.recordError(st, rel, err)
	}
}

func (s *Syncer) recordError(st *persistedState, rel string, err error) {
	log.Printf("[sync] %s: %v", rel, err)
	st.Errors = append(st.Errors, SyncError{
		Timestamp:    s.now(),
		RelativePath: filepath.ToSlash(rel),
		Error:        err.Error(),
	})
}

func (s *Syncer) reportLocked() Report {
	var totalSize int64
	for _, f := range s.state.FileInventory {
		totalSize += f.SourceSizeBytes
	}
	return Report{
		LastSyncAt:         s.state.LastSyncAt,
		LastSyncDurationMs: s.state.LastSyncDurationMs,
		SyncCount:          s.state.SyncCount,
		SourceDirs:         append([]string(nil), s.state.SourceDirs...),
		TotalFiles:         len(s.state.FileInventory),
		TotalSizeBytes:     totalSize,
		Errors:             append([]SyncError(nil), s.state.Errors...),
		IsSyncing:          s.running,
	}
}

func matchesExtension(name string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func relativeTo(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return rel
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating dest dir: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating dest: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}
