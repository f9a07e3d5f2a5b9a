// Package index builds the browsable in-memory model of the mirrored
// archive: projects, their sessions and sub-agents, task lists, plus the
// best-effort global stats snapshot and prompt history.
package index

import (
	"time"

	"github.com/janekbaraniewski/clarc/internal/session"
)

// Index is one complete scan result. It is rebuilt wholesale and swapped
// atomically; nothing mutates an Index after Build returns it.
type Index struct {
	Projects      []*Project     `json:"projects"`
	GlobalStats   *GlobalStats   `json:"globalStats,omitempty"`
	PromptHistory []PromptEntry  `json:"promptHistory"`
	LastIndexedAt time.Time      `json:"lastIndexedAt"`
}

// Project is one logical working directory. Its ID is the canonical
// path-encoded directory name; several physical directories can merge into
// one Project when they encode the same real path differently.
type Project struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Sessions     []*SessionRef      `json:"sessions"`
	Agents       []session.AgentRef `json:"agents"`
	Tasks        []TaskList         `json:"tasks"`
	LastActiveAt time.Time          `json:"lastActiveAt"`
	MessageCount int                `json:"messageCount"`
}

// SessionRef is the lightweight index-time view of one conversation log.
// Rebuilt on every scan, never mutated incrementally.
type SessionRef struct {
	ID               string              `json:"id"`
	ProjectID        string              `json:"projectId"`
	FilePath         string              `json:"filePath"`
	FileSize         int64               `json:"fileSize"`
	ModifiedAt       time.Time           `json:"modifiedAt"`
	Summary          string              `json:"summary,omitempty"`
	MessageCount     int                 `json:"messageCount"`
	Model            string              `json:"model,omitempty"`
	GitBranch        string              `json:"gitBranch,omitempty"`
	Slug             string              `json:"slug,omitempty"`
	Version          string              `json:"version,omitempty"`
	StartedAt        time.Time           `json:"startedAt,omitzero"`
	Agents           []session.AgentRef  `json:"agents"`
	Usage            *session.TokenUsage `json:"tokenUsage,omitempty"`
	EstimatedCostUSD float64             `json:"estimatedCostUsd,omitempty"`
}

// TaskList is the read-only projection of one todo file.
type TaskList struct {
	SessionID string `json:"sessionId"`
	AgentID   string `json:"agentId,omitempty"`
	Tasks     []Task `json:"tasks"`
}

type Task struct {
	ID          string         `json:"id"`
	Subject     string         `json:"subject"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Blocks      []string       `json:"blocks"`
	BlockedBy   []string       `json:"blockedBy"`
	Metadata    map[string]any `json:"metadata"`
}

// GlobalStats mirrors the stats-cache.json snapshot Claude Code maintains.
type GlobalStats struct {
	Version          int                        `json:"version"`
	LastComputedDate string                     `json:"lastComputedDate"`
	DailyActivity    []DailyActivity            `json:"dailyActivity"`
	DailyModelTokens []DailyModelTokens         `json:"dailyModelTokens"`
	ModelUsage       map[string]ModelUsageEntry `json:"modelUsage"`
	TotalSessions    int                        `json:"totalSessions"`
	TotalMessages    int                        `json:"totalMessages"`
	LongestSession   *LongestSession            `json:"longestSession,omitempty"`
	FirstSessionDate string                     `json:"firstSessionDate"`
	HourCounts       map[string]int             `json:"hourCounts"`
}

type DailyActivity struct {
	Date          string `json:"date"`
	MessageCount  int    `json:"messageCount"`
	SessionCount  int    `json:"sessionCount"`
	ToolCallCount int    `json:"toolCallCount"`
}

type DailyModelTokens struct {
	Date          string         `json:"date"`
	TokensByModel map[string]int `json:"tokensByModel"`
}

type ModelUsageEntry struct {
	InputTokens              int     `json:"inputTokens"`
	OutputTokens             int     `json:"outputTokens"`
	CacheReadInputTokens     int     `json:"cacheReadInputTokens"`
	CacheCreationInputTokens int     `json:"cacheCreationInputTokens"`
	WebSearchRequests        int     `json:"webSearchRequests"`
	CostUSD                  float64 `json:"costUSD"`
	ContextWindow            int     `json:"contextWindow"`
	MaxOutputTokens          int     `json:"maxOutputTokens"`
}

type LongestSession struct {
	SessionID    string `json:"sessionId"`
	Duration     int64  `json:"duration"`
	MessageCount int    `json:"messageCount"`
	Timestamp    string `json:"timestamp"`
}

// PromptEntry is one record of the merged prompt history log.
type PromptEntry struct {
	Display        string         `json:"display"`
	PastedContents map[string]any `json:"pastedContents,omitempty"`
	Timestamp      int64          `json:"timestamp"`
	Project        string         `json:"project,omitempty"`
	SessionID      string         `json:"sessionId,omitempty"`
}
