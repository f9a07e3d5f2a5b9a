// Package session parses Claude Code conversation logs (one JSON record per
// line) into structured sessions, pairs tool calls with their results, and
// keeps a bounded cache of fully parsed sessions.
package session

import (
	"encoding/json"
	"time"
)

// Role is the effective role of a message after classification. A user
// record whose content carries a tool_result block is reported as RoleTool.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// TokenUsage mirrors the usage object on assistant records.
type TokenUsage struct {
	InputTokens       int `json:"inputTokens"`
	OutputTokens      int `json:"outputTokens"`
	CacheReadTokens   int `json:"cacheReadTokens"`
	CacheCreateTokens int `json:"cacheCreateTokens"`
}

// Add accumulates another usage object into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.CacheCreateTokens += other.CacheCreateTokens
}

// ContentBlock is one element of a message's content array. Only the fields
// relevant to the block's type are populated; unknown block types pass
// through with just Type set.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Content   any             `json:"content,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Signature string          `json:"signature,omitempty"`
}

// ThinkingBlock is extended reasoning extracted from assistant content.
type ThinkingBlock struct {
	Thinking  string `json:"thinking"`
	Signature string `json:"signature,omitempty"`
}

// ToolCall is a tool_use block lifted out of an assistant message. Result
// and IsError are attached post-hoc by PairToolCalls.
type ToolCall struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input,omitempty"`
	Result  any             `json:"result,omitempty"`
	IsError bool            `json:"isError,omitempty"`
}

// Message is one conversation record. ParentUUID is a plain identifier into
// the same session, not an owning pointer; consumers rebuild the tree via an
// id lookup when they need it.
type Message struct {
	UUID        string          `json:"uuid"`
	ParentUUID  string          `json:"parentUuid,omitempty"`
	Type        string          `json:"type"`
	Role        Role            `json:"role"`
	Content     []ContentBlock  `json:"content"`
	Thinking    []ThinkingBlock `json:"thinking,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Model       string          `json:"model,omitempty"`
	Usage       *TokenUsage     `json:"tokenUsage,omitempty"`
	CostUSD     float64         `json:"costUsd,omitempty"`
	ToolCalls   []ToolCall      `json:"toolCalls,omitempty"`
	GitBranch   string          `json:"gitBranch,omitempty"`
	CWD         string          `json:"cwd,omitempty"`
	SessionID   string          `json:"sessionId,omitempty"`
	Version     string          `json:"version,omitempty"`
	Slug        string          `json:"slug,omitempty"`
	IsSidechain bool            `json:"isSidechain,omitempty"`
	IsMeta      bool            `json:"isMeta,omitempty"`
	RawLine     string          `json:"-"`
}

// AgentRef points at a sub-agent conversation spawned by a parent session.
// The parser recovers the id and description from the parent's enqueue
// records; the scanner resolves FilePath against the real log file.
type AgentRef struct {
	AgentID         string `json:"agentId"`
	FilePath        string `json:"filePath"`
	ParentSessionID string `json:"parentSessionId"`
	ProjectID       string `json:"projectId"`
	Description     string `json:"description,omitempty"`
}

// Metadata summarizes a fully parsed session.
type Metadata struct {
	Slug             string        `json:"slug,omitempty"`
	Model            string        `json:"model,omitempty"`
	GitBranch        string        `json:"gitBranch,omitempty"`
	CWD              string        `json:"cwd,omitempty"`
	Version          string        `json:"version,omitempty"`
	StartedAt        time.Time     `json:"startedAt,omitzero"`
	EndedAt          time.Time     `json:"endedAt,omitzero"`
	Duration         time.Duration `json:"duration,omitempty"`
	TotalMessages    int           `json:"totalMessages"`
	Usage            TokenUsage    `json:"tokenUsage"`
	EstimatedCostUSD float64       `json:"estimatedCostUsd"`
}

// Session is the full parse result for one conversation log.
type Session struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"projectId"`
	Messages  []Message  `json:"messages"`
	Agents    []AgentRef `json:"agents"`
	Metadata  Metadata   `json:"metadata"`
}
