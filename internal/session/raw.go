package session

import (
	"bufio"
	"encoding/json"
	"io"
	"time"
)

// Record types that never become messages.
const (
	typeFileHistorySnapshot = "file-history-snapshot"
	typeQueueOperation      = "queue-operation"
	typeProgress            = "progress"
)

// logLine is the envelope every JSONL record shares. Fields beyond Type are
// populated or not depending on the record kind.
type logLine struct {
	Type        string          `json:"type"`
	UUID        string          `json:"uuid"`
	ParentUUID  string          `json:"parentUuid"`
	Timestamp   string          `json:"timestamp"`
	Message     *rawMessage     `json:"message"`
	Operation   string          `json:"operation"`
	Content     json.RawMessage `json:"content"`
	Slug        string          `json:"slug"`
	GitBranch   string          `json:"gitBranch"`
	CWD         string          `json:"cwd"`
	Version     string          `json:"version"`
	SessionID   string          `json:"sessionId"`
	IsSidechain bool            `json:"isSidechain"`
	IsMeta      bool            `json:"isMeta"`
}

type rawMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *rawUsage       `json:"usage"`
}

type rawUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

func (u *rawUsage) toTokenUsage() TokenUsage {
	return TokenUsage{
		InputTokens:       u.InputTokens,
		OutputTokens:      u.OutputTokens,
		CacheReadTokens:   u.CacheReadInputTokens,
		CacheCreateTokens: u.CacheCreationInputTokens,
	}
}

// enqueuePayload is the content of a queue-operation enqueue record. The
// content arrives either as an object or as a JSON string containing one.
type enqueuePayload struct {
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
}

func decodeEnqueue(content json.RawMessage) (enqueuePayload, bool) {
	if len(content) == 0 {
		return enqueuePayload{}, false
	}
	raw := content
	var nested string
	if err := json.Unmarshal(content, &nested); err == nil {
		raw = []byte(nested)
	}
	var payload enqueuePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.TaskID == "" {
		return enqueuePayload{}, false
	}
	return payload, true
}

// parseTimestamp accepts the RFC3339 variants seen across log versions.
func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02T15:04:05.000Z", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// newLineScanner wraps r with the buffer sizing conversation logs need:
// single lines holding pasted files or tool output can run to megabytes.
func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 256*1024)
	scanner.Buffer(buf, 10*1024*1024)
	return scanner
}

// firstTextBlock pulls display text from a user message content payload,
// which is either a plain string or an array of blocks.
func firstTextBlock(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		return text
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return ""
	}
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			return b.Text
		}
	}
	return ""
}
