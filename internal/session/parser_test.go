package session

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/janekbaraniewski/clarc/internal/pricing"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("writing log: %v", err)
	}
	return path
}

func TestParse_Classification(t *testing.T) {
	path := writeLog(t,
		`{"type":"user","uuid":"u1","timestamp":"2025-06-01T10:00:00Z","message":{"role":"user","content":"hello there"}}`,
		`{"type":"assistant","uuid":"a1","parentUuid":"u1","timestamp":"2025-06-01T10:00:05Z","message":{"role":"assistant","model":"claude-sonnet-4-20250514","content":[{"type":"thinking","thinking":"let me think"},{"type":"text","text":"hi"},{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"ls"}}],"usage":{"input_tokens":100,"output_tokens":50}}}`,
		`{"type":"user","uuid":"u2","timestamp":"2025-06-01T10:00:10Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"file.txt"}]}}`,
		`{"type":"progress","uuid":"p1"}`,
		`{"type":"file-history-snapshot","uuid":"f1"}`,
		`this line is not json`,
	)

	p := NewParser(0)
	s, err := p.Parse(path, "s1", "proj")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(s.Messages) != 3 {
		t.Fatalf("messages = %d, want 3 (progress/snapshot/malformed excluded)", len(s.Messages))
	}
	if s.Messages[0].Role != RoleUser {
		t.Errorf("msg 0 role = %s, want user", s.Messages[0].Role)
	}
	if s.Messages[1].Role != RoleAssistant {
		t.Errorf("msg 1 role = %s, want assistant", s.Messages[1].Role)
	}
	if s.Messages[2].Role != RoleTool {
		t.Errorf("msg 2 role = %s, want tool (tool_result content)", s.Messages[2].Role)
	}

	asst := s.Messages[1]
	if len(asst.Thinking) != 1 || asst.Thinking[0].Thinking != "let me think" {
		t.Errorf("thinking = %+v, want one extracted block", asst.Thinking)
	}
	if len(asst.ToolCalls) != 1 || asst.ToolCalls[0].Name != "Bash" {
		t.Errorf("toolCalls = %+v, want one Bash call", asst.ToolCalls)
	}
	// tool_use stays in content too
	if len(asst.Content) != 2 {
		t.Errorf("content blocks = %d, want 2 (text + tool_use)", len(asst.Content))
	}
	if asst.ParentUUID != "u1" {
		t.Errorf("parentUuid = %q, want u1", asst.ParentUUID)
	}

	if s.Metadata.TotalMessages != 3 {
		t.Errorf("totalMessages = %d, want 3", s.Metadata.TotalMessages)
	}
	if got := s.Metadata.Duration.Seconds(); got != 10 {
		t.Errorf("duration = %vs, want 10s", got)
	}
}

func TestParse_EnqueueBecomesAgentRef(t *testing.T) {
	path := writeLog(t,
		`{"type":"queue-operation","operation":"enqueue","content":{"task_id":"a037d13a18000bcdd","description":"run the tests"}}`,
		`{"type":"queue-operation","operation":"enqueue","content":"{\"task_id\":\"bbb\",\"description\":\"nested json string\"}"}`,
		`{"type":"user","uuid":"u1","message":{"role":"user","content":"hi"}}`,
	)

	s, err := NewParser(0).Parse(path, "s1", "proj")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(s.Agents) != 2 {
		t.Fatalf("agents = %d, want 2", len(s.Agents))
	}
	if s.Agents[0].AgentID != "a037d13a18000bcdd" || s.Agents[0].Description != "run the tests" {
		t.Errorf("agent 0 = %+v", s.Agents[0])
	}
	if s.Agents[1].AgentID != "bbb" {
		t.Errorf("agent 1 = %+v, want task id bbb from nested string content", s.Agents[1])
	}
	if s.Agents[0].ParentSessionID != "s1" || s.Agents[0].ProjectID != "proj" {
		t.Errorf("agent 0 linkage = %+v", s.Agents[0])
	}
	if len(s.Messages) != 1 {
		t.Errorf("messages = %d, want 1 (queue-operations excluded)", len(s.Messages))
	}
}

func TestParse_TokenAndCostAggregation(t *testing.T) {
	model := "claude-sonnet-4-20250514"
	path := writeLog(t,
		fmt.Sprintf(`{"type":"assistant","uuid":"a1","message":{"model":"%s","content":[{"type":"text","text":"x"}],"usage":{"input_tokens":100,"output_tokens":50}}}`, model),
		fmt.Sprintf(`{"type":"assistant","uuid":"a2","message":{"model":"%s","content":[{"type":"text","text":"y"}],"usage":{"input_tokens":200,"output_tokens":100,"cache_read_input_tokens":10,"cache_creation_input_tokens":5}}}`, model),
	)

	s, err := NewParser(0).Parse(path, "s1", "proj")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	u := s.Metadata.Usage
	if u.InputTokens != 300 || u.OutputTokens != 150 {
		t.Errorf("usage = %+v, want input 300 output 150", u)
	}
	if u.CacheReadTokens != 10 || u.CacheCreateTokens != 5 {
		t.Errorf("cache tokens = %+v", u)
	}

	wantCost := pricing.Estimate(model, 100, 50, 0, 0) + pricing.Estimate(model, 200, 100, 10, 5)
	if math.Abs(s.Metadata.EstimatedCostUSD-wantCost) > 1e-12 {
		t.Errorf("cost = %v, want %v", s.Metadata.EstimatedCostUSD, wantCost)
	}
}

func TestParse_FallbackCostFromTotals(t *testing.T) {
	// Model on record but no usage objects anywhere: per-message costs stay
	// zero, so the session cost must come from pricing the aggregate.
	path := writeLog(t,
		`{"type":"assistant","uuid":"a1","message":{"model":"claude-opus-4-6","content":[{"type":"text","text":"x"}]}}`,
	)
	s, err := NewParser(0).Parse(path, "s1", "proj")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Metadata.Model != "claude-opus-4-6" {
		t.Errorf("model = %q", s.Metadata.Model)
	}
	if s.Metadata.EstimatedCostUSD != 0 {
		t.Errorf("zero tokens should price to zero, got %v", s.Metadata.EstimatedCostUSD)
	}
}

func TestParse_FallbackCostUsesAggregateTotals(t *testing.T) {
	// Usage arrives on a record without a model, the model on a record
	// without usage: no per-message cost, so the session falls back to
	// pricing the aggregate under the first observed model.
	path := writeLog(t,
		`{"type":"assistant","uuid":"a1","message":{"content":[{"type":"text","text":"x"}],"usage":{"input_tokens":1000000,"output_tokens":0}}}`,
		`{"type":"assistant","uuid":"a2","message":{"model":"claude-opus-4-6","content":[{"type":"text","text":"y"}]}}`,
	)
	s, err := NewParser(0).Parse(path, "s1", "proj")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := pricing.Estimate("claude-opus-4-6", 1_000_000, 0, 0, 0)
	if math.Abs(s.Metadata.EstimatedCostUSD-want) > 1e-12 {
		t.Errorf("fallback cost = %v, want %v", s.Metadata.EstimatedCostUSD, want)
	}
}

func TestPairToolCalls_IdempotentAndErrorMarker(t *testing.T) {
	messages := []Message{
		{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{
				{ID: "t1", Name: "Bash"},
				{ID: "t2", Name: "Read"},
				{ID: "t3", Name: "Write"},
			},
		},
		{
			Role: RoleTool,
			Content: []ContentBlock{
				{Type: "tool_result", ToolUseID: "t1", Content: "ok output"},
				{Type: "tool_result", ToolUseID: "t2", Content: "Error: file not found"},
			},
		},
	}

	first := PairToolCalls(messages)
	second := PairToolCalls(first)

	for _, msgs := range [][]Message{first, second} {
		calls := msgs[0].ToolCalls
		if calls[0].Result != "ok output" || calls[0].IsError {
			t.Errorf("t1 = %+v, want ok result without error flag", calls[0])
		}
		if !calls[1].IsError {
			t.Errorf("t2 = %+v, want isError true for Error: prefix", calls[1])
		}
		if calls[2].Result != nil {
			t.Errorf("t3 = %+v, want no result attached", calls[2])
		}
	}
}

func TestParser_CacheBound(t *testing.T) {
	p := NewParser(3)
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, fmt.Sprintf("s%d.jsonl", i))
		line := fmt.Sprintf(`{"type":"user","uuid":"u%d","message":{"role":"user","content":"hi"}}`, i)
		if err := os.WriteFile(path, []byte(line+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := p.Parse(path, fmt.Sprintf("s%d", i), "proj"); err != nil {
			t.Fatalf("Parse s%d: %v", i, err)
		}
	}

	if got := p.Cached(); got != 3 {
		t.Fatalf("cached = %d, want capacity 3", got)
	}

	// Oldest-inserted entries (s0, s1) were evicted; parsing s0 again after
	// deleting its file must fail, proving it is no longer served from cache.
	if err := os.Remove(filepath.Join(dir, "s0.jsonl")); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Parse(filepath.Join(dir, "s0.jsonl"), "s0", "proj"); err == nil {
		t.Error("s0 served from cache after eviction")
	}

	// s4 is still resident even with its file gone.
	if err := os.Remove(filepath.Join(dir, "s4.jsonl")); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Parse(filepath.Join(dir, "s4.jsonl"), "s4", "proj"); err != nil {
		t.Errorf("s4 should be cached, got %v", err)
	}
}

func TestParser_ConcurrentSameSession(t *testing.T) {
	path := writeLog(t,
		`{"type":"user","uuid":"u1","message":{"role":"user","content":"hi"}}`,
	)
	p := NewParser(0)

	const callers = 8
	results := make(chan *Session, callers)
	for i := 0; i < callers; i++ {
		go func() {
			s, err := p.Parse(path, "s1", "proj")
			if err != nil {
				t.Errorf("Parse: %v", err)
			}
			results <- s
		}()
	}

	first := <-results
	for i := 1; i < callers; i++ {
		if got := <-results; got != first {
			t.Error("concurrent callers got different session instances")
		}
	}
}
