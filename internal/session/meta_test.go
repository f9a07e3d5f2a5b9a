package session

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/janekbaraniewski/clarc/internal/pricing"
)

func TestScanRefMetadata(t *testing.T) {
	path := writeLog(t,
		`{"type":"user","uuid":"u0","isMeta":true,"message":{"role":"user","content":"<command-name>/init</command-name>"}}`,
		`{"type":"user","uuid":"u1","timestamp":"2025-06-01T09:00:00Z","slug":"fix-the-build","version":"2.0.14","gitBranch":"main","message":{"role":"user","content":"<command-message>ignore this</command-message>please fix the build"}}`,
		`{"type":"assistant","uuid":"a1","message":{"model":"claude-sonnet-4-20250514","content":[{"type":"text","text":"on it"}],"usage":{"input_tokens":100,"output_tokens":50}}}`,
	)

	meta, err := ScanRefMetadata(path)
	if err != nil {
		t.Fatalf("ScanRefMetadata: %v", err)
	}
	if meta.MessageCount != 3 {
		t.Errorf("messageCount = %d, want 3", meta.MessageCount)
	}
	if meta.Slug != "fix-the-build" || meta.Version != "2.0.14" || meta.GitBranch != "main" {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.Summary != "please fix the build" {
		t.Errorf("summary = %q, want command markup stripped", meta.Summary)
	}
	if meta.Model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q", meta.Model)
	}
	if meta.StartedAt.IsZero() {
		t.Error("startedAt not captured")
	}
}

func TestScanRefMetadata_UsageAccumulatesBeyondProbeWindow(t *testing.T) {
	model := "claude-sonnet-4-20250514"
	lines := make([]string, 0, 30)
	// Pad past the probe window with user messages, then put usage-bearing
	// assistant records at the tail. Totals must still include them.
	for i := 0; i < 25; i++ {
		lines = append(lines, fmt.Sprintf(`{"type":"user","uuid":"u%d","message":{"role":"user","content":"msg %d"}}`, i, i))
	}
	lines = append(lines,
		fmt.Sprintf(`{"type":"assistant","uuid":"a1","message":{"model":"%s","content":[],"usage":{"input_tokens":100,"output_tokens":50}}}`, model),
		fmt.Sprintf(`{"type":"assistant","uuid":"a2","message":{"model":"%s","content":[],"usage":{"input_tokens":200,"output_tokens":100}}}`, model),
	)

	meta, err := ScanRefMetadata(writeLog(t, lines...))
	if err != nil {
		t.Fatalf("ScanRefMetadata: %v", err)
	}
	if meta.Usage.InputTokens != 300 || meta.Usage.OutputTokens != 150 {
		t.Errorf("usage = %+v, want input 300 output 150", meta.Usage)
	}
	if meta.Model != model {
		t.Errorf("model = %q, want discovered past the probe window", meta.Model)
	}
	want := pricing.Estimate(model, 300, 150, 0, 0)
	if math.Abs(meta.EstimatedCostUSD-want) > 1e-12 {
		t.Errorf("cost = %v, want %v", meta.EstimatedCostUSD, want)
	}
}

func TestScanRefMetadata_SlugOnlyFromProbeWindow(t *testing.T) {
	lines := make([]string, 0, 25)
	for i := 0; i < 21; i++ {
		lines = append(lines, fmt.Sprintf(`{"type":"user","uuid":"u%d","message":{"role":"user","content":""}}`, i))
	}
	lines = append(lines, `{"type":"user","uuid":"late","slug":"too-late","message":{"role":"user","content":"late"}}`)

	meta, err := ScanRefMetadata(writeLog(t, lines...))
	if err != nil {
		t.Fatalf("ScanRefMetadata: %v", err)
	}
	if meta.Slug != "" {
		t.Errorf("slug = %q, want empty: record arrived past the probe window", meta.Slug)
	}
}

func TestSummarize_Truncates(t *testing.T) {
	long := strings.Repeat("a", 500)
	if got := Summarize(long); len(got) != summaryMaxLen {
		t.Errorf("len = %d, want %d", len(got), summaryMaxLen)
	}
}
