package session

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/janekbaraniewski/clarc/internal/pricing"
)

// metaProbeLines bounds how far into a log the scanner looks for slug,
// branch, version and summary. Past this window only two cheap things
// continue: model discovery (until found) and token totals (every line).
const metaProbeLines = 20

const summaryMaxLen = 200

var commandMarkupRe = regexp.MustCompile(`<command-(?:message|name)>.*?</command-(?:message|name)>`)

// RefMetadata is the partial-read view of a log the index scanner uses to
// build a SessionRef without a full parse.
type RefMetadata struct {
	MessageCount     int
	Slug             string
	Version          string
	GitBranch        string
	Model            string
	Summary          string
	StartedAt        time.Time
	Usage            TokenUsage
	EstimatedCostUSD float64
}

// ScanRefMetadata streams a session log once, probing the first few lines
// for identifying metadata and accumulating token usage across the rest.
func ScanRefMetadata(path string) (RefMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return RefMetadata{}, fmt.Errorf("opening session log: %w", err)
	}
	defer f.Close()

	var (
		meta         RefMetadata
		firstUserMsg string
		lineNo       int
	)

	scanner := newLineScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lineNo++
		meta.MessageCount++

		var raw logLine
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}

		if lineNo <= metaProbeLines {
			if raw.Type == "user" && raw.Message != nil {
				if meta.Slug == "" {
					meta.Slug = raw.Slug
				}
				if meta.Version == "" {
					meta.Version = raw.Version
				}
				if meta.GitBranch == "" {
					meta.GitBranch = raw.GitBranch
				}
				if firstUserMsg == "" && !raw.IsMeta {
					firstUserMsg = firstTextBlock(raw.Message.Content)
				}
			}
			if meta.StartedAt.IsZero() {
				if ts, ok := parseTimestamp(raw.Timestamp); ok {
					meta.StartedAt = ts
				}
			}
		}

		if raw.Type == "assistant" && raw.Message != nil {
			if meta.Model == "" {
				meta.Model = raw.Message.Model
			}
			if raw.Message.Usage != nil {
				meta.Usage.Add(raw.Message.Usage.toTokenUsage())
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return meta, fmt.Errorf("reading session log: %w", err)
	}

	if firstUserMsg != "" {
		meta.Summary = Summarize(firstUserMsg)
	}
	if meta.Model != "" {
		meta.EstimatedCostUSD = pricing.Estimate(meta.Model,
			meta.Usage.InputTokens, meta.Usage.OutputTokens, meta.Usage.CacheReadTokens, meta.Usage.CacheCreateTokens)
	}
	return meta, nil
}

// Summarize strips embedded command markup and truncates text for use as a
// one-line session summary.
func Summarize(text string) string {
	cleaned := strings.TrimSpace(commandMarkupRe.ReplaceAllString(text, ""))
	if len(cleaned) > summaryMaxLen {
		cleaned = cleaned[:summaryMaxLen]
	}
	return cleaned
}
