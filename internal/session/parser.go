package session

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/janekbaraniewski/clarc/internal/pricing"
)

// DefaultCacheSize bounds how many parsed sessions stay resident.
const DefaultCacheSize = 50

// toolErrorPrefix marks a string tool result as a failed call.
const toolErrorPrefix = "Error:"

// Parser turns conversation logs into Sessions and caches results by
// session id. Concurrent parses of the same id collapse to a single read;
// when the cache is full the oldest-inserted entry is evicted.
type Parser struct {
	mu       sync.Mutex
	capacity int
	sessions map[string]*Session
	order    []string
	inflight map[string]chan struct{}
}

func NewParser(capacity int) *Parser {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Parser{
		capacity: capacity,
		sessions: make(map[string]*Session),
		inflight: make(map[string]chan struct{}),
	}
}

// Parse returns the structured session for the given log file, reading it at
// most once per cache residency. A second caller arriving mid-parse waits
// for the in-flight result instead of re-reading the file.
func (p *Parser) Parse(path, sessionID, projectID string) (*Session, error) {
	for {
		p.mu.Lock()
		if s, ok := p.sessions[sessionID]; ok {
			p.mu.Unlock()
			return s, nil
		}
		wait, ok := p.inflight[sessionID]
		if !ok {
			p.inflight[sessionID] = make(chan struct{})
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()
		<-wait
	}

	s, err := parseFile(path, sessionID, projectID)

	p.mu.Lock()
	close(p.inflight[sessionID])
	delete(p.inflight, sessionID)
	if err == nil {
		p.insertLocked(sessionID, s)
	}
	p.mu.Unlock()

	return s, err
}

// Evict drops one session from the cache, forcing a re-parse on next use.
func (p *Parser) Evict(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[sessionID]; !ok {
		return
	}
	delete(p.sessions, sessionID)
	for i, id := range p.order {
		if id == sessionID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Cached reports how many sessions are resident.
func (p *Parser) Cached() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *Parser) insertLocked(sessionID string, s *Session) {
	if _, ok := p.sessions[sessionID]; ok {
		p.sessions[sessionID] = s
		return
	}
	if len(p.sessions) >= p.capacity && len(p.order) > 0 {
		oldest := p.order[0]
		p.order = p.order[1:]
		delete(p.sessions, oldest)
	}
	p.sessions[sessionID] = s
	p.order = append(p.order, sessionID)
}

func parseFile(path, sessionID, projectID string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening session log: %w", err)
	}
	defer f.Close()

	s := &Session{ID: sessionID, ProjectID: projectID}
	var (
		totalCost  float64
		firstModel string
	)

	scanner := newLineScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw logLine
		if err := json.Unmarshal(line, &raw); err != nil {
			log.Printf("[parser] %s: skipping malformed line: %v", sessionID, err)
			continue
		}

		// Enqueue records announce a sub-agent; they carry no message body.
		if raw.Type == typeQueueOperation && raw.Operation == "enqueue" {
			if payload, ok := decodeEnqueue(raw.Content); ok {
				s.Agents = append(s.Agents, AgentRef{
					AgentID:         payload.TaskID,
					ParentSessionID: sessionID,
					ProjectID:       projectID,
					Description:     payload.Description,
				})
			}
		}
		if raw.Type == typeFileHistorySnapshot || raw.Type == typeQueueOperation || raw.Type == typeProgress {
			continue
		}

		msg, ok := buildMessage(raw, string(line))
		if !ok {
			continue
		}
		s.Messages = append(s.Messages, msg)

		if s.Metadata.Slug == "" {
			s.Metadata.Slug = raw.Slug
		}
		if s.Metadata.GitBranch == "" {
			s.Metadata.GitBranch = raw.GitBranch
		}
		if s.Metadata.CWD == "" {
			s.Metadata.CWD = raw.CWD
		}
		if s.Metadata.Version == "" {
			s.Metadata.Version = raw.Version
		}

		if !msg.Timestamp.IsZero() {
			if s.Metadata.StartedAt.IsZero() || msg.Timestamp.Before(s.Metadata.StartedAt) {
				s.Metadata.StartedAt = msg.Timestamp
			}
			if s.Metadata.EndedAt.IsZero() || msg.Timestamp.After(s.Metadata.EndedAt) {
				s.Metadata.EndedAt = msg.Timestamp
			}
		}

		if msg.Role == RoleAssistant && msg.Usage != nil {
			s.Metadata.Usage.Add(*msg.Usage)
		}
		if msg.Model != "" && firstModel == "" {
			firstModel = msg.Model
		}
		totalCost += msg.CostUSD
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading session log: %w", err)
	}

	// No per-message costs were computable (older logs without usage on
	// every record) — fall back to pricing the aggregate totals.
	if totalCost == 0 && firstModel != "" {
		u := s.Metadata.Usage
		totalCost = pricing.Estimate(firstModel, u.InputTokens, u.OutputTokens, u.CacheReadTokens, u.CacheCreateTokens)
	}

	s.Metadata.Model = firstModel
	s.Metadata.TotalMessages = len(s.Messages)
	s.Metadata.EstimatedCostUSD = totalCost
	if !s.Metadata.StartedAt.IsZero() && !s.Metadata.EndedAt.IsZero() {
		s.Metadata.Duration = s.Metadata.EndedAt.Sub(s.Metadata.StartedAt)
	}
	return s, nil
}

// buildMessage classifies one record into a Message. Records of unknown
// type are kept only when they carry a message body.
func buildMessage(raw logLine, line string) (Message, bool) {
	msg := Message{
		UUID:        raw.UUID,
		ParentUUID:  raw.ParentUUID,
		Type:        raw.Type,
		Role:        RoleUser,
		GitBranch:   raw.GitBranch,
		CWD:         raw.CWD,
		SessionID:   raw.SessionID,
		Version:     raw.Version,
		Slug:        raw.Slug,
		IsSidechain: raw.IsSidechain,
		IsMeta:      raw.IsMeta,
		RawLine:     line,
	}
	if ts, ok := parseTimestamp(raw.Timestamp); ok {
		msg.Timestamp = ts
	}

	switch {
	case raw.Type == "assistant" && raw.Message != nil:
		msg.Role = RoleAssistant
		msg.Model = raw.Message.Model

		var blocks []ContentBlock
		if err := json.Unmarshal(raw.Message.Content, &blocks); err == nil {
			for _, block := range blocks {
				switch block.Type {
				case "thinking":
					msg.Thinking = append(msg.Thinking, ThinkingBlock{
						Thinking:  block.Thinking,
						Signature: block.Signature,
					})
				case "tool_use":
					msg.Content = append(msg.Content, block)
					msg.ToolCalls = append(msg.ToolCalls, ToolCall{
						ID:    block.ID,
						Name:  block.Name,
						Input: block.Input,
					})
				default:
					msg.Content = append(msg.Content, block)
				}
			}
		} else if text := firstTextBlock(raw.Message.Content); text != "" {
			msg.Content = []ContentBlock{{Type: "text", Text: text}}
		}

		if raw.Message.Usage != nil {
			usage := raw.Message.Usage.toTokenUsage()
			msg.Usage = &usage
			if msg.Model != "" {
				msg.CostUSD = pricing.Estimate(msg.Model,
					usage.InputTokens, usage.OutputTokens, usage.CacheReadTokens, usage.CacheCreateTokens)
			}
		}

	case raw.Type == "user" && raw.Message != nil:
		var text string
		if err := json.Unmarshal(raw.Message.Content, &text); err == nil {
			msg.Content = []ContentBlock{{Type: "text", Text: text}}
		} else {
			var blocks []ContentBlock
			if err := json.Unmarshal(raw.Message.Content, &blocks); err == nil {
				for _, block := range blocks {
					if block.Type == "tool_result" {
						msg.Role = RoleTool
					}
					msg.Content = append(msg.Content, block)
				}
			}
		}

	case raw.Type == "" || raw.Message == nil:
		// Unknown bodiless record; nothing displayable.
		return Message{}, false

	default:
		// Unknown record type that still carries a message body: keep it as
		// a generic message so new log kinds surface instead of vanishing.
		if text := firstTextBlock(raw.Message.Content); text != "" {
			msg.Content = []ContentBlock{{Type: "text", Text: text}}
		}
	}

	return msg, true
}

// PairToolCalls attaches tool results to the tool calls that produced them.
// Safe to call repeatedly: a second pass attaches the same results again.
func PairToolCalls(messages []Message) []Message {
	results := make(map[string]any)
	for _, msg := range messages {
		if msg.Role != RoleTool {
			continue
		}
		for _, block := range msg.Content {
			if block.Type == "tool_result" && block.ToolUseID != "" {
				results[block.ToolUseID] = block.Content
			}
		}
	}

	for i := range messages {
		for j := range messages[i].ToolCalls {
			tc := &messages[i].ToolCalls[j]
			result, ok := results[tc.ID]
			if !ok {
				continue
			}
			tc.Result = result
			if text, ok := result.(string); ok && strings.HasPrefix(text, toolErrorPrefix) {
				tc.IsError = true
			}
		}
	}
	return messages
}
