// Package models holds the data shapes shared across the engine's packages:
// conversation messages, tool calls, and the events streamed back to callers
// of a graph run. Keeping them in a leaf package avoids import cycles between
// internal/state, internal/graph, and internal/executor.
package models

import "time"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolCall is a single requested invocation of a tool, as emitted by the
// planner or reflector node.
type ToolCall struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// ToolCallRecord is the immutable record the executor appends to
// AgentState.ToolsUsed for every tool call it attempts.
type ToolCallRecord struct {
	ToolName    string         `json:"tool_name"`
	ToolInput   map[string]any `json:"tool_input"`
	Result      string         `json:"result"`
	Success     bool           `json:"success"`
	DurationMS  int64          `json:"duration_ms"`
	Attempts    int            `json:"attempts"`
	ErrorType   string         `json:"error_type,omitempty"`
	CostUSD     float64        `json:"cost_usd"`
	Priority    int            `json:"priority"`
	CompletedAt time.Time      `json:"completed_at"`
}

// ToolEvent is a sub-event describing one stage of a tool call's lifecycle.
// Nothing in this module emits it.
type ToolEvent struct {
	Tool      string    `json:"tool"`
	Stage     string    `json:"stage"` // "started", "completed", "failed"
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Reflection is one reflector decision, appended to AgentState.Reflections.
type Reflection struct {
	QualityScore           float64    `json:"quality_score"`
	HasEnoughInfo          bool       `json:"has_enough_info"`
	NeedsDifferentApproach bool       `json:"needs_different_approach"`
	MissingInfo            string     `json:"missing_info,omitempty"`
	NextToolCalls          []ToolCall `json:"next_tool_calls,omitempty"`
	Reasoning              string     `json:"reasoning,omitempty"`
}

// MemoryItem is one recalled memory returned by an external memory service.
type MemoryItem struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// RetrievedChunk is one result returned by the external RAG retrieval
// collaborator.
type RetrievedChunk struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
