package core

// Part represents a polymorphic segment of role-based message content.
// Concrete part types implement the unexported isPart marker enabling a
// closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// ResultStatus classifies the outcome of a tool invocation.
type ResultStatus string

const (
	// StatusOK marks a tool result carrying a usable payload.
	StatusOK ResultStatus = "ok"
	// StatusError marks a tool result describing a recoverable failure.
	StatusError ResultStatus = "error"
)

// ToolCall describes a tool invocation request produced by a model.
type ToolCall struct {
	ID        string `json:"id,omitempty"`        // Stable id pairing the call with its result
	Name      string `json:"name"`                // Tool name
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (JSON)
}

// ToolCallPart wraps a ToolCall as a message part.
type ToolCallPart struct {
	ToolCall ToolCall
	Metadata map[string]any
}

// isPart implements the Part interface for ToolCallPart.
func (ToolCallPart) isPart() {}

// ToolResult describes the outcome of a tool call. Status is "ok" when
// Payload holds a usable result and "error" when Error explains a failure
// the handler loop can recover from.
type ToolResult struct {
	ID      string       `json:"id,omitempty"` // Matches the originating ToolCall ID
	Name    string       `json:"name"`         // Tool name
	Status  ResultStatus `json:"status"`
	Payload any          `json:"payload,omitempty"` // Successful result (any shape)
	Error   string       `json:"error,omitempty"`   // Populated when Status is "error"
}

// ToolResultPart wraps a ToolResult as a message part.
type ToolResultPart struct {
	ToolResult ToolResult
	Metadata   map[string]any
}

// isPart implements the Part interface for ToolResultPart.
func (ToolResultPart) isPart() {}
