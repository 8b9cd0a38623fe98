package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation roles. The message sequence of a session only ever contains
// these three; system instructions travel separately on model requests.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is the primary unit of conversation history. Once appended to a
// session it is immutable. It captures:
//   - Correlation (ID, Turn index, owning Handler)
//   - Conversational content (ordered heterogeneous Parts)
//   - Streaming metadata (Partial fragments are never persisted)
//   - High precision UTC timestamp
type Message struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Handler   string         `json:"handler,omitempty"` // Handler that produced the message, empty for user turns
	Turn      int            `json:"turn"`
	Timestamp time.Time      `json:"timestamp"`
	Parts     []Part         `json:"parts"`
	Partial   bool           `json:"partial,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewMessage creates a bare message for the given role, handler and turn.
// Prefer the helper constructors for common semantic categories.
func NewMessage(role, handler string, turn int) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Handler:   handler,
		Turn:      turn,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserMessage creates a user-authored text message for the given turn.
func NewUserMessage(turn int, text string) Message {
	m := NewMessage(RoleUser, "", turn)
	m.Parts = []Part{TextPart{Text: text}}
	return m
}

// NewAssistantMessage creates a handler-authored text message.
func NewAssistantMessage(handler string, turn int, text string) Message {
	m := NewMessage(RoleAssistant, handler, turn)
	m.Parts = []Part{TextPart{Text: text}}
	return m
}

// NewToolCallMessage creates a handler-authored message requesting the
// execution of one or more tools.
func NewToolCallMessage(handler string, turn int, calls ...ToolCall) Message {
	m := NewMessage(RoleAssistant, handler, turn)
	for _, c := range calls {
		m.Parts = append(m.Parts, ToolCallPart{ToolCall: c})
	}
	return m
}

// NewToolResultMessage records the outcome of a previously emitted tool call.
// If err is non-nil the result carries status "error" and the error text.
func NewToolResultMessage(handler string, turn int, id, name string, payload any, err error) Message {
	m := NewMessage(RoleTool, handler, turn)
	tr := ToolResult{ID: id, Name: name, Status: StatusOK, Payload: payload}
	if err != nil {
		tr.Status = StatusError
		tr.Error = err.Error()
		tr.Payload = nil
	}
	m.Parts = []Part{ToolResultPart{ToolResult: tr}}
	return m
}

// NewID generates a unique identifier for messages and turns.
func NewID() string { return uuid.NewString() }

// Text concatenates all text parts preserving their order.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// ToolCalls returns any ToolCall parts preserving their original order.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range m.Parts {
		if tc, ok := p.(ToolCallPart); ok {
			calls = append(calls, tc.ToolCall)
		}
	}
	return calls
}

// ToolResults returns any ToolResult parts preserving their original order.
func (m Message) ToolResults() []ToolResult {
	var results []ToolResult
	for _, p := range m.Parts {
		if tr, ok := p.(ToolResultPart); ok {
			results = append(results, tr.ToolResult)
		}
	}
	return results
}

// IsFinalAnswer reports whether the message terminates a handler loop: a
// complete assistant message with no pending tool activity.
func (m Message) IsFinalAnswer() bool {
	return m.Role == RoleAssistant &&
		!m.Partial &&
		len(m.ToolCalls()) == 0 &&
		len(m.ToolResults()) == 0
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (m Message) UnixSeconds() float64 { return float64(m.Timestamp.UnixNano()) / 1e9 }
