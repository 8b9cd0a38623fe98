package testutil

import (
	"github.com/hupe1980/tunedesk/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := testutil.NewMessageBuilder().Handler("catalog").Turn(1).AssistantText("hello").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	role     string
	handler  string
	turn     int
	partial  bool
	parts    []core.Part
	metadata map[string]any
}

// NewMessageBuilder creates a builder with default role assistant.
func NewMessageBuilder() *MessageBuilder { return &MessageBuilder{role: core.RoleAssistant} }

// Role overrides the message role (chainable).
func (b *MessageBuilder) Role(role string) *MessageBuilder { b.role = role; return b }

// Handler sets the producing handler ID (chainable).
func (b *MessageBuilder) Handler(id string) *MessageBuilder { b.handler = id; return b }

// Turn sets the turn number (chainable).
func (b *MessageBuilder) Turn(turn int) *MessageBuilder { b.turn = turn; return b }

// Partial marks the message as a streaming chunk (chainable).
func (b *MessageBuilder) Partial() *MessageBuilder { b.partial = true; return b }

// UserText appends a text part and sets the role to user (chainable).
func (b *MessageBuilder) UserText(text string) *MessageBuilder {
	b.role = core.RoleUser
	b.parts = append(b.parts, core.TextPart{Text: text})

	return b
}

// AssistantText appends a text part and sets the role to assistant (chainable).
func (b *MessageBuilder) AssistantText(text string) *MessageBuilder {
	b.role = core.RoleAssistant
	b.parts = append(b.parts, core.TextPart{Text: text})

	return b
}

// ToolCall appends a tool call part (chainable).
func (b *MessageBuilder) ToolCall(id, name, arguments string) *MessageBuilder {
	b.parts = append(b.parts, core.ToolCallPart{ToolCall: core.ToolCall{
		ID: id, Name: name, Arguments: arguments,
	}})

	return b
}

// ToolResult appends a tool result part and sets the role to tool (chainable).
func (b *MessageBuilder) ToolResult(tr core.ToolResult) *MessageBuilder {
	b.role = core.RoleTool
	b.parts = append(b.parts, core.ToolResultPart{ToolResult: tr})

	return b
}

// Meta sets one metadata key (chainable).
func (b *MessageBuilder) Meta(key string, value any) *MessageBuilder {
	if b.metadata == nil {
		b.metadata = map[string]any{}
	}

	b.metadata[key] = value

	return b
}

// Build returns the assembled message.
func (b *MessageBuilder) Build() core.Message {
	msg := core.NewMessage(b.role, b.handler, b.turn)
	msg.Partial = b.partial
	msg.Parts = append(msg.Parts, b.parts...)
	msg.Metadata = b.metadata

	return msg
}
