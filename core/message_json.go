package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Part type tags used by the JSON envelope encoding.
const (
	partTypeText       = "text"
	partTypeToolCall   = "tool_call"
	partTypeToolResult = "tool_result"
)

// partEnvelope is the wire form of a Part. The Type tag makes the
// heterogeneous Parts slice round-trippable, which checkpoint stores rely on
// when persisting history as opaque JSON payloads.
type partEnvelope struct {
	Type       string         `json:"type"`
	Text       string         `json:"text,omitempty"`
	ToolCall   *ToolCall      `json:"tool_call,omitempty"`
	ToolResult *ToolResult    `json:"tool_result,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type messageJSON struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Handler   string         `json:"handler,omitempty"`
	Turn      int            `json:"turn"`
	Timestamp time.Time      `json:"timestamp"`
	Parts     []partEnvelope `json:"parts"`
	Partial   bool           `json:"partial,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler using the typed part envelope.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		ID:        m.ID,
		Role:      m.Role,
		Handler:   m.Handler,
		Turn:      m.Turn,
		Timestamp: m.Timestamp,
		Partial:   m.Partial,
		Metadata:  m.Metadata,
	}

	for _, p := range m.Parts {
		switch part := p.(type) {
		case TextPart:
			out.Parts = append(out.Parts, partEnvelope{Type: partTypeText, Text: part.Text, Metadata: part.Metadata})
		case ToolCallPart:
			tc := part.ToolCall
			out.Parts = append(out.Parts, partEnvelope{Type: partTypeToolCall, ToolCall: &tc, Metadata: part.Metadata})
		case ToolResultPart:
			tr := part.ToolResult
			out.Parts = append(out.Parts, partEnvelope{Type: partTypeToolResult, ToolResult: &tr, Metadata: part.Metadata})
		default:
			return nil, fmt.Errorf("core: cannot marshal part of type %T", p)
		}
	}

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Tool result payloads come back
// JSON-normalized (maps, slices, float64 numbers).
func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	msg := Message{
		ID:        in.ID,
		Role:      in.Role,
		Handler:   in.Handler,
		Turn:      in.Turn,
		Timestamp: in.Timestamp,
		Partial:   in.Partial,
		Metadata:  in.Metadata,
	}

	for _, env := range in.Parts {
		switch env.Type {
		case partTypeText:
			msg.Parts = append(msg.Parts, TextPart{Text: env.Text, Metadata: env.Metadata})
		case partTypeToolCall:
			if env.ToolCall == nil {
				return fmt.Errorf("core: tool_call part without payload")
			}
			msg.Parts = append(msg.Parts, ToolCallPart{ToolCall: *env.ToolCall, Metadata: env.Metadata})
		case partTypeToolResult:
			if env.ToolResult == nil {
				return fmt.Errorf("core: tool_result part without payload")
			}
			msg.Parts = append(msg.Parts, ToolResultPart{ToolResult: *env.ToolResult, Metadata: env.Metadata})
		default:
			return fmt.Errorf("core: unknown part type %q", env.Type)
		}
	}

	*m = msg

	return nil
}
