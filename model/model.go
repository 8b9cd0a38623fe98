package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/tunedesk/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by handlers.
type Request struct {
	Instructions string           `json:"instructions"` // Instructions for the model
	Messages     []core.Message   `json:"messages"`     // Conversation history converted to provider messages
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"` // Indicates if this is a partial response
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "local", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by handlers to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Scripted responses (Enqueue) take precedence over prompt-keyed canned text;
// this lets tests drive a full poll loop (tool call first, final answer next).
type MockModel struct {
	info      Info
	responses map[string]string
	scripted  []core.Message
	mu        sync.Mutex
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends a scripted assistant message consumed in FIFO order by
// subsequent Generate calls.
func (m *MockModel) Enqueue(msgs ...core.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted = append(m.scripted, msgs...)
}

func (m *MockModel) nextScripted() (core.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.scripted) == 0 {
		return core.Message{}, false
	}
	msg := m.scripted[0]
	m.scripted = m.scripted[1:]
	return msg, true
}

func (m *MockModel) cannedText(prompt string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.responses[prompt]
}

// Generate implements Model; emits optional streaming char chunks then a final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if msg, ok := m.nextScripted(); ok {
			finish := "stop"
			if len(msg.ToolCalls()) > 0 {
				finish = "tool_calls"
			}
			respCh <- Response{ID: msg.ID, Message: msg, FinishReason: finish}
			return
		}

		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}

		last := req.Messages[len(req.Messages)-1]
		inputText := last.Text()

		full := m.cannedText(inputText)
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}

		if req.Stream {
			for _, r := range full {
				chunk := core.Message{Role: core.RoleAssistant, Parts: []core.Part{core.TextPart{Text: string(r)}}, Partial: true}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Message: chunk}:
				}
			}
		}

		final := core.Message{
			ID:    core.NewID(),
			Role:  core.RoleAssistant,
			Parts: []core.Part{core.TextPart{Text: full}},
		}
		respCh <- Response{ID: final.ID, Message: final, FinishReason: "stop"}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
