package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/internal/util"
	"github.com/hupe1980/tunedesk/model"
	"github.com/hupe1980/tunedesk/tool"
)

// DefaultMaxHistoryMessages bounds the conversation window sent to the model.
const DefaultMaxHistoryMessages = 20

// Options configures a ModelHandler instance.
//
// Use functional options with New to override defaults.
type Options struct {
	// Instruction is the system prompt. Static text is rendered as a Go
	// template against session state before each poll.
	Instruction Instruction
	// Tools bound to this handler, exposed to the model as callable functions.
	Tools []tool.Tool
	// MaxHistoryMessages caps the conversation window per model request.
	MaxHistoryMessages int
	// MaxParallelTools caps concurrent tool execution when the model issues
	// several calls at once. Zero means one goroutine per call.
	MaxParallelTools int
	// EnableStreaming requests partial responses from the model. Partial
	// chunks are forwarded to the engine but never persisted.
	EnableStreaming bool
}

// ModelHandler drives a poll loop against a language model: ask the model for
// the next action, execute the tools it requests, feed the results back, and
// repeat until the model answers in natural language or the turn's tool
// budget is exhausted.
//
// The loop emits every intermediate message through the TurnContext and waits
// for the engine's resume signal, so each step is checkpointed before the
// next one starts.
type ModelHandler struct {
	id          string
	capability  core.Capability
	model       model.Model
	instruction Instruction
	tools       map[string]tool.Tool
	toolNames   []string // registration order keeps tool definitions stable
	maxHistory  int
	streaming   bool
	exec        *executor
}

var _ core.Handler = (*ModelHandler)(nil)

// New creates a handler bound to a model.
func New(id string, capability core.Capability, mdl model.Model, optFns ...func(o *Options)) *ModelHandler {
	opts := Options{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, an assistant of a digital music store.", id)),
		MaxHistoryMessages: DefaultMaxHistoryMessages,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	h := &ModelHandler{
		id:          id,
		capability:  capability,
		model:       mdl,
		instruction: opts.Instruction,
		tools:       make(map[string]tool.Tool),
		maxHistory:  opts.MaxHistoryMessages,
		streaming:   opts.EnableStreaming,
		exec:        newExecutor(opts.MaxParallelTools),
	}

	for _, t := range opts.Tools {
		h.RegisterTool(t)
	}

	return h
}

// ID returns the handler's unique identifier.
func (h *ModelHandler) ID() string { return h.id }

// Capability returns the declared routing capability.
func (h *ModelHandler) Capability() core.Capability { return h.capability }

// RegisterTool binds a tool to the handler. A later registration under the
// same name replaces the earlier one.
func (h *ModelHandler) RegisterTool(t tool.Tool) {
	if _, exists := h.tools[t.Name()]; !exists {
		h.toolNames = append(h.toolNames, t.Name())
	}
	h.tools[t.Name()] = t
}

// HasTool reports whether a tool is bound to the handler.
func (h *ModelHandler) HasTool(name string) bool {
	_, exists := h.tools[name]
	return exists
}

// Tools returns a copy of the bound tool registry.
func (h *ModelHandler) Tools() map[string]tool.Tool {
	tools := make(map[string]tool.Tool, len(h.tools))
	for name, t := range h.tools {
		tools[name] = t
	}
	return tools
}

// Run implements core.Handler.
//
// Each iteration refreshes the session snapshot, polls the model once, and
// either returns the model's final answer or executes the requested tool
// calls. Tool failures (unknown tool, malformed or invalid arguments, store
// errors) become error results fed back into history; the loop continues and
// the model gets a chance to correct itself. The tool budget is spent per
// invocation before execution, so a turn never runs past its ceiling:
// exhaustion terminates the loop with a best-effort summary built from the
// results gathered so far.
func (h *ModelHandler) Run(turn *core.TurnContext) (*core.Message, error) {
	turn.LogDebug("handler.run.start", "handler", h.id, "turn", turn.Turn)

	var gathered []core.ToolResult

	for {
		if err := turn.RefreshSession(); err != nil {
			return nil, fmt.Errorf("refresh session: %w", err)
		}

		msg, err := h.poll(turn)
		if err != nil {
			return nil, fmt.Errorf("model poll: %w", err)
		}

		calls := msg.ToolCalls()
		if len(calls) == 0 {
			turn.LogDebug("handler.run.final", "handler", h.id, "spent", turn.Budget.Spent())
			return msg, nil
		}

		// Reserve budget for the whole batch before executing any of it.
		if err := h.spend(turn, len(calls)); err != nil {
			if !errors.Is(err, core.ErrBudgetExhausted) {
				return nil, err
			}
			turn.LogWarn("handler.budget.exhausted", "handler", h.id, "spent", turn.Budget.Spent(), "dropped_calls", len(calls))
			return h.truncatedReply(turn, gathered), nil
		}

		if err := turn.EmitMessage(*msg); err != nil {
			return nil, err
		}
		if err := turn.WaitForResume(); err != nil {
			return nil, err
		}

		results := h.exec.Execute(turn, h.tools, calls)

		for _, tr := range results {
			resultMsg := core.NewMessage(core.RoleTool, h.id, turn.Turn)
			resultMsg.Parts = []core.Part{core.ToolResultPart{ToolResult: tr}}

			if err := turn.EmitMessage(resultMsg); err != nil {
				return nil, err
			}
			if err := turn.WaitForResume(); err != nil {
				return nil, err
			}

			if tr.Status == core.StatusOK {
				gathered = append(gathered, tr)
			}
		}
	}
}

// poll performs one model request and drains the response channels down to
// the round's complete message. Partial chunks are forwarded when streaming
// is enabled; they carry Partial=true and skip persistence.
func (h *ModelHandler) poll(turn *core.TurnContext) (*core.Message, error) {
	req, err := h.buildRequest(turn)
	if err != nil {
		return nil, err
	}

	respCh, errCh := h.model.Generate(turn.Context, req)

	var final *core.Message

	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if resp.Partial {
				if h.streaming {
					chunk := resp.Message
					chunk.Handler = h.id
					chunk.Turn = turn.Turn
					if err := turn.EmitMessage(chunk); err != nil {
						return nil, err
					}
				}
				continue
			}

			msg := resp.Message
			final = &msg
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, err
			}
		}
	}

	if final == nil {
		return nil, fmt.Errorf("model returned no completion")
	}

	final.Handler = h.id
	final.Turn = turn.Turn

	return final, nil
}

// buildRequest assembles the model request: rendered instructions, the
// windowed conversation history and the bound tool definitions.
func (h *ModelHandler) buildRequest(turn *core.TurnContext) (model.Request, error) {
	instructions, err := h.instruction.Resolve(turn)
	if err != nil {
		return model.Request{}, fmt.Errorf("resolve instruction: %w", err)
	}

	if turn.Session != nil {
		rendered, err := util.RenderTemplate(instructions, turn.Session.StateSnapshot())
		if err != nil {
			return model.Request{}, fmt.Errorf("render instruction: %w", err)
		}
		instructions = rendered
	}

	history := turn.History()
	if h.maxHistory > 0 && len(history) > h.maxHistory {
		history = history[len(history)-h.maxHistory:]
	}
	// never start the window on an orphaned tool result
	for len(history) > 0 && history[0].Role == core.RoleTool {
		history = history[1:]
	}

	req := model.Request{
		Instructions: instructions,
		Messages:     history,
		Stream:       h.streaming,
	}

	if len(h.toolNames) > 0 {
		defs := make([]model.ToolDefinition, 0, len(h.toolNames))
		for _, name := range h.toolNames {
			t := h.tools[name]
			defs = append(defs, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}
		req.Tools = defs
	}

	return req, nil
}

func (h *ModelHandler) spend(turn *core.TurnContext, n int) error {
	if turn.Budget == nil {
		return nil
	}
	for i := 0; i < n; i++ {
		if err := turn.Budget.Spend(); err != nil {
			return err
		}
	}
	return nil
}

// truncatedReply synthesizes the forced-termination answer. It is never
// empty, even when no tool produced a usable result.
func (h *ModelHandler) truncatedReply(turn *core.TurnContext, gathered []core.ToolResult) *core.Message {
	msg := core.NewAssistantMessage(h.id, turn.Turn, summarizeResults(gathered))
	msg.Metadata = map[string]any{"truncated": true}
	return &msg
}

func summarizeResults(gathered []core.ToolResult) string {
	if len(gathered) == 0 {
		return "I couldn't finish working on this request within the allowed number of steps. Please try again with a narrower question."
	}

	var b strings.Builder
	b.WriteString("I had to stop before finishing, but here is what I found so far:")
	for _, tr := range gathered {
		data, err := json.Marshal(tr.Payload)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n%s", data)
	}

	return b.String()
}
