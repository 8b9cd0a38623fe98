package handler

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/tool"
)

// executor runs a batch of tool calls, in parallel when the model issued more
// than one, and returns exactly one result per call. Implementations of tools
// may fail or panic; both surface as error results so the poll loop can feed
// them back to the model instead of crashing the turn.
type executor struct {
	maxParallel int
}

func newExecutor(maxParallel int) *executor {
	return &executor{maxParallel: maxParallel}
}

// Execute resolves and invokes every call against the registry. Results line
// up with calls by index so emitted tool result messages keep the model's
// call order.
func (e *executor) Execute(turn *core.TurnContext, registry map[string]tool.Tool, calls []core.ToolCall) []core.ToolResult {
	results := make([]core.ToolResult, len(calls))

	if len(calls) == 1 {
		results[0] = e.executeOne(turn, registry, calls[0])
		return results
	}

	limit := e.maxParallel
	if limit <= 0 || limit > len(calls) {
		limit = len(calls)
	}

	g, gctx := errgroup.WithContext(turn.Context)
	g.SetLimit(limit)

	start := time.Now()
	for i, call := range calls {
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = errorResult(call, gctx.Err())
				return nil
			}
			results[i] = e.executeOne(turn, registry, call)
			return nil
		})
	}

	// workers never return errors; failures land in the results
	_ = g.Wait()

	turn.LogDebug(
		"handler.tools.batch.complete",
		"count", len(calls),
		"parallelism", limit,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return results
}

func (e *executor) executeOne(turn *core.TurnContext, registry map[string]tool.Tool, call core.ToolCall) (result core.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			turn.LogError("handler.tool.panic", "tool", call.Name, "recover", fmt.Sprintf("%v", r), "stack", string(debug.Stack()))
			result = errorResult(call, fmt.Errorf("tool %s panicked", call.Name))
		}
	}()

	impl, ok := registry[call.Name]
	if !ok {
		return errorResult(call, fmt.Errorf("tool %q is not bound to this handler", call.Name))
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errorResult(call, fmt.Errorf("malformed tool arguments: %w", err))
		}
	}

	start := time.Now()
	payload, err := impl.Call(core.NewToolContext(turn, call.ID), args)
	dur := time.Since(start)

	turn.LogInfo(
		"handler.tool.executed",
		"tool", call.Name,
		"call_id", call.ID,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)

	if err != nil {
		return errorResult(call, err)
	}

	return core.ToolResult{ID: call.ID, Name: call.Name, Status: core.StatusOK, Payload: payload}
}

func errorResult(call core.ToolCall, err error) core.ToolResult {
	return core.ToolResult{ID: call.ID, Name: call.Name, Status: core.StatusError, Error: err.Error()}
}
