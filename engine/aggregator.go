package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/tunedesk/core"
)

// Aggregator composes the single user-facing reply that closes a turn. It
// receives every message checkpointed during the turn plus the handler's
// final message and must return a non-empty assistant message with no tool
// call syntax in its text.
type Aggregator interface {
	Compose(turnMessages []core.Message, final *core.Message) core.Message
}

// ComposeFunc adapts a plain function to the Aggregator interface.
type ComposeFunc func(turnMessages []core.Message, final *core.Message) core.Message

// Compose calls the wrapped function.
func (f ComposeFunc) Compose(turnMessages []core.Message, final *core.Message) core.Message {
	return f(turnMessages, final)
}

// DefaultAggregator uses the handler's final text verbatim. When that text
// is empty it renders a plain-line summary from the turn's successful tool
// results, and as a last resort returns a short apology so the reply is
// never empty.
type DefaultAggregator struct{}

// NewDefaultAggregator constructs the stock aggregator.
func NewDefaultAggregator() *DefaultAggregator { return &DefaultAggregator{} }

var _ Aggregator = (*DefaultAggregator)(nil)

// Compose implements the Aggregator interface.
func (a *DefaultAggregator) Compose(turnMessages []core.Message, final *core.Message) core.Message {
	var (
		handler string
		turn    int
	)

	if final != nil {
		handler = final.Handler
		turn = final.Turn

		if strings.TrimSpace(final.Text()) != "" {
			return *final
		}
	}

	if summary := summarizeToolResults(turnMessages); summary != "" {
		return core.NewAssistantMessage(handler, turn, summary)
	}

	return core.NewAssistantMessage(handler, turn,
		"I wasn't able to work out an answer for this request. Please try rephrasing it.")
}

// summarizeToolResults renders the turn's ok tool results as plain lines.
// Returns "" when the turn produced none.
func summarizeToolResults(turnMessages []core.Message) string {
	var lines []string

	for _, msg := range turnMessages {
		for _, tr := range msg.ToolResults() {
			if tr.Status != core.StatusOK {
				continue
			}

			payload, err := json.Marshal(tr.Payload)
			if err != nil {
				continue
			}

			lines = append(lines, fmt.Sprintf("%s: %s", tr.Name, payload))
		}
	}

	if len(lines) == 0 {
		return ""
	}

	return "Here is what I found:\n" + strings.Join(lines, "\n")
}
