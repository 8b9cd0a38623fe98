package core

import "strings"

// Handler is the contract every domain specialist implements.
//
// Handlers are the processing units of the engine. Exactly one handler owns a
// user turn: the dispatcher selects it, the engine drives it with a
// TurnContext, and its final message feeds the aggregator.
//
// Implementations must:
//   - Respect context cancellation for graceful shutdown
//   - Emit intermediate messages through the provided TurnContext
//   - Return a final, non-partial message or an error, never both nil
type Handler interface {
	ID() string
	Capability() Capability
	Run(turn *TurnContext) (*Message, error)
}

// Capability describes what a handler is good at. The dispatcher matches the
// keywords against incoming user text; the description feeds prompts and logs.
type Capability struct {
	Description string
	Keywords    []string
}

// Score counts how many capability keywords occur in the given text as whole
// words. Matching is case-insensitive; repeated words count once.
func (c Capability) Score(text string) int {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})

	words := make(map[string]bool, len(fields))
	for _, f := range fields {
		words[f] = true
	}

	score := 0
	for _, kw := range c.Keywords {
		if words[strings.ToLower(kw)] {
			score++
		}
	}

	return score
}

// Matches reports whether any capability keyword occurs in the text.
func (c Capability) Matches(text string) bool { return c.Score(text) > 0 }
