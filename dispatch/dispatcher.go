package dispatch

import (
	"github.com/hupe1980/tunedesk/core"
)

// Handoff reasons recorded on every routing decision.
const (
	ReasonContinuation = "continuation"
	ReasonClassified   = "classified"
	ReasonFallback     = "fallback"
)

// Options configures a Dispatcher.
//
// Use functional options with New to override defaults.
type Options struct {
	// Priority breaks classification ties; earlier ids win. Handlers not
	// listed rank behind all listed ones.
	Priority []string
	// Fallback receives turns no capability matched. Routing never fails, so
	// the fallback should be a handler that can make sense of anything; the
	// read-only query handler is the conventional choice.
	Fallback string
}

// Dispatcher selects which handler owns a user turn.
//
// Routing is deterministic and never aborts a turn:
//
//  1. Continuation: if the previous turn's handoff left no final assistant
//     answer behind, the same handler gets the turn back.
//  2. Classification: the user text is scored against each registered
//     capability; the highest keyword score wins, ties broken by priority.
//  3. Fallback: a zero top score routes to the fallback handler.
type Dispatcher struct {
	capabilities map[string]core.Capability
	order        []string // registration order for deterministic iteration
	priority     []string
	fallback     string
}

// New creates a Dispatcher with the default policy: order beats query beats
// catalog on ties, and unmatched turns fall back to the query handler.
func New(optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		Priority: []string{"order", "query", "catalog"},
		Fallback: "query",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Dispatcher{
		capabilities: make(map[string]core.Capability),
		priority:     opts.Priority,
		fallback:     opts.Fallback,
	}
}

// Register adds a handler's capability to the routing table. Registering the
// same id again replaces the capability.
func (d *Dispatcher) Register(h core.Handler) {
	id := h.ID()
	if _, exists := d.capabilities[id]; !exists {
		d.order = append(d.order, id)
	}
	d.capabilities[id] = h.Capability()
}

// Fallback returns the configured fallback handler id.
func (d *Dispatcher) Fallback() string { return d.fallback }

// Route decides which handler owns the new user turn and returns the handoff
// record for the engine to persist. Exactly one record is produced per turn.
func (d *Dispatcher) Route(sess *core.Session, turn int, userText string) core.HandoffRecord {
	// Continuation takes precedence over reclassification: an unfinished
	// tool loop stays with its owner.
	if last, ok := sess.LastHandoff(); ok {
		if _, registered := d.capabilities[last.Handler]; registered && !turnCompleted(sess, last.Turn) {
			rec := core.NewHandoffRecord(turn, last.Handler, ReasonContinuation)
			rec.Continued = true
			return rec
		}
	}

	if id, score := d.classify(userText); score > 0 {
		return core.NewHandoffRecord(turn, id, ReasonClassified)
	}

	return core.NewHandoffRecord(turn, d.fallback, ReasonFallback)
}

// classify scores the text against every registered capability and returns
// the winner. Ties go to the higher-priority handler; handlers sharing a
// rank keep registration order.
func (d *Dispatcher) classify(text string) (string, int) {
	bestID := ""
	bestScore := 0

	for _, id := range d.order {
		score := d.capabilities[id].Score(text)
		if score == 0 {
			continue
		}

		switch {
		case score > bestScore:
			bestID, bestScore = id, score
		case score == bestScore && d.rank(id) < d.rank(bestID):
			bestID = id
		}
	}

	return bestID, bestScore
}

func (d *Dispatcher) rank(id string) int {
	for i, p := range d.priority {
		if p == id {
			return i
		}
	}
	return len(d.priority)
}

// turnCompleted reports whether the given turn produced a final assistant
// answer. A turn that died mid tool loop has none.
func turnCompleted(sess *core.Session, turn int) bool {
	for _, msg := range sess.TurnMessages(turn) {
		if msg.IsFinalAnswer() {
			return true
		}
	}
	return false
}
