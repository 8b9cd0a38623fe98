package core

import (
	"errors"
	"time"
)

// HandoffRecord captures a single routing decision. Exactly one record is
// written per user turn, before the selected handler runs.
type HandoffRecord struct {
	// Turn is the turn number the decision belongs to.
	Turn int `json:"turn"`

	// Handler is the ID of the handler the turn was routed to.
	Handler string `json:"handler"`

	// Reason is a short, human-readable explanation of the decision, e.g.
	// "keyword match: order" or "continuation".
	Reason string `json:"reason"`

	// Continued reports whether the turn resumed an unfinished exchange with
	// the same handler instead of being classified fresh.
	Continued bool `json:"continued,omitempty"`

	// Timestamp is when the decision was made.
	Timestamp time.Time `json:"timestamp"`
}

// NewHandoffRecord returns a record for the given turn stamped with the
// current UTC time.
func NewHandoffRecord(turn int, handler, reason string) HandoffRecord {
	return HandoffRecord{
		Turn:      turn,
		Handler:   handler,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks that the record is complete enough to persist.
func (r HandoffRecord) Validate() error {
	if r.Turn <= 0 {
		return errors.New("handoff record requires a positive turn number")
	}

	if r.Handler == "" {
		return errors.New("handoff record requires a handler ID")
	}

	if r.Reason == "" {
		return errors.New("handoff record requires a reason")
	}

	return nil
}
