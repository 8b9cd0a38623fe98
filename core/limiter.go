package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBudgetExhausted is returned by Spend once a turn has used up its tool
// invocation allowance.
var ErrBudgetExhausted = errors.New("tool budget exhausted")

// ToolBudget caps the number of tool invocations a single turn may spend.
type ToolBudget struct {
	max   int
	spent int
	mu    sync.Mutex
}

// NewToolBudget creates a budget with a maximum number of tool invocations.
// If max == 0, the budget is unlimited.
func NewToolBudget(max int) *ToolBudget {
	return &ToolBudget{max: max}
}

// Spend reserves one tool invocation and returns ErrBudgetExhausted once the
// ceiling is reached. A failed Spend leaves the counter untouched, so a turn
// never executes past its ceiling.
func (b *ToolBudget) Spend() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.spent >= b.max {
		return fmt.Errorf("%w: max %d tool invocations per turn", ErrBudgetExhausted, b.max)
	}
	b.spent++

	return nil
}

// Spent returns the number of tool invocations used so far.
func (b *ToolBudget) Spent() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.spent
}

// Remaining returns how many tool invocations are left before the ceiling.
func (b *ToolBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max == 0 {
		return -1 // unlimited
	}

	return b.max - b.spent
}
