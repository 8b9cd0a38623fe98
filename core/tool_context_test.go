package core

import "testing"

func TestToolContext_Surface(t *testing.T) {
	turnCtx, _, _ := newTurnContextForTest(&mockSessionStore{})
	tc := NewToolContext(turnCtx, "call-1")

	if tc.SessionID() != "sess-x" || tc.TurnID() != "turn-x" || tc.CallID() != "call-1" || tc.HandlerID() != "catalog" {
		t.Fatalf("identity accessors wrong: %s %s %s %s", tc.SessionID(), tc.TurnID(), tc.CallID(), tc.HandlerID())
	}

	tc.SetState("quote", 9.99)
	if v, ok := turnCtx.GetState("quote"); !ok || v.(float64) != 9.99 {
		t.Error("tool state writes should stage on the turn context")
	}

	if err := tc.Validate(); err != nil {
		t.Fatalf("expected valid context, got %v", err)
	}
}

func TestToolContext_Invalid(t *testing.T) {
	turnCtx, _, _ := newTurnContextForTest(&mockSessionStore{})

	tc := NewToolContext(turnCtx, "")
	if tc.IsValid() {
		t.Error("missing call ID should invalidate the context")
	}
	if err := tc.Validate(); err == nil {
		t.Error("Validate should reject a context without a call ID")
	}
}
