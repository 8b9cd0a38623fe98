package core

import "testing"

func TestSession_ApplyStateDeltaAndClone(t *testing.T) {
	s := NewSession("s1")

	delta := map[string]any{"a": 1, "b": "x"}

	s.ApplyStateDelta(delta)
	if v, ok := s.GetState("a"); !ok || v.(int) != 1 {
		t.Fatalf("State not applied: %+v", s.State)
	}

	clone := s.Clone()
	if clone == s {
		t.Error("Clone should be a different pointer")
	}

	clone.SetState("c", 2)
	if _, exists := s.GetState("c"); exists {
		t.Error("Original should not have clone's new key")
	}
}

func TestSession_AddMessageAndHistory(t *testing.T) {
	s := NewSession("s2")
	s.AddMessage(NewAssistantMessage("query", 1, "hello"))
	s.AddMessage(NewUserMessage(1, "hi"))

	partial := NewAssistantMessage("query", 1, "strea")
	partial.Partial = true
	s.AddMessage(partial)

	all := s.AllMessages()
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}

	orig := all[0].Handler
	all[0].Handler = "changed"
	if s.AllMessages()[0].Handler != orig {
		t.Error("messages slice should be copied on read")
	}

	history := s.History()
	if len(history) != 2 {
		t.Fatalf("expected partials excluded from history, got %d messages", len(history))
	}

	foundUser := false
	for _, msg := range history {
		if msg.Role == RoleUser {
			foundUser = true
		}
	}
	if !foundUser {
		t.Error("expected user message in history")
	}
}

func TestSession_TurnAccounting(t *testing.T) {
	s := NewSession("s3")
	if s.CurrentTurn() != 0 {
		t.Fatalf("fresh session should be at turn 0, got %d", s.CurrentTurn())
	}

	s.AddMessage(NewUserMessage(1, "first"))
	s.AddMessage(NewAssistantMessage("catalog", 1, "done"))
	s.AddMessage(NewUserMessage(2, "second"))

	if got := s.CurrentTurn(); got != 2 {
		t.Fatalf("expected current turn 2, got %d", got)
	}

	turn1 := s.TurnMessages(1)
	if len(turn1) != 2 {
		t.Fatalf("expected 2 messages for turn 1, got %d", len(turn1))
	}
	for _, msg := range turn1 {
		if msg.Turn != 1 {
			t.Errorf("turn filter leaked message from turn %d", msg.Turn)
		}
	}
}

func TestSession_LastHandoff(t *testing.T) {
	s := NewSession("s4")
	if _, ok := s.LastHandoff(); ok {
		t.Fatal("fresh session should have no handoffs")
	}

	s.AddHandoff(NewHandoffRecord(1, "catalog", "keyword match: tracks"))
	s.AddHandoff(NewHandoffRecord(2, "order", "keyword match: order"))

	last, ok := s.LastHandoff()
	if !ok || last.Handler != "order" || last.Turn != 2 {
		t.Fatalf("unexpected last handoff: %+v ok=%v", last, ok)
	}

	recs := s.AllHandoffs()
	recs[0].Handler = "changed"
	if s.AllHandoffs()[0].Handler != "catalog" {
		t.Error("handoffs slice should be copied on read")
	}
}
