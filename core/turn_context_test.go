package core

import (
	"context"
	"errors"
	"testing"
)

type testLogger struct{}

func (l testLogger) Debug(string, ...interface{}) {}
func (l testLogger) Info(string, ...interface{})  {}
func (l testLogger) Warn(string, ...interface{})  {}
func (l testLogger) Error(string, ...interface{}) {}
func (l testLogger) Fatal(string, ...interface{}) {}

type mockSessionStore struct {
	applied  map[string]map[string]any
	appended []Message
	handoffs []HandoffRecord
	getErr   error
}

func (s *mockSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return NewSession(id), nil
}

func (s *mockSessionStore) AppendMessage(ctx context.Context, id string, msg Message) error {
	s.appended = append(s.appended, msg)
	return nil
}

func (s *mockSessionStore) AppendHandoff(ctx context.Context, id string, rec HandoffRecord) error {
	s.handoffs = append(s.handoffs, rec)
	return nil
}

func (s *mockSessionStore) ApplyDelta(ctx context.Context, id string, delta map[string]any) error {
	if s.applied == nil {
		s.applied = map[string]map[string]any{}
	}
	cp := map[string]any{}
	for k, v := range delta {
		cp[k] = v
	}
	s.applied[id] = cp
	return nil
}

func newTurnContextForTest(store SessionStore) (*TurnContext, chan Message, chan struct{}) {
	emit := make(chan Message, 5)
	resume := make(chan struct{}, 5)
	sess := NewSession("sess-x")
	tc := NewTurnContext(context.Background(), "sess-x", "turn-x", 1, "catalog", NewUserMessage(1, "hi"), 5, emit, resume, sess, store, testLogger{})
	return tc, emit, resume
}

func TestTurnContext_StateDeltaStaging(t *testing.T) {
	store := &mockSessionStore{}
	tc, _, _ := newTurnContextForTest(store)

	tc.Session.SetState("persisted", "old")
	tc.SetState("staged", 42)

	if v, ok := tc.GetState("staged"); !ok || v.(int) != 42 {
		t.Fatal("staged value should win before commit")
	}
	if v, ok := tc.GetState("persisted"); !ok || v.(string) != "old" {
		t.Fatal("persisted value should be visible through the context")
	}

	if err := tc.CommitStateDelta(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(tc.StateDelta) != 0 {
		t.Error("delta buffer should be cleared after commit")
	}
	if store.applied["sess-x"]["staged"] != 42 {
		t.Errorf("delta not applied to store: %+v", store.applied)
	}
}

func TestTurnContext_EmitMessageFlushesDelta(t *testing.T) {
	store := &mockSessionStore{}
	tc, emit, _ := newTurnContextForTest(store)

	tc.SetState("cart", []string{"track-1"})

	msg := NewAssistantMessage("catalog", 1, "found it")
	if err := tc.EmitMessage(msg); err != nil {
		t.Fatalf("emit: %v", err)
	}

	select {
	case got := <-emit:
		if got.ID != msg.ID {
			t.Errorf("wrong message emitted: %+v", got)
		}
	default:
		t.Fatal("message was not emitted")
	}

	if _, ok := store.applied["sess-x"]; !ok {
		t.Error("staged delta should be committed before the message is sent")
	}
}

func TestTurnContext_EmitMessageCancelled(t *testing.T) {
	store := &mockSessionStore{}
	emit := make(chan Message) // unbuffered, nobody reading
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tc := NewTurnContext(ctx, "sess-x", "turn-x", 1, "catalog", NewUserMessage(1, "hi"), 5, emit, nil, NewSession("sess-x"), store, testLogger{})

	if err := tc.EmitMessage(NewAssistantMessage("catalog", 1, "x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTurnContext_WaitForResume(t *testing.T) {
	tc, _, resume := newTurnContextForTest(&mockSessionStore{})

	resume <- struct{}{}
	if err := tc.WaitForResume(); err != nil {
		t.Fatalf("resume: %v", err)
	}

	tc.Resume = nil
	if err := tc.WaitForResume(); err != nil {
		t.Fatalf("nil resume channel should be a no-op, got %v", err)
	}
}

func TestTurnContext_RefreshSessionError(t *testing.T) {
	store := &mockSessionStore{getErr: errors.New("db down")}
	tc, _, _ := newTurnContextForTest(store)

	if err := tc.RefreshSession(); err == nil {
		t.Fatal("expected refresh error to propagate")
	}
}

func TestToolBudget(t *testing.T) {
	b := NewToolBudget(2)

	if err := b.Spend(); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	if err := b.Spend(); err != nil {
		t.Fatalf("second spend: %v", err)
	}
	if got := b.Remaining(); got != 0 {
		t.Errorf("expected 0 remaining, got %d", got)
	}

	err := b.Spend()
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
	if got := b.Spent(); got != 2 {
		t.Errorf("failed spend must not count, spent = %d", got)
	}

	unlimited := NewToolBudget(0)
	for i := 0; i < 100; i++ {
		if err := unlimited.Spend(); err != nil {
			t.Fatalf("unlimited budget errored at %d: %v", i, err)
		}
	}
	if unlimited.Remaining() != -1 {
		t.Error("unlimited budget should report -1 remaining")
	}
}
