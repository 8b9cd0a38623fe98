package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/dispatch"
	"github.com/hupe1980/tunedesk/session"
)

// scriptedHandler drives the emit/resume protocol without a model: it emits
// one tool-call round trip and returns a fixed final answer.
type scriptedHandler struct {
	id       string
	keywords []string

	finalText string
	runErr    error

	emitPartial bool
	blockOnCtx  bool
}

func (h *scriptedHandler) ID() string { return h.id }

func (h *scriptedHandler) Capability() core.Capability {
	return core.Capability{Description: h.id, Keywords: h.keywords}
}

func (h *scriptedHandler) Run(turn *core.TurnContext) (*core.Message, error) {
	if h.blockOnCtx {
		<-turn.Done()

		return nil, turn.Err()
	}

	if h.runErr != nil {
		return nil, h.runErr
	}

	call := core.NewMessage(core.RoleAssistant, h.id, turn.Turn)
	call.Parts = []core.Part{core.ToolCallPart{ToolCall: core.ToolCall{ID: "c1", Name: "probe", Arguments: "{}"}}}

	if err := turn.EmitMessage(call); err != nil {
		return nil, err
	}

	if err := turn.WaitForResume(); err != nil {
		return nil, err
	}

	if h.emitPartial {
		chunk := core.NewMessage(core.RoleAssistant, h.id, turn.Turn)
		chunk.Partial = true
		chunk.Parts = []core.Part{core.TextPart{Text: "thinking"}}

		if err := turn.EmitMessage(chunk); err != nil {
			return nil, err
		}
	}

	res := core.NewMessage(core.RoleTool, h.id, turn.Turn)
	res.Parts = []core.Part{core.ToolResultPart{ToolResult: core.ToolResult{
		ID: "c1", Name: "probe", Status: core.StatusOK, Payload: map[string]any{"answer": 42},
	}}}

	if err := turn.EmitMessage(res); err != nil {
		return nil, err
	}

	if err := turn.WaitForResume(); err != nil {
		return nil, err
	}

	final := core.NewAssistantMessage(h.id, turn.Turn, h.finalText)

	return &final, nil
}

var _ core.Handler = (*scriptedHandler)(nil)

// flakyStore wraps the in-memory store and fails AppendMessage once the
// write counter passes failAfter.
type flakyStore struct {
	core.SessionStore

	mu        sync.Mutex
	writes    int
	failAfter int
}

func (s *flakyStore) AppendMessage(ctx context.Context, sessionID string, msg core.Message) error {
	s.mu.Lock()
	s.writes++
	fail := s.writes > s.failAfter
	s.mu.Unlock()

	if fail {
		return errors.New("disk full")
	}

	return s.SessionStore.AppendMessage(ctx, sessionID, msg)
}

func newTestEngine(optFns ...func(o *Options)) (*Engine, *session.InMemoryStore) {
	store := session.NewInMemoryStore()

	defaults := func(o *Options) {
		o.Sessions = store
	}

	eng := New(append([]func(o *Options){defaults}, optFns...)...)

	eng.Register(&scriptedHandler{
		id:        "catalog",
		keywords:  []string{"track", "tracks", "genre", "music"},
		finalText: "Here are some tracks.",
	})
	eng.Register(&scriptedHandler{
		id:        "order",
		keywords:  []string{"buy", "order", "purchase"},
		finalText: "Order placed.",
	})
	eng.Register(&scriptedHandler{
		id:        "query",
		keywords:  []string{"how", "many", "count", "invoices"},
		finalText: "The database says 7.",
	})

	return eng, store
}

func TestEngine_HandleTurn(t *testing.T) {
	eng, store := newTestEngine()
	ctx := context.Background()

	reply, err := eng.HandleTurn(ctx, "s1", "show me some jazz tracks")
	require.NoError(t, err)
	assert.Equal(t, "Here are some tracks.", reply)

	sess, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	// user message, tool call, tool result, aggregated reply
	msgs := sess.TurnMessages(1)
	require.Len(t, msgs, 4)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Len(t, msgs[1].ToolCalls(), 1)
	assert.Len(t, msgs[2].ToolResults(), 1)
	assert.True(t, msgs[3].IsFinalAnswer())
	assert.Equal(t, "Here are some tracks.", msgs[3].Text())

	rec, ok := sess.LastHandoff()
	require.True(t, ok)
	assert.Equal(t, "catalog", rec.Handler)
	assert.Equal(t, 1, rec.Turn)
	assert.False(t, rec.Continued)
}

func TestEngine_ProcessTurn_StreamOrder(t *testing.T) {
	eng, store := newTestEngine()
	ctx := context.Background()

	eng.Register(&scriptedHandler{
		id:          "catalog",
		keywords:    []string{"track", "tracks", "genre", "music"},
		finalText:   "Here are some tracks.",
		emitPartial: true,
	})

	turnID, msgs, errs, err := eng.ProcessTurn(ctx, "s1", "any good tracks?")
	require.NoError(t, err)
	require.NotEmpty(t, turnID)

	var got []core.Message
	for msg := range msgs {
		got = append(got, msg)
	}

	require.NoError(t, <-errs)
	require.Len(t, got, 4)

	assert.Len(t, got[0].ToolCalls(), 1)
	assert.True(t, got[1].Partial)
	assert.Len(t, got[2].ToolResults(), 1)
	assert.True(t, got[3].IsFinalAnswer())

	// The partial chunk is forwarded but never checkpointed.
	sess, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	for _, msg := range sess.AllMessages() {
		assert.False(t, msg.Partial)
	}

	assert.Len(t, sess.TurnMessages(1), 4)
}

func TestEngine_SecondTurnIncrementsTurnNumber(t *testing.T) {
	eng, store := newTestEngine()
	ctx := context.Background()

	_, err := eng.HandleTurn(ctx, "s1", "find me rock tracks")
	require.NoError(t, err)

	reply, err := eng.HandleTurn(ctx, "s1", "how many invoices are there?")
	require.NoError(t, err)
	assert.Equal(t, "The database says 7.", reply)

	sess, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.CurrentTurn())

	recs := sess.AllHandoffs()
	require.Len(t, recs, 2)
	assert.Equal(t, "catalog", recs[0].Handler)
	assert.Equal(t, "query", recs[1].Handler)
}

func TestEngine_ContinuationAfterFailedTurn(t *testing.T) {
	eng, store := newTestEngine()
	ctx := context.Background()

	eng.Register(&scriptedHandler{
		id:       "order",
		keywords: []string{"buy", "order", "purchase"},
		runErr:   errors.New("model unavailable"),
	})

	_, err := eng.HandleTurn(ctx, "s1", "I want to buy these tracks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler order")

	// Restore a working order handler. The unfinished turn pins routing.
	eng.Register(&scriptedHandler{
		id:        "order",
		keywords:  []string{"buy", "order", "purchase"},
		finalText: "Order placed.",
	})

	reply, err := eng.HandleTurn(ctx, "s1", "yes, go ahead")
	require.NoError(t, err)
	assert.Equal(t, "Order placed.", reply)

	sess, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	recs := sess.AllHandoffs()
	require.Len(t, recs, 2)
	assert.Equal(t, "order", recs[1].Handler)
	assert.True(t, recs[1].Continued)
	assert.Equal(t, 2, recs[1].Turn)
}

func TestEngine_CheckpointFailureWithholdsReply(t *testing.T) {
	store := &flakyStore{SessionStore: session.NewInMemoryStore(), failAfter: 3}

	eng, _ := newTestEngine(func(o *Options) {
		o.Sessions = store
	})

	// Writes: user msg (1), tool call (2), tool result (3), reply (4) fails.
	_, err := eng.HandleTurn(context.Background(), "s1", "find me some music")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint failed")
}

func TestEngine_HandlerErrorSurfaced(t *testing.T) {
	eng, store := newTestEngine()

	eng.Register(&scriptedHandler{
		id:       "catalog",
		keywords: []string{"track", "tracks", "genre", "music"},
		runErr:   errors.New("boom"),
	})

	_, err := eng.HandleTurn(context.Background(), "s1", "any tracks?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler catalog")
	assert.Contains(t, err.Error(), "boom")

	// The user message and handoff were checkpointed before the failure.
	sess, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, sess.TurnMessages(1), 1)

	_, ok := sess.LastHandoff()
	assert.True(t, ok)
}

func TestEngine_StopTurn(t *testing.T) {
	eng, _ := newTestEngine()

	eng.Register(&scriptedHandler{
		id:         "catalog",
		keywords:   []string{"track", "tracks", "genre", "music"},
		blockOnCtx: true,
	})

	turnID, msgs, errs, err := eng.ProcessTurn(context.Background(), "s1", "tracks please")
	require.NoError(t, err)

	require.True(t, eng.StopTurn(turnID))

	for range msgs {
	}

	err = <-errs
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The turn is gone from the active set.
	assert.False(t, eng.StopTurn(turnID))
}

func TestEngine_InputValidation(t *testing.T) {
	eng, _ := newTestEngine()

	_, _, _, err := eng.ProcessTurn(context.Background(), "", "hi")
	require.Error(t, err)

	_, _, _, err = eng.ProcessTurn(context.Background(), "s1", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user text")
}

func TestEngine_UnregisteredFallbackHandler(t *testing.T) {
	store := session.NewInMemoryStore()

	eng := New(func(o *Options) {
		o.Sessions = store
		o.Dispatcher = dispatch.New()
	})

	eng.Register(&scriptedHandler{
		id:        "catalog",
		keywords:  []string{"track"},
		finalText: "tracks",
	})

	// "blargh" classifies to the fallback "query", which nobody registered.
	_, _, _, err := eng.ProcessTurn(context.Background(), "s1", "blargh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `handler "query" is not registered`)
}

func TestEngine_Hooks(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)

	record := func(typ HookType) *HookFunc {
		return NewHookFunc(typ, func(_ context.Context, hc *HookContext) error {
			mu.Lock()
			defer mu.Unlock()

			events = append(events, fmt.Sprintf("%s:%s", typ, hc.Handler))

			return nil
		})
	}

	eng, _ := newTestEngine(func(o *Options) {
		o.Hooks = []Hook{
			record(HookTurnDispatched),
			record(HookMessagePersisted),
			record(HookTurnCompleted),
		}
	})

	_, err := eng.HandleTurn(context.Background(), "s1", "show me tracks")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	// dispatched, persisted tool call, persisted tool result, persisted
	// reply, completed.
	require.Len(t, events, 5)
	assert.Equal(t, "turn_dispatched:catalog", events[0])
	assert.Equal(t, "turn_completed:catalog", events[4])

	for _, ev := range events[1:4] {
		assert.True(t, strings.HasPrefix(ev, "message_persisted:"), ev)
	}
}

func TestEngine_DispatchHookVeto(t *testing.T) {
	veto := NewHookFunc(HookTurnDispatched, func(_ context.Context, hc *HookContext) error {
		if hc.Handler == "order" {
			return errors.New("orders are disabled")
		}

		return nil
	})

	eng, _ := newTestEngine(func(o *Options) {
		o.Hooks = []Hook{veto}
	})

	_, err := eng.HandleTurn(context.Background(), "s1", "buy this track for me")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "turn vetoed")

	// Other handlers still run.
	reply, err := eng.HandleTurn(context.Background(), "s1", "how many invoices?")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}

func TestEngine_SessionsRunIndependently(t *testing.T) {
	eng, _ := newTestEngine()

	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			sessionID := fmt.Sprintf("s%d", n)

			reply, err := eng.HandleTurn(context.Background(), sessionID, "show me tracks")
			assert.NoError(t, err)
			assert.Equal(t, "Here are some tracks.", reply)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent sessions did not finish")
	}
}

func TestEngine_SameSessionTurnsSerialize(t *testing.T) {
	eng, store := newTestEngine()

	const turns = 4

	var wg sync.WaitGroup

	for i := 0; i < turns; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			reply, err := eng.HandleTurn(context.Background(), "s1", "show me tracks")
			assert.NoError(t, err)
			assert.Equal(t, "Here are some tracks.", reply)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("same-session turns did not finish")
	}

	sess, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)

	// turns ran one at a time: dense turn numbers, four checkpoints each
	assert.Equal(t, turns, sess.CurrentTurn())
	require.Len(t, sess.AllHandoffs(), turns)

	for i := 1; i <= turns; i++ {
		assert.Len(t, sess.TurnMessages(i), 4, "turn %d", i)
	}
}
