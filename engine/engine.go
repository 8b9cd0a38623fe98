package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/dispatch"
	"github.com/hupe1980/tunedesk/logging"
	"github.com/hupe1980/tunedesk/session"
)

// Config tunes turn execution.
type Config struct {
	// MaxToolCallsPerTurn caps the tool invocations a handler may spend
	// during one turn. Zero or negative means unlimited.
	MaxToolCallsPerTurn int

	// MessageBufferSize sets the capacity of the message channels between
	// handler, pump and caller.
	MessageBufferSize int
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		MaxToolCallsPerTurn: 5,
		MessageBufferSize:   64,
	}
}

// Options configure the engine.
type Options struct {
	// Config holds the execution limits. Defaults to DefaultConfig().
	Config Config

	// Sessions persists history, state and routing records. Defaults to an
	// in-memory store.
	Sessions core.SessionStore

	// Dispatcher routes turns to handlers. Defaults to dispatch.New().
	Dispatcher *dispatch.Dispatcher

	// Aggregator composes the user-facing reply. Defaults to
	// NewDefaultAggregator().
	Aggregator Aggregator

	// Logger receives structured engine logs. Defaults to a no-op logger.
	Logger logging.Logger

	// Hooks subscribe to turn lifecycle events.
	Hooks []Hook
}

// Engine executes user turns: it routes each turn to exactly one handler,
// pumps the handler's messages through the session checkpoint, and closes
// the turn with an aggregated reply. It implements core.Engine.
//
// Turns on the same session run strictly one after another; turns on
// different sessions run concurrently.
type Engine struct {
	config     Config
	sessions   core.SessionStore
	dispatcher *dispatch.Dispatcher
	aggregator Aggregator
	logger     logging.Logger
	hooks      *hookSet

	mu       sync.RWMutex
	handlers map[string]core.Handler

	gatesMu sync.Mutex
	gates   map[string]chan struct{}

	activeMu sync.Mutex
	active   map[string]context.CancelFunc
}

var _ core.Engine = (*Engine)(nil)

// New constructs an engine with the provided options.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}

	if opts.Dispatcher == nil {
		opts.Dispatcher = dispatch.New()
	}

	if opts.Aggregator == nil {
		opts.Aggregator = NewDefaultAggregator()
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Config.MessageBufferSize <= 0 {
		opts.Config.MessageBufferSize = DefaultConfig().MessageBufferSize
	}

	hooks := newHookSet()
	for _, h := range opts.Hooks {
		hooks.register(h)
	}

	return &Engine{
		config:     opts.Config,
		sessions:   opts.Sessions,
		dispatcher: opts.Dispatcher,
		aggregator: opts.Aggregator,
		logger:     opts.Logger,
		hooks:      hooks,
		handlers:   make(map[string]core.Handler),
		gates:      make(map[string]chan struct{}),
		active:     make(map[string]context.CancelFunc),
	}
}

// Register makes a handler routable. Registering a handler whose ID is
// already taken replaces the previous one.
func (e *Engine) Register(h core.Handler) {
	e.mu.Lock()
	e.handlers[h.ID()] = h
	e.mu.Unlock()

	e.dispatcher.Register(h)
}

// handler looks up a registered handler by ID.
func (e *Engine) handler(id string) (core.Handler, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h, ok := e.handlers[id]

	return h, ok
}

// GetSession returns a snapshot of the identified session, empty when the
// id has never been seen.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*core.Session, error) {
	return e.sessions.Get(ctx, sessionID)
}

// StopTurn cancels a running turn. It returns false when the turn is not
// active (finished or unknown).
func (e *Engine) StopTurn(turnID string) bool {
	e.activeMu.Lock()
	cancel, ok := e.active[turnID]
	e.activeMu.Unlock()

	if ok {
		cancel()
	}

	return ok
}

// ProcessTurn starts one asynchronous turn. It checkpoints the user message
// and the routing decision synchronously, then spawns the handler and the
// message pump. The returned message channel carries every non-partial
// message in checkpoint order plus any streaming chunks, ending with the
// aggregated reply; the error channel carries at most one terminal error.
// Both channels are closed when the turn ends.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, userText string) (string, <-chan core.Message, <-chan error, error) {
	if sessionID == "" {
		return "", nil, nil, fmt.Errorf("session ID must not be empty")
	}

	if strings.TrimSpace(userText) == "" {
		return "", nil, nil, fmt.Errorf("user text must not be empty")
	}

	// One logical thread of control per session: the gate is acquired here
	// and released by the turn goroutine when the turn ends.
	gate := e.sessionGate(sessionID)
	select {
	case gate <- struct{}{}:
	case <-ctx.Done():
		return "", nil, nil, ctx.Err()
	}

	turnID, out, errs, err := e.startTurn(ctx, sessionID, userText, gate)
	if err != nil {
		<-gate

		return "", nil, nil, err
	}

	return turnID, out, errs, nil
}

// startTurn runs the synchronous turn prologue (checkpoint user message,
// route, checkpoint handoff) and spawns the handler and pump goroutines.
// The caller holds the session gate; on success ownership of the gate moves
// to the pump goroutine.
func (e *Engine) startTurn(ctx context.Context, sessionID, userText string, gate chan struct{}) (string, chan core.Message, chan error, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	turn := sess.CurrentTurn() + 1
	turnID := core.NewID()

	e.logTurnState(sessionID, turnID, turn, "", "dispatching")

	userMsg := core.NewUserMessage(turn, userText)
	if err := e.sessions.AppendMessage(ctx, sessionID, userMsg); err != nil {
		return "", nil, nil, fmt.Errorf("checkpoint failed: %w", err)
	}

	rec := e.dispatcher.Route(sess, turn, userText)
	if err := rec.Validate(); err != nil {
		return "", nil, nil, fmt.Errorf("routing produced an invalid handoff: %w", err)
	}

	if err := e.sessions.AppendHandoff(ctx, sessionID, rec); err != nil {
		return "", nil, nil, fmt.Errorf("checkpoint failed: %w", err)
	}

	h, ok := e.handler(rec.Handler)
	if !ok {
		return "", nil, nil, fmt.Errorf("handler %q is not registered", rec.Handler)
	}

	e.logger.Info("turn dispatched",
		"session_id", sessionID,
		"turn_id", turnID,
		"turn", turn,
		"handler", rec.Handler,
		"reason", rec.Reason,
		"continued", rec.Continued,
	)

	hc := &HookContext{SessionID: sessionID, TurnID: turnID, Turn: turn, Handler: rec.Handler, Handoff: &rec}
	if err := e.hooks.fire(ctx, HookTurnDispatched, hc); err != nil {
		return "", nil, nil, fmt.Errorf("turn vetoed: %w", err)
	}

	// Refetch so the handler sees the user message and handoff just written.
	sess, err = e.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	var (
		emit   = make(chan core.Message, e.config.MessageBufferSize)
		resume = make(chan struct{}, 1)
		out    = make(chan core.Message, e.config.MessageBufferSize)
		errs   = make(chan error, 1)
		result = make(chan turnResult, 1)
	)

	turnCtx, cancel := context.WithCancel(ctx)
	e.trackTurn(turnID, cancel)

	tc := core.NewTurnContext(turnCtx, sessionID, turnID, turn, h.ID(), userMsg,
		e.config.MaxToolCallsPerTurn, emit, resume, sess, e.sessions, e.logger)

	tr := &turnRun{
		engine:    e,
		sessionID: sessionID,
		turnID:    turnID,
		turn:      turn,
		handlerID: h.ID(),
		emit:      emit,
		resume:    resume,
		out:       out,
		errs:      errs,
		result:    result,
	}

	e.logTurnState(sessionID, turnID, turn, h.ID(), "handler_active")

	go func() {
		defer close(emit)

		final, err := h.Run(tc)
		result <- turnResult{final: final, err: err}
	}()

	go func() {
		// clearTurn and cancel run before the channels close so that a
		// caller that drained both channels observes the turn as inactive.
		defer func() {
			e.clearTurn(turnID)
			cancel()
			close(out)
			close(errs)
			<-gate
		}()

		tr.run(turnCtx)

		e.logTurnState(sessionID, turnID, turn, h.ID(), "idle")
	}()

	return turnID, out, errs, nil
}

// HandleTurn executes one turn to completion and returns the aggregated
// reply text.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, userText string) (string, error) {
	_, msgs, errs, err := e.ProcessTurn(ctx, sessionID, userText)
	if err != nil {
		return "", err
	}

	var reply string

	for msg := range msgs {
		if msg.IsFinalAnswer() {
			reply = msg.Text()
		}
	}

	// The pump closes the message channel before the error channel, so a
	// drained message channel means the terminal error (if any) is buffered.
	if err := <-errs; err != nil {
		return "", err
	}

	if reply == "" {
		return "", fmt.Errorf("turn ended without a reply")
	}

	return reply, nil
}

// sessionGate returns the capacity-one gate serializing turns per session.
func (e *Engine) sessionGate(sessionID string) chan struct{} {
	e.gatesMu.Lock()
	defer e.gatesMu.Unlock()

	gate, ok := e.gates[sessionID]
	if !ok {
		gate = make(chan struct{}, 1)
		e.gates[sessionID] = gate
	}

	return gate
}

func (e *Engine) trackTurn(turnID string, cancel context.CancelFunc) {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()

	e.active[turnID] = cancel
}

func (e *Engine) clearTurn(turnID string) {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()

	delete(e.active, turnID)
}

func (e *Engine) logTurnState(sessionID, turnID string, turn int, handler, state string) {
	e.logger.Debug("turn state",
		"session_id", sessionID,
		"turn_id", turnID,
		"turn", turn,
		"handler", handler,
		"state", state,
	)
}

// turnResult carries the handler's terminal outcome to the pump goroutine.
type turnResult struct {
	final *core.Message
	err   error
}

// turnRun holds the moving parts of one in-flight turn.
type turnRun struct {
	engine    *Engine
	sessionID string
	turnID    string
	turn      int
	handlerID string

	emit   <-chan core.Message
	resume chan<- struct{}
	out    chan<- core.Message
	errs   chan<- error
	result <-chan turnResult
}

// run pumps handler messages until the handler finishes, then aggregates
// and checkpoints the reply. Any terminal error lands on the errs channel.
func (tr *turnRun) run(ctx context.Context) {
	if err := tr.pump(ctx); err != nil {
		tr.fail(ctx, err)

		return
	}

	// The emit channel is closed, so the handler goroutine has already
	// buffered its result.
	res := <-tr.result
	if res.err != nil {
		tr.fail(ctx, fmt.Errorf("handler %s: %w", tr.handlerID, res.err))

		return
	}

	if err := tr.finish(ctx, res.final); err != nil {
		tr.fail(ctx, err)
	}
}

// pump persists and forwards handler messages until the handler closes its
// emit channel. Non-partial messages are checkpointed before forwarding and
// acknowledged with a resume signal; partial chunks are forwarded only.
func (tr *turnRun) pump(ctx context.Context) error {
	e := tr.engine

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-tr.emit:
			if !ok {
				return nil
			}

			if !msg.Partial {
				if err := e.sessions.AppendMessage(ctx, tr.sessionID, msg); err != nil {
					return fmt.Errorf("checkpoint failed: %w", err)
				}

				tr.fireObserved(ctx, HookMessagePersisted, &msg, nil)
			}

			select {
			case tr.out <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}

			if !msg.Partial {
				select {
				case tr.resume <- struct{}{}:
				default:
				}
			}
		}
	}
}

// finish aggregates the turn into one reply, checkpoints it and delivers it.
// The reply reaches the caller only after its checkpoint write succeeded.
func (tr *turnRun) finish(ctx context.Context, final *core.Message) error {
	e := tr.engine

	if final == nil {
		return fmt.Errorf("handler %s returned no final message", tr.handlerID)
	}

	e.logTurnState(tr.sessionID, tr.turnID, tr.turn, tr.handlerID, "aggregating")

	sess, err := e.sessions.Get(ctx, tr.sessionID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", tr.sessionID, err)
	}

	reply := e.aggregator.Compose(sess.TurnMessages(tr.turn), final)

	if reply.Handler == "" {
		reply.Handler = tr.handlerID
	}

	if reply.Turn == 0 {
		reply.Turn = tr.turn
	}

	// The reply must never be empty, whatever the aggregator did.
	if strings.TrimSpace(reply.Text()) == "" {
		reply = core.NewAssistantMessage(tr.handlerID, tr.turn,
			"I wasn't able to work out an answer for this request. Please try rephrasing it.")
	}

	if err := e.sessions.AppendMessage(ctx, tr.sessionID, reply); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}

	tr.fireObserved(ctx, HookMessagePersisted, &reply, nil)

	select {
	case tr.out <- reply:
	case <-ctx.Done():
		return ctx.Err()
	}

	tr.fireObserved(ctx, HookTurnCompleted, &reply, nil)

	e.logger.Info("turn completed",
		"session_id", tr.sessionID,
		"turn_id", tr.turnID,
		"turn", tr.turn,
		"handler", tr.handlerID,
	)

	return nil
}

// fail records the terminal error and notifies hooks. Called at most once
// per turn; the errs channel is buffered for exactly that one send.
func (tr *turnRun) fail(ctx context.Context, err error) {
	tr.engine.logger.Error("turn failed",
		"session_id", tr.sessionID,
		"turn_id", tr.turnID,
		"turn", tr.turn,
		"handler", tr.handlerID,
		"error", err,
	)

	tr.fireObserved(ctx, HookTurnFailed, nil, err)

	tr.errs <- err
}

// fireObserved runs observation-only hooks; their errors are logged, never
// propagated.
func (tr *turnRun) fireObserved(ctx context.Context, typ HookType, msg *core.Message, turnErr error) {
	hc := &HookContext{
		SessionID: tr.sessionID,
		TurnID:    tr.turnID,
		Turn:      tr.turn,
		Handler:   tr.handlerID,
		Message:   msg,
		Err:       turnErr,
	}

	if err := tr.engine.hooks.fire(ctx, typ, hc); err != nil {
		tr.engine.logger.Warn("hook failed",
			"hook", string(typ),
			"session_id", tr.sessionID,
			"turn_id", tr.turnID,
			"error", err,
		)
	}
}
