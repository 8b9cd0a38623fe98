// Package tunedesk provides a high-level façade over the turn engine and the
// music store handlers, enabling a complete support desk in a few lines.
// Most applications interact with this package by:
//  1. Creating a TuneDesk via New() with a model and a music store
//  2. Optionally registering additional handlers
//  3. Processing user turns asynchronously (ProcessTurn) or synchronously (HandleTurn)
//
// The façade wires the three stock handlers (catalog, order, query) into a
// dispatcher and delegates orchestration to engine.Engine. All defaults are
// safe for local development and testing; production deployments typically
// supply a durable session store and a structured logger.
package tunedesk

import (
	"context"

	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/dispatch"
	"github.com/hupe1980/tunedesk/engine"
	"github.com/hupe1980/tunedesk/handler"
	"github.com/hupe1980/tunedesk/logging"
	"github.com/hupe1980/tunedesk/model"
	"github.com/hupe1980/tunedesk/store"
)

// Options configures the TuneDesk instance.
type Options struct {
	// EngineConfig tunes turn execution (tool budget, channel buffers).
	EngineConfig engine.Config

	// SessionStore persists history, state and routing records. Defaults to
	// an in-memory store.
	SessionStore core.SessionStore

	// Dispatcher routes turns to handlers. Defaults to dispatch.New(), i.e.
	// priority order > query > catalog with query as the fallback.
	Dispatcher *dispatch.Dispatcher

	// Aggregator composes the user-facing reply closing each turn.
	Aggregator engine.Aggregator

	// Logger receives structured logs from every layer. Defaults to NoOp.
	Logger logging.Logger

	// Hooks subscribe to turn lifecycle events.
	Hooks []engine.Hook

	// HandlerOptions are applied to each of the three stock handlers, e.g.
	// to enable streaming or change the history window.
	HandlerOptions []func(o *handler.Options)
}

// TuneDesk is the high-level façade aggregating the engine, the dispatcher
// and the stock music store handlers.
type TuneDesk struct {
	engine *engine.Engine
}

// New creates a TuneDesk backed by the given model and music store. The
// catalog, order and query handlers are registered out of the box; any
// unset service is initialized with an in-memory implementation.
func New(mdl model.Model, musicStore store.MusicStore, optFns ...func(o *Options)) *TuneDesk {
	opts := Options{
		EngineConfig: engine.DefaultConfig(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	eng := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Sessions = opts.SessionStore
		o.Dispatcher = opts.Dispatcher
		o.Aggregator = opts.Aggregator
		o.Logger = opts.Logger
		o.Hooks = opts.Hooks
	})

	desk := &TuneDesk{engine: eng}

	desk.RegisterHandler(handler.NewCatalogHandler(mdl, musicStore, opts.HandlerOptions...))
	desk.RegisterHandler(handler.NewOrderHandler(mdl, musicStore, opts.HandlerOptions...))
	desk.RegisterHandler(handler.NewQueryHandler(mdl, musicStore, opts.HandlerOptions...))

	return desk
}

// RegisterHandler adds a handler to the underlying engine, replacing any
// handler with the same ID.
func (d *TuneDesk) RegisterHandler(h core.Handler) { d.engine.Register(h) }

// ProcessTurn starts an asynchronous turn returning streaming message and
// terminal error channels. See engine.Engine.ProcessTurn.
func (d *TuneDesk) ProcessTurn(ctx context.Context, sessionID, userText string) (string, <-chan core.Message, <-chan error, error) {
	return d.engine.ProcessTurn(ctx, sessionID, userText)
}

// HandleTurn executes one turn to completion and returns the aggregated
// reply text.
func (d *TuneDesk) HandleTurn(ctx context.Context, sessionID, userText string) (string, error) {
	return d.engine.HandleTurn(ctx, sessionID, userText)
}

// StopTurn cancels a running turn. It returns false when the turn is not
// active.
func (d *TuneDesk) StopTurn(turnID string) bool { return d.engine.StopTurn(turnID) }

// Session returns a snapshot of the identified session, empty when the id
// has never been seen.
func (d *TuneDesk) Session(ctx context.Context, sessionID string) (*core.Session, error) {
	return d.engine.GetSession(ctx, sessionID)
}
