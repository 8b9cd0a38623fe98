package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/internal/testutil"
)

type capHandler struct {
	id  string
	cap core.Capability
}

func (h capHandler) ID() string                                   { return h.id }
func (h capHandler) Capability() core.Capability                  { return h.cap }
func (h capHandler) Run(*core.TurnContext) (*core.Message, error) { return nil, nil }

func newTestDispatcher(optFns ...func(o *Options)) *Dispatcher {
	d := New(optFns...)
	d.Register(capHandler{id: "catalog", cap: core.Capability{
		Keywords: []string{"track", "tracks", "song", "songs", "genre", "music", "album", "artist"},
	}})
	d.Register(capHandler{id: "order", cap: core.Capability{
		Keywords: []string{"order", "buy", "purchase", "checkout", "cart"},
	}})
	d.Register(capHandler{id: "query", cap: core.Capability{
		Keywords: []string{"how", "many", "count", "invoice", "invoices", "customer", "total"},
	}})
	return d
}

func TestRoute_Classification(t *testing.T) {
	d := newTestDispatcher()
	sess := core.NewSession("s1")

	cases := []struct {
		text    string
		handler string
		reason  string
	}{
		{"Show me 3 Rock tracks", "catalog", ReasonClassified},
		{"How many invoices does customer 12 have?", "query", ReasonClassified},
		{"I'd like to check out my cart", "order", ReasonClassified},
		{"blargh", "query", ReasonFallback},
	}

	for _, tc := range cases {
		rec := d.Route(sess, 1, tc.text)
		assert.Equal(t, tc.handler, rec.Handler, "text: %s", tc.text)
		assert.Equal(t, tc.reason, rec.Reason, "text: %s", tc.text)
		assert.False(t, rec.Continued)
		assert.NoError(t, rec.Validate())
	}
}

func TestRoute_TieBrokenByPriority(t *testing.T) {
	d := newTestDispatcher()
	sess := core.NewSession("s1")

	// one hit for order (buy) and one for catalog (tracks)
	rec := d.Route(sess, 1, "buy tracks")
	assert.Equal(t, "order", rec.Handler)

	// flipping the priority flips the tie
	flipped := newTestDispatcher(func(o *Options) {
		o.Priority = []string{"catalog", "order", "query"}
	})
	rec = flipped.Route(sess, 1, "buy tracks")
	assert.Equal(t, "catalog", rec.Handler)
}

func TestRoute_ContinuationTakesPrecedence(t *testing.T) {
	d := newTestDispatcher()

	// the loop never produced a final answer
	sess := testutil.NewSessionBuilder("s1").
		Messages(
			core.NewUserMessage(1, "buy two tracks"),
			core.NewToolCallMessage("order", 1, core.ToolCall{ID: "c1", Name: "create_order", Arguments: "{}"}),
		).
		Handoff(core.NewHandoffRecord(1, "order", ReasonClassified)).
		Build()

	rec := d.Route(sess, 2, "how many tracks do I have?")
	assert.Equal(t, "order", rec.Handler, "unfinished loops stay with their owner")
	assert.True(t, rec.Continued)
	assert.Equal(t, ReasonContinuation, rec.Reason)
	assert.Equal(t, 2, rec.Turn)
}

func TestRoute_CompletedTurnReclassifies(t *testing.T) {
	d := newTestDispatcher()

	sess := testutil.NewSessionBuilder("s1").
		Messages(
			core.NewUserMessage(1, "buy two tracks"),
			core.NewAssistantMessage("order", 1, "Done! Invoice 413, total $1.98."),
		).
		Handoff(core.NewHandoffRecord(1, "order", ReasonClassified)).
		Build()

	rec := d.Route(sess, 2, "show me some jazz tracks")
	assert.Equal(t, "catalog", rec.Handler)
	assert.False(t, rec.Continued)
}

func TestRoute_UnregisteredOwnerFallsThrough(t *testing.T) {
	d := newTestDispatcher()

	sess := testutil.NewSessionBuilder("s1").
		Message(core.NewUserMessage(1, "hello")).
		Handoff(core.NewHandoffRecord(1, "retired-handler", ReasonClassified)).
		Build()

	rec := d.Route(sess, 2, "show me tracks")
	require.Equal(t, "catalog", rec.Handler, "handoffs to unknown handlers must not pin the session")
}
