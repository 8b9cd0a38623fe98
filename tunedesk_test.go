package tunedesk_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tunedesk"
	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/model"
	"github.com/hupe1980/tunedesk/store/sqlite"
)

func newMusicStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.Bootstrap(ctx))
	require.NoError(t, st.SeedDemo(ctx))

	return st
}

func toolCallMessage(name, arguments string) core.Message {
	msg := core.NewMessage(core.RoleAssistant, "", 0)
	msg.Parts = []core.Part{core.ToolCallPart{ToolCall: core.ToolCall{
		ID: core.NewID(), Name: name, Arguments: arguments,
	}}}

	return msg
}

func finalMessage(text string) core.Message {
	return core.NewAssistantMessage("", 0, text)
}

func TestTuneDesk_InvoiceCountFlow(t *testing.T) {
	st := newMusicStore(t)
	ctx := context.Background()

	mdl := model.NewMockModel("mock", "test")
	mdl.Enqueue(
		toolCallMessage("execute_query",
			`{"statement": "SELECT COUNT(*) AS InvoiceCount FROM Invoice WHERE CustomerId = 12"}`),
		finalMessage("Customer 12 has 7 invoices."),
	)

	desk := tunedesk.New(mdl, st)

	reply, err := desk.HandleTurn(ctx, "1", "How many invoices does customer 12 have?")
	require.NoError(t, err)
	assert.Equal(t, "Customer 12 has 7 invoices.", reply)

	sess, err := desk.Session(ctx, "1")
	require.NoError(t, err)

	rec, ok := sess.LastHandoff()
	require.True(t, ok)
	assert.Equal(t, "query", rec.Handler)
	assert.False(t, rec.Continued)

	// user message, tool call, tool result, aggregated reply
	msgs := sess.TurnMessages(1)
	require.Len(t, msgs, 4)

	results := msgs[2].ToolResults()
	require.Len(t, results, 1)
	assert.Equal(t, core.StatusOK, results[0].Status)
}

func TestTuneDesk_BrowseThenOrder(t *testing.T) {
	st := newMusicStore(t)
	ctx := context.Background()

	mdl := model.NewMockModel("mock", "test")

	desk := tunedesk.New(mdl, st)

	mdl.Enqueue(
		toolCallMessage("search_catalog", `{"genre": "Jazz"}`),
		finalMessage("We have Desafinado, Garota De Ipanema and more jazz on offer."),
	)

	reply, err := desk.HandleTurn(ctx, "1", "Show me some jazz tracks")
	require.NoError(t, err)
	assert.Contains(t, reply, "Desafinado")

	mdl.Enqueue(
		toolCallMessage("create_order",
			`{"customer_id": 3, "cart": [{"track_id": 14, "unit_price": 0.99, "quantity": 1}]}`),
		finalMessage("Done! Your order for Desafinado is in; the total is $0.99."),
	)

	reply, err = desk.HandleTurn(ctx, "1", "Great, I want to buy track 14. My customer id is 3.")
	require.NoError(t, err)
	assert.Contains(t, reply, "$0.99")

	sess, err := desk.Session(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.CurrentTurn())

	recs := sess.AllHandoffs()
	require.Len(t, recs, 2)
	assert.Equal(t, "catalog", recs[0].Handler)
	assert.Equal(t, "order", recs[1].Handler)

	// The invoice landed in the store.
	rs, err := st.Query(ctx, "SELECT COUNT(*) AS n FROM Invoice WHERE CustomerId = 3")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.EqualValues(t, 2, rs.Rows[0][0])
}

func TestTuneDesk_UnknownSessionIsEmpty(t *testing.T) {
	st := newMusicStore(t)

	desk := tunedesk.New(model.NewMockModel("mock", "test"), st)

	sess, err := desk.Session(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, 0, sess.CurrentTurn())
	assert.Empty(t, sess.AllMessages())
}
