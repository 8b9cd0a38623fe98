package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/internal/testutil"
)

func TestDefaultAggregator_UsesFinalText(t *testing.T) {
	agg := NewDefaultAggregator()

	final := core.NewAssistantMessage("catalog", 1, "Found five jazz tracks for you.")
	final.Metadata = map[string]any{"truncated": true}

	reply := agg.Compose(nil, &final)

	assert.Equal(t, "Found five jazz tracks for you.", reply.Text())
	assert.Equal(t, "catalog", reply.Handler)
	assert.Equal(t, 1, reply.Turn)
	assert.Equal(t, final.Metadata, reply.Metadata)
}

func TestDefaultAggregator_SummarizesToolResults(t *testing.T) {
	agg := NewDefaultAggregator()

	turnMessages := []core.Message{
		testutil.NewMessageBuilder().Handler("catalog").Turn(1).
			ToolResult(core.ToolResult{ID: "c1", Name: "search_catalog", Status: core.StatusOK, Payload: []string{"Black Dog"}}).
			ToolResult(core.ToolResult{ID: "c2", Name: "execute_query", Status: core.StatusError, Error: "disallowed statement"}).
			Build(),
	}

	final := core.NewAssistantMessage("catalog", 1, "   ")

	reply := agg.Compose(turnMessages, &final)

	require.True(t, reply.IsFinalAnswer())
	assert.Contains(t, reply.Text(), "search_catalog")
	assert.Contains(t, reply.Text(), "Black Dog")
	assert.NotContains(t, reply.Text(), "disallowed statement")
}

func TestDefaultAggregator_NeverEmpty(t *testing.T) {
	agg := NewDefaultAggregator()

	reply := agg.Compose(nil, nil)

	assert.NotEmpty(t, reply.Text())
}

func TestComposeFunc(t *testing.T) {
	var gotFinal *core.Message

	fn := ComposeFunc(func(_ []core.Message, final *core.Message) core.Message {
		gotFinal = final

		return core.NewAssistantMessage("custom", 3, "custom reply")
	})

	final := core.NewAssistantMessage("catalog", 3, "ignored")
	reply := fn.Compose(nil, &final)

	assert.Same(t, &final, gotFinal)
	assert.Equal(t, "custom reply", reply.Text())
	assert.Equal(t, "custom", reply.Handler)
}
