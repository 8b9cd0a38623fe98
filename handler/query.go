package handler

import (
	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/model"
	"github.com/hupe1980/tunedesk/store"
	"github.com/hupe1980/tunedesk/tool"
)

const queryInstruction = `You are the reporting assistant of a digital music store, with read-only SQL access.

Translate the customer's question into a single SQL SELECT statement over this schema: Artist, Album, Genre, Track, Customer, Invoice, InvoiceLine. Run it with execute_query and answer in plain language from the rows that come back; do not show the SQL unless the customer asks for it.

Only SELECT statements are accepted; the tool rejects anything else. Results are capped at 100 rows, so aggregate in SQL when counting or summing.`

// NewQueryHandler returns the reporting specialist. It answers analytics
// questions with read-only SQL and doubles as the routing fallback, so its
// instruction also covers loosely phrased requests.
func NewQueryHandler(mdl model.Model, musicStore store.MusicStore, optFns ...func(o *Options)) *ModelHandler {
	capability := core.Capability{
		Description: "Answers questions about store data with read-only SQL",
		Keywords: []string{
			"how", "many", "count", "invoice", "invoices",
			"customer", "customers", "total", "spent", "number",
			"sql", "query", "database", "report", "which", "who",
		},
	}

	defaults := []func(o *Options){func(o *Options) {
		o.Instruction = NewInstructionFromText(queryInstruction)
		o.Tools = []tool.Tool{tool.NewExecuteQueryTool(musicStore)}
	}}

	return New("query", capability, mdl, append(defaults, optFns...)...)
}
