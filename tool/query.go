package tool

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/store"
)

// ExecuteQueryName is the wire name of the ad-hoc reporting tool.
const ExecuteQueryName = "execute_query"

// defaultRowLimit is appended to statements that carry no LIMIT clause.
const defaultRowLimit = 100

var (
	selectPrefix  = regexp.MustCompile(`(?i)^select\b`)
	mutationVerbs = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|replace|truncate|attach|detach|pragma|vacuum|reindex)\b`)
	limitClause   = regexp.MustCompile(`(?i)\blimit\b`)
)

// sanitizeStatement enforces the read-only contract: exactly one SELECT
// statement, no mutation keywords anywhere, and a row cap when the caller
// didn't set one. Returns the statement to execute.
func sanitizeStatement(statement string) (string, error) {
	stmt := strings.TrimSpace(statement)
	if stmt == "" {
		return "", fmt.Errorf("statement is empty")
	}

	// a single trailing terminator is tolerated
	stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))

	if strings.Contains(stmt, ";") {
		return "", fmt.Errorf("only a single statement is allowed")
	}

	if !selectPrefix.MatchString(stmt) {
		return "", fmt.Errorf("only SELECT statements are allowed")
	}

	if verb := mutationVerbs.FindString(stmt); verb != "" {
		return "", fmt.Errorf("statement contains forbidden keyword %q", strings.ToUpper(verb))
	}

	if !limitClause.MatchString(stmt) {
		stmt = fmt.Sprintf("%s LIMIT %d", stmt, defaultRowLimit)
	}

	return stmt, nil
}

// NewExecuteQueryTool returns the ad-hoc reporting tool. Statements are
// checked by sanitizeStatement before they reach the store, so rejected input
// surfaces as a recoverable VALIDATION_ERROR for the model.
func NewExecuteQueryTool(musicStore store.MusicStore) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"statement": map[string]any{
				"type":        "string",
				"description": "A single read-only SQL SELECT statement against the music store schema",
			},
		},
		"required": []string{"statement"},
	}

	fn := func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		statement, _ := args["statement"].(string)

		stmt, err := sanitizeStatement(statement)
		if err != nil {
			return nil, NewToolError(ExecuteQueryName, err.Error(), CodeValidationError)
		}

		rs, err := musicStore.Query(toolCtx.Context(), stmt)
		if err != nil {
			return nil, NewToolError(ExecuteQueryName, fmt.Sprintf("query failed: %v", err), CodeStoreError)
		}

		toolCtx.LogDebug("query.executed", "columns", len(rs.Columns), "rows", len(rs.Rows))

		return rs, nil
	}

	return NewFunctionTool(
		ExecuteQueryName,
		"Run a single read-only SQL SELECT against the music store (tables: Artist, Album, Genre, Track, Customer, Invoice, InvoiceLine). Results are capped at 100 rows unless the statement sets its own LIMIT.",
		parameters,
		fn,
	)
}
