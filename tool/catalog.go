package tool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/store"
)

// SearchCatalogName is the wire name of the catalog lookup tool.
const SearchCatalogName = "search_catalog"

// NewSearchCatalogTool returns the read-only catalog lookup. The lookup is
// idempotent: an unknown genre produces an empty result, never an error, and
// the store caps and orders the rows it returns.
func NewSearchCatalogTool(musicStore store.MusicStore) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"genre": map[string]any{
				"type":        "string",
				"description": "Genre name to look up, e.g. 'Rock' or 'Jazz'",
			},
		},
		"required": []string{"genre"},
	}

	fn := func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		genre, _ := args["genre"].(string)
		if strings.TrimSpace(genre) == "" {
			return nil, NewToolError(SearchCatalogName, "genre must be a non-empty string", CodeValidationError)
		}

		tracks, err := musicStore.TracksByGenre(toolCtx.Context(), genre)
		if err != nil {
			return nil, NewToolError(SearchCatalogName, fmt.Sprintf("catalog lookup failed: %v", err), CodeStoreError)
		}

		toolCtx.LogDebug("catalog.search", "genre", genre, "results", len(tracks))

		return tracks, nil
	}

	return NewFunctionTool(
		SearchCatalogName,
		"Search the music catalog for tracks in a given genre. Returns up to five tracks ordered by track ID.",
		parameters,
		fn,
	)
}

// mapStoreError converts store sentinels into VALIDATION_ERROR tool errors so
// the model can correct its arguments; everything else is a backend failure.
func mapStoreError(toolName string, err error) *ToolError {
	switch {
	case errors.Is(err, store.ErrCustomerNotFound),
		errors.Is(err, store.ErrEmptyCart),
		errors.Is(err, store.ErrInvalidQuantity),
		errors.Is(err, store.ErrInvalidUnitPrice):
		return NewToolError(toolName, err.Error(), CodeValidationError)
	default:
		return NewToolError(toolName, err.Error(), CodeStoreError)
	}
}
