package handler

import (
	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/model"
	"github.com/hupe1980/tunedesk/store"
	"github.com/hupe1980/tunedesk/tool"
)

const catalogInstruction = `You are the catalog assistant of a digital music store.

Customers ask you to discover music. When they name a genre, call search_catalog with that genre and present the returned tracks as a short, friendly list of track names. A lookup returns at most five tracks.

Never invent tracks: only mention what the tool returned. If a lookup comes back empty, say the genre isn't stocked and offer to check another one.`

// NewCatalogHandler returns the browsing specialist. It matches genre and
// discovery questions and answers them with the search_catalog tool.
func NewCatalogHandler(mdl model.Model, musicStore store.MusicStore, optFns ...func(o *Options)) *ModelHandler {
	capability := core.Capability{
		Description: "Browses the music catalog and recommends tracks by genre",
		Keywords: []string{
			"track", "tracks", "song", "songs", "genre", "genres",
			"music", "catalog", "album", "albums", "artist", "artists",
			"browse", "play", "listen", "recommend", "recommendation",
		},
	}

	defaults := []func(o *Options){func(o *Options) {
		o.Instruction = NewInstructionFromText(catalogInstruction)
		o.Tools = []tool.Tool{tool.NewSearchCatalogTool(musicStore)}
	}}

	return New("catalog", capability, mdl, append(defaults, optFns...)...)
}
