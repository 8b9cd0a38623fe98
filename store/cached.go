package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCatalogCacheSize bounds the number of genres kept in memory.
const DefaultCatalogCacheSize = 128

// CachedCatalog wraps a MusicStore with an LRU cache over TracksByGenre.
// Catalog rows are effectively static, so entries never need invalidation;
// Query and CreateOrder pass straight through to the wrapped store.
type CachedCatalog struct {
	MusicStore
	cache *lru.Cache[string, []Track]
}

// NewCachedCatalog wraps inner with a genre cache of the given size
// (DefaultCatalogCacheSize when size <= 0).
func NewCachedCatalog(inner MusicStore, size int) (*CachedCatalog, error) {
	if size <= 0 {
		size = DefaultCatalogCacheSize
	}

	cache, err := lru.New[string, []Track](size)
	if err != nil {
		return nil, err
	}

	return &CachedCatalog{MusicStore: inner, cache: cache}, nil
}

// TracksByGenre serves repeated genre lookups from memory. Cached slices are
// copied on the way out so callers cannot mutate shared state.
func (c *CachedCatalog) TracksByGenre(ctx context.Context, genre string) ([]Track, error) {
	if tracks, ok := c.cache.Get(genre); ok {
		return cloneTracks(tracks), nil
	}

	tracks, err := c.MusicStore.TracksByGenre(ctx, genre)
	if err != nil {
		return nil, err
	}

	c.cache.Add(genre, cloneTracks(tracks))

	return tracks, nil
}

// Purge drops all cached genres.
func (c *CachedCatalog) Purge() { c.cache.Purge() }

func cloneTracks(tracks []Track) []Track {
	cp := make([]Track, len(tracks))
	copy(cp, tracks)
	return cp
}

var _ MusicStore = (*CachedCatalog)(nil)
