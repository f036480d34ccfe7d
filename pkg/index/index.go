package index

import (
	"context"

	"ai-support-router-be/internal/model"
)

// Match is one retrieval hit: the owning content entry and its similarity,
// already converted from L2 distance (1 - d/maxDistance, floored at 0).
type Match struct {
	Entry      model.ContentEntry
	Similarity float64
}

// SearchOptions tunes one search call.
type SearchOptions struct {
	// TopK is the number of entries to return after filtering and dedup.
	TopK int
	// SimilarityThreshold drops candidates below it. Zero keeps everything
	// with non-negative similarity.
	SimilarityThreshold float64
	// UserFields filters candidates by their user_fields_mapping. When set,
	// the candidate pool is widened to TopK*3 before filtering.
	UserFields map[string]string
}

// Searcher is the contract shared by the in-memory and pgvector backends.
// Rebuild replaces one named partition wholesale; readers never observe a
// partially built partition. A search against an unknown index name returns
// an empty result, not an error.
type Searcher interface {
	Rebuild(ctx context.Context, indexName string, entries []model.ContentEntry) error
	RebuildAll(ctx context.Context, entries []model.ContentEntry) error
	Search(ctx context.Context, indexName, query string, opts SearchOptions) ([]Match, error)
}

// searchK widens the candidate pool when post-filtering will discard hits.
func searchK(topK int, filtered bool) int {
	if filtered {
		return topK * 3
	}
	return topK
}
