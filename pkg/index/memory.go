package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/embedding"
)

// vectorRecord is one embedded text within a partition. Each entry produces
// one record for title+body plus one per query string, all pointing back at
// the owning entry.
type vectorRecord struct {
	vector   []float32
	entryIdx int
}

// partition holds the fully built vectors for one index name. Partitions are
// immutable after build; Rebuild swaps the whole pointer.
type partition struct {
	entries []model.ContentEntry
	records []vectorRecord
}

// MemoryIndex is the in-process Searcher. All vectors live in flat slices and
// search is a linear scan with exact L2 distance, which is plenty for catalog
// sized corpora and keeps results deterministic.
type MemoryIndex struct {
	encoder     embedding.EmbeddingProvider
	maxDistance float64
	log         logger.ILogger

	mu         sync.RWMutex
	partitions map[string]*partition
}

func NewMemoryIndex(encoder embedding.EmbeddingProvider, maxDistance float64, log logger.ILogger) *MemoryIndex {
	if maxDistance <= 0 {
		maxDistance = 100
	}
	return &MemoryIndex{
		encoder:     encoder,
		maxDistance: maxDistance,
		log:         log,
		partitions:  make(map[string]*partition),
	}
}

var _ Searcher = (*MemoryIndex)(nil)

// Rebuild embeds all entries for one index name into a fresh partition, then
// swaps it in. Concurrent searches keep using the old partition until the
// swap; a failed build leaves the old partition untouched. When no entry
// carries the index name the rebuild is a logged no-op and the previous
// partition stays in place.
func (m *MemoryIndex) Rebuild(ctx context.Context, indexName string, entries []model.ContentEntry) error {
	next := &partition{}
	for _, entry := range entries {
		if entry.IndexName != indexName {
			continue
		}
		entryIdx := len(next.entries)
		next.entries = append(next.entries, entry)

		vec, err := m.embed(entry.MainText())
		if err != nil {
			return fmt.Errorf("embed entry %q: %w", entry.Title, err)
		}
		next.records = append(next.records, vectorRecord{vector: vec, entryIdx: entryIdx})

		for _, qs := range entry.QueryStrings {
			vec, err := m.embed(qs)
			if err != nil {
				return fmt.Errorf("embed query string of %q: %w", entry.Title, err)
			}
			next.records = append(next.records, vectorRecord{vector: vec, entryIdx: entryIdx})
		}
	}

	if len(next.entries) == 0 {
		m.log.Warn("index", "no entries for index, skipping rebuild", map[string]interface{}{"index_name": indexName})
		return nil
	}

	m.mu.Lock()
	m.partitions[indexName] = next
	m.mu.Unlock()

	m.log.Info("index", "partition rebuilt", map[string]interface{}{
		"index_name": indexName,
		"entries":    len(next.entries),
		"vectors":    len(next.records),
	})
	return nil
}

// RebuildAll groups entries by index name and rebuilds every partition that
// still has entries. A name all of whose entries were removed keeps its last
// built partition.
func (m *MemoryIndex) RebuildAll(ctx context.Context, entries []model.ContentEntry) error {
	names := make(map[string]bool)
	for _, e := range entries {
		if e.IndexName != "" {
			names[e.IndexName] = true
		}
	}

	for name := range names {
		if err := m.Rebuild(ctx, name, entries); err != nil {
			return err
		}
	}
	return nil
}

// Search runs the retrieval pipeline for one partition: embed the query, rank
// every record by L2 distance, truncate to the candidate pool, convert to
// similarity, then threshold, user-field filter and dedupe by owning entry
// keeping the closest hit.
func (m *MemoryIndex) Search(ctx context.Context, indexName, query string, opts SearchOptions) ([]Match, error) {
	m.mu.RLock()
	part := m.partitions[indexName]
	m.mu.RUnlock()

	if part == nil {
		m.log.Warn("index", "search against unknown index", map[string]interface{}{"index_name": indexName})
		return nil, nil
	}
	if opts.TopK <= 0 || len(part.records) == 0 {
		return nil, nil
	}

	queryVec, err := m.embedAs(query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	type ranked struct {
		distance float64
		entryIdx int
	}
	candidates := make([]ranked, 0, len(part.records))
	for _, rec := range part.records {
		candidates = append(candidates, ranked{
			distance: l2Distance(queryVec, rec.vector),
			entryIdx: rec.entryIdx,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	// Only the nearest search_k candidates are ever considered; hits pushed
	// past the pool by filtering are lost, matching the widened-pool contract.
	pool := searchK(opts.TopK, len(opts.UserFields) > 0)
	if pool < len(candidates) {
		candidates = candidates[:pool]
	}

	seen := make(map[int]bool)
	var matches []Match
	for _, c := range candidates {
		similarity := 1 - c.distance/m.maxDistance
		if similarity < 0 {
			similarity = 0
		}
		if similarity < opts.SimilarityThreshold {
			continue
		}
		if seen[c.entryIdx] {
			continue
		}
		entry := part.entries[c.entryIdx]
		if !MatchesUserFields(entry, opts.UserFields) {
			continue
		}
		seen[c.entryIdx] = true
		matches = append(matches, Match{Entry: entry, Similarity: similarity})
		if len(matches) >= opts.TopK {
			break
		}
	}
	return matches, nil
}

func (m *MemoryIndex) embed(text string) ([]float32, error) {
	return m.embedAs(text, embedding.TaskRetrievalDocument)
}

func (m *MemoryIndex) embedAs(text, taskType string) ([]float32, error) {
	resp, err := m.encoder.Generate(text, taskType)
	if err != nil {
		return nil, err
	}
	return resp.Embedding.Values, nil
}

// l2Distance computes exact Euclidean distance. Mismatched dimensions rank
// the pair as far apart as possible rather than panicking.
func l2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1e18
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
