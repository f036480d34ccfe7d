package rerank

import (
	"sort"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/index"
)

// sdrTag marks entries eligible for the uprank_sdr boost.
const sdrTag = "SDR"

// Strategy reorders and truncates ranked matches. Strategies are pure: the
// input slice is never mutated, so callers can hold onto it.
type Strategy func(matches []index.Match) []index.Match

// Registry resolves a tool's reranker name to its strategy. Unknown names
// fall back to top1 with a warning so a typo in a tool definition degrades
// instead of breaking routing.
type Registry struct {
	strategies map[string]Strategy
	log        logger.ILogger
}

func NewRegistry(log logger.ILogger) *Registry {
	return &Registry{
		strategies: map[string]Strategy{
			model.RerankerTop1:      TopN(1),
			model.RerankerTop3:      TopN(3),
			model.RerankerUprankSDR: UprankSDR,
		},
		log: log,
	}
}

func (r *Registry) Get(name string) Strategy {
	if s, ok := r.strategies[name]; ok {
		return s
	}
	r.log.Warn("rerank", "unknown reranker, falling back to top1", map[string]interface{}{"reranker": name})
	return r.strategies[model.RerankerTop1]
}

// TopN sorts descending by similarity and keeps the best n. The sort is
// stable, so equal scores keep their incoming order.
func TopN(n int) Strategy {
	return func(matches []index.Match) []index.Match {
		sorted := make([]index.Match, len(matches))
		copy(sorted, matches)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Similarity > sorted[j].Similarity
		})
		if len(sorted) > n {
			sorted = sorted[:n]
		}
		return sorted
	}
}

// UprankSDR boosts SDR-tagged matches by closing a fifth of their gap to a
// perfect score, re-sorts, and keeps the single best. The sort is stable, so
// a boosted match that only ties a non-tagged one does not overtake it.
func UprankSDR(matches []index.Match) []index.Match {
	if len(matches) == 0 {
		return nil
	}

	boosted := make([]index.Match, len(matches))
	copy(boosted, matches)
	for i, m := range boosted {
		if m.Entry.HasTag(sdrTag) {
			boosted[i].Similarity = m.Similarity + 0.2*(1-m.Similarity)
		}
	}
	sort.SliceStable(boosted, func(i, j int) bool {
		return boosted[i].Similarity > boosted[j].Similarity
	})
	return boosted[:1]
}
