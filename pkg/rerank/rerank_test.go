package rerank

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/index"
)

func match(title string, similarity float64, tags ...string) index.Match {
	return index.Match{
		Entry:      model.ContentEntry{Title: title, Tags: tags},
		Similarity: similarity,
	}
}

func TestTopN(t *testing.T) {
	matches := []index.Match{
		match("a", 0.9),
		match("b", 0.8),
		match("c", 0.7),
	}

	t.Run("truncates to n", func(t *testing.T) {
		got := TopN(2)(matches)
		assert.Len(t, got, 2)
		assert.Equal(t, "a", got[0].Entry.Title)
		assert.Equal(t, "b", got[1].Entry.Title)
	})

	t.Run("sorts before truncating", func(t *testing.T) {
		got := TopN(2)([]index.Match{
			match("weak", 0.2),
			match("best", 0.9),
			match("middle", 0.5),
		})
		assert.Len(t, got, 2)
		assert.Equal(t, "best", got[0].Entry.Title)
		assert.Equal(t, "middle", got[1].Entry.Title)
	})

	t.Run("tie keeps incoming order", func(t *testing.T) {
		got := TopN(1)([]index.Match{
			match("first", 0.7),
			match("second", 0.7),
		})
		assert.Equal(t, "first", got[0].Entry.Title)
	})

	t.Run("keeps all when fewer than n", func(t *testing.T) {
		got := TopN(5)(matches)
		assert.Len(t, got, 3)
	})

	t.Run("does not alias the input", func(t *testing.T) {
		got := TopN(3)(matches)
		got[0].Similarity = 0
		assert.Equal(t, 0.9, matches[0].Similarity)
	})
}

func TestUprankSDR(t *testing.T) {
	t.Run("boost promotes tagged entry past a closer one", func(t *testing.T) {
		// 0.5 boosted by a fifth of the remaining gap becomes 0.6.
		got := UprankSDR([]index.Match{
			match("plain", 0.55),
			match("tagged", 0.5, "SDR"),
		})
		assert.Len(t, got, 1)
		assert.Equal(t, "tagged", got[0].Entry.Title)
		assert.InDelta(t, 0.6, got[0].Similarity, 1e-9)
	})

	t.Run("tie after boost keeps the earlier match", func(t *testing.T) {
		got := UprankSDR([]index.Match{
			match("plain", 0.6),
			match("tagged", 0.5, "SDR"),
		})
		assert.Equal(t, "plain", got[0].Entry.Title)
	})

	t.Run("no tagged entries keeps the best as-is", func(t *testing.T) {
		got := UprankSDR([]index.Match{
			match("a", 0.9),
			match("b", 0.8),
		})
		assert.Len(t, got, 1)
		assert.Equal(t, "a", got[0].Entry.Title)
		assert.Equal(t, 0.9, got[0].Similarity)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, UprankSDR(nil))
	})

	t.Run("input is not mutated", func(t *testing.T) {
		matches := []index.Match{match("tagged", 0.5, "SDR")}
		UprankSDR(matches)
		assert.Equal(t, 0.5, matches[0].Similarity)
	})
}

func TestRegistryFallback(t *testing.T) {
	reg := NewRegistry(logger.NewNopLogger())

	matches := []index.Match{
		match("a", 0.9),
		match("b", 0.8),
	}

	got := reg.Get("no_such_reranker")(matches)
	assert.Len(t, got, 1, "unknown reranker falls back to top1")
	assert.Equal(t, "a", got[0].Entry.Title)

	got = reg.Get(model.RerankerTop3)(matches)
	assert.Len(t, got, 2)
}
