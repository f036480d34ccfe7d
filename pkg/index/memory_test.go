package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/embedding"
)

// fakeEncoder returns fixed vectors per text so distances are deterministic.
type fakeEncoder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEncoder) Generate(text, taskType string) (*embedding.EmbeddingResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	vec, ok := f.vectors[text]
	if !ok {
		vec = []float32{1000, 1000}
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: vec},
	}, nil
}

func payrollCorpus() ([]model.ContentEntry, *fakeEncoder) {
	entries := []model.ContentEntry{
		{
			Title:        "Payroll Setup",
			Body:         "Go to Settings > Payroll.",
			IndexName:    "payroll_qna",
			QueryStrings: []string{"add payroll"},
		},
		{
			Title:     "Creating Invoices",
			Body:      "Use the + button.",
			IndexName: "product_support",
		},
		{
			Title:             "State Tax Withholding",
			Body:              "Configured per employee.",
			IndexName:         "payroll_qna",
			UserFieldsMapping: map[string]model.FieldValues{"region": {"US"}},
		},
	}
	enc := &fakeEncoder{vectors: map[string][]float32{
		"Payroll Setup Go to Settings > Payroll.": {10, 0},
		"add payroll": {1, 0},
		"State Tax Withholding Configured per employee.": {3, 0},
		"Creating Invoices Use the + button.":            {50, 0},
		"how do I add payroll?":                          {0, 0},
	}}
	return entries, enc
}

func newTestIndex(t *testing.T) (*MemoryIndex, []model.ContentEntry) {
	t.Helper()
	entries, enc := payrollCorpus()
	idx := NewMemoryIndex(enc, 10, logger.NewNopLogger())
	require.NoError(t, idx.RebuildAll(context.Background(), entries))
	return idx, entries
}

func TestMemoryIndexSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("query string vector finds the owning entry", func(t *testing.T) {
		idx, _ := newTestIndex(t)
		matches, err := idx.Search(ctx, "payroll_qna", "how do I add payroll?", SearchOptions{TopK: 1})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "Payroll Setup", matches[0].Entry.Title)
		// Distance 1 against maxDistance 10.
		assert.InDelta(t, 0.9, matches[0].Similarity, 1e-9)
	})

	t.Run("partition isolation", func(t *testing.T) {
		idx, _ := newTestIndex(t)
		matches, err := idx.Search(ctx, "product_support", "how do I add payroll?", SearchOptions{TopK: 3})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "Creating Invoices", matches[0].Entry.Title)
	})

	t.Run("unknown index returns empty without error", func(t *testing.T) {
		idx, _ := newTestIndex(t)
		matches, err := idx.Search(ctx, "no_such_index", "anything", SearchOptions{TopK: 3})
		assert.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("dedupe consumes the candidate pool", func(t *testing.T) {
		// With top_k 2 and no user fields the pool holds the two nearest
		// vectors, both owned by Payroll Setup (query string at distance 1,
		// main text at 10 beats State Tax only through the query "add payroll"
		// vector). Dedupe collapses them; the pool is not refilled.
		idx, _ := newTestIndex(t)
		enc := idx.encoder.(*fakeEncoder)
		enc.vectors["narrow"] = []float32{0, 0}
		enc.vectors["State Tax Withholding Configured per employee."] = []float32{20, 0}

		entries, _ := payrollCorpus()
		require.NoError(t, idx.RebuildAll(ctx, entries))
		matches, err := idx.Search(ctx, "payroll_qna", "narrow", SearchOptions{TopK: 2})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "Payroll Setup", matches[0].Entry.Title)
	})

	t.Run("similarity threshold drops weak hits", func(t *testing.T) {
		idx, _ := newTestIndex(t)
		matches, err := idx.Search(ctx, "payroll_qna", "how do I add payroll?", SearchOptions{
			TopK:                2,
			SimilarityThreshold: 0.95,
		})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("user fields widen the pool and filter", func(t *testing.T) {
		// Payroll Setup declares no field mapping, so a search carrying user
		// fields can never surface it. Only the US-mapped entry survives, and
		// only for a US user.
		idx, _ := newTestIndex(t)
		matches, err := idx.Search(ctx, "payroll_qna", "how do I add payroll?", SearchOptions{
			TopK:       2,
			UserFields: map[string]string{"region": "UK"},
		})
		require.NoError(t, err)
		assert.Empty(t, matches, "US-only entry filtered for a UK user")

		matches, err = idx.Search(ctx, "payroll_qna", "how do I add payroll?", SearchOptions{
			TopK:       2,
			UserFields: map[string]string{"region": "US"},
		})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "State Tax Withholding", matches[0].Entry.Title)
	})

	t.Run("zero topK returns nothing", func(t *testing.T) {
		idx, _ := newTestIndex(t)
		matches, err := idx.Search(ctx, "payroll_qna", "how do I add payroll?", SearchOptions{})
		assert.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestMemoryIndexRebuild(t *testing.T) {
	ctx := context.Background()
	idx, entries := newTestIndex(t)

	t.Run("rebuild without matching entries keeps the partition", func(t *testing.T) {
		require.NoError(t, idx.Rebuild(ctx, "payroll_qna", nil))
		matches, err := idx.Search(ctx, "payroll_qna", "how do I add payroll?", SearchOptions{TopK: 3})
		require.NoError(t, err)
		assert.NotEmpty(t, matches, "empty rebuild is a no-op, old vectors stay searchable")
	})

	t.Run("rebuild replaces the partition wholesale", func(t *testing.T) {
		trimmed := []model.ContentEntry{entries[0]}
		require.NoError(t, idx.Rebuild(ctx, "payroll_qna", trimmed))
		matches, err := idx.Search(ctx, "payroll_qna", "how do I add payroll?", SearchOptions{TopK: 3})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "Payroll Setup", matches[0].Entry.Title)

		require.NoError(t, idx.Rebuild(ctx, "payroll_qna", entries))
		matches, err = idx.Search(ctx, "payroll_qna", "how do I add payroll?", SearchOptions{TopK: 3})
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("failed rebuild keeps the old partition", func(t *testing.T) {
		enc := idx.encoder.(*fakeEncoder)
		enc.err = errors.New("encoder down")
		assert.Error(t, idx.Rebuild(ctx, "payroll_qna", entries))
		enc.err = nil

		matches, err := idx.Search(ctx, "payroll_qna", "how do I add payroll?", SearchOptions{TopK: 1})
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})
}

func TestL2Distance(t *testing.T) {
	assert.InDelta(t, 5, l2Distance([]float32{0, 0}, []float32{3, 4}), 1e-9)
	assert.Equal(t, 1e18, l2Distance([]float32{1}, []float32{1, 2}))
}
