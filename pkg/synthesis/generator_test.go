package synthesis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/llm"
)

type scriptedProvider struct {
	response string
	prompt   string
	called   bool
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	p.called = true
	p.prompt = prompt
	return p.response, nil
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return p.response, nil
}

func newTestGenerator(response string) (*Generator, *scriptedProvider) {
	provider := &scriptedProvider{response: response}
	log := logger.NewNopLogger()
	return NewGenerator(llm.NewStructuredClient(provider, log), log), provider
}

func successOutcome(tool, title, body, link string) model.RetrievalOutcome {
	return model.RetrievalOutcome{
		ToolName: tool,
		Chunks:   []model.RetrievedChunk{{Content: body, SourceTitle: title, SourceLink: link}},
	}
}

func TestGenerateLocal(t *testing.T) {
	ctx := context.Background()

	t.Run("all rejected relays reasons without the model", func(t *testing.T) {
		gen, provider := newTestGenerator("should not be called")
		result, err := gen.Generate(ctx, Input{
			Query: "lawsuit?",
			Outcomes: []model.RetrievalOutcome{
				{ToolName: "a", Rejected: true, RejectionReason: "belongs to legal"},
				{ToolName: "b", Rejected: true, RejectionReason: "belongs to legal"},
				{ToolName: "c", Rejected: true, RejectionReason: "no relevant information found"},
			},
		})
		require.NoError(t, err)
		assert.False(t, provider.called)
		assert.False(t, result.UsedLLM)
		assert.Contains(t, result.Text, "I wasn't able to find an answer for that.")
		assert.Contains(t, result.Text, "belongs to legal.")
		assert.Contains(t, result.Text, "no relevant information found.")
		// Duplicate reasons collapse.
		assert.Equal(t, 1, strings.Count(result.Text, "belongs to legal"))
	})

	t.Run("verbatim content on a rejected turn wins", func(t *testing.T) {
		gen, provider := newTestGenerator("should not be called")
		result, err := gen.Generate(ctx, Input{
			Outcomes: []model.RetrievalOutcome{
				{
					ToolName:    "legal",
					Rejected:    true,
					PresentAsIs: true,
					Chunks:      []model.RetrievedChunk{{Content: "This is not legal advice."}},
				},
			},
		})
		require.NoError(t, err)
		assert.False(t, provider.called)
		assert.Equal(t, "This is not legal advice.", result.Text)
	})
}

func TestGenerateWithModel(t *testing.T) {
	ctx := context.Background()

	outcomes := []model.RetrievalOutcome{
		successOutcome("payroll_qna_retrieval", "Payroll Setup", "Go to Settings > Payroll.", "https://x/payroll"),
		{ToolName: "general_product_support_retrieval", Rejected: true, RejectionReason: "belongs to legal"},
	}

	t.Run("answer with citations", func(t *testing.T) {
		gen, provider := newTestGenerator(`{"thought": "use the payroll source"}
{"final_response_text": "Head to Settings > Payroll to get started [1]."}
{"citation_map": {"1": {"title": "Payroll Setup", "link": "https://x/payroll"}}}`)

		result, err := gen.Generate(ctx, Input{Query: "how do I add payroll?", Outcomes: outcomes})
		require.NoError(t, err)
		assert.True(t, result.UsedLLM)
		assert.Equal(t, []string{"use the payroll source"}, result.Thoughts)
		assert.Contains(t, result.Text, "[1]")
		require.Contains(t, result.Citations, "1")
		assert.Equal(t, "Payroll Setup", result.Citations["1"].Title)

		assert.Contains(t, provider.prompt, "Go to Settings > Payroll.")
		assert.Contains(t, provider.prompt, "belongs to legal")
	})

	t.Run("citations rebuilt from text refs when map is missing", func(t *testing.T) {
		gen, _ := newTestGenerator(`{"final_response_text": "See the guide [1]."}`)

		result, err := gen.Generate(ctx, Input{Outcomes: outcomes})
		require.NoError(t, err)
		require.Contains(t, result.Citations, "1")
		assert.Equal(t, "Payroll Setup", result.Citations["1"].Title)
		assert.Equal(t, "https://x/payroll", result.Citations["1"].Link)
	})

	t.Run("invented citation ids dropped", func(t *testing.T) {
		gen, _ := newTestGenerator(`{"final_response_text": "Answer without refs."}
{"citation_map": {"7": {"title": "Made Up"}}}`)

		result, err := gen.Generate(ctx, Input{Outcomes: outcomes})
		require.NoError(t, err)
		assert.Nil(t, result.Citations)
	})

	t.Run("verbatim sources flagged in the prompt", func(t *testing.T) {
		gen, provider := newTestGenerator(`{"final_response_text": "ok"}`)

		asIs := successOutcome("legal", "Compliance Notice", "This is not legal advice.", "")
		asIs.PresentAsIs = true
		_, err := gen.Generate(ctx, Input{Outcomes: []model.RetrievalOutcome{asIs}})
		require.NoError(t, err)
		assert.Contains(t, provider.prompt, "MUST BE QUOTED VERBATIM")
	})

	t.Run("missing final response is an error", func(t *testing.T) {
		gen, _ := newTestGenerator(`{"thought": "thinking but never answering"}`)
		_, err := gen.Generate(ctx, Input{Outcomes: outcomes})
		assert.ErrorContains(t, err, "final_response_text")
	})
}

func TestCollectSources(t *testing.T) {
	sources := collectSources([]model.RetrievalOutcome{
		successOutcome("a", "Payroll Setup", "x", "https://x/1"),
		successOutcome("b", "Payroll Setup", "y", "https://x/1"),
		successOutcome("c", "Monthly Reports", "z", "https://x/2"),
	})
	require.Len(t, sources, 2)
	assert.Equal(t, "Payroll Setup", sources[0].Title)
	assert.Equal(t, "Monthly Reports", sources[1].Title)
}
