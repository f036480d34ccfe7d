package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-support-router-be/internal/model"
)

func TestFixedResponsePolicy(t *testing.T) {
	policy := &FixedResponsePolicy{
		Content:     "This is not legal advice.",
		SourceTitle: "Compliance Notice",
	}
	tool := model.ToolDefinition{Name: "legal_compliance_retrieval"}

	outcome := policy.Evaluate(tool, "can I be sued for this?")
	require.NotNil(t, outcome)
	assert.True(t, outcome.PresentAsIs)
	require.Len(t, outcome.Chunks, 1)
	assert.Equal(t, "This is not legal advice.", outcome.Chunks[0].Content)
	assert.Equal(t, "Compliance Notice", outcome.Chunks[0].SourceTitle)
}

func TestFollowUpPolicy(t *testing.T) {
	policy := &FollowUpPolicy{
		Keywords: []string{"contribution"},
		Unless:   []string{"employee", "employer"},
		Question: "Employee or employer contributions?",
	}
	tool := model.ToolDefinition{Name: "payroll_qna_retrieval"}

	t.Run("keyword triggers follow-up with sticky", func(t *testing.T) {
		outcome := policy.Evaluate(tool, "what about Contributions?")
		require.NotNil(t, outcome)
		assert.Equal(t, "Employee or employer contributions?", outcome.FollowUpQuestion)
		assert.True(t, outcome.AskedForSticky)
		assert.False(t, outcome.Rejected)
	})

	t.Run("no keyword lets execution continue", func(t *testing.T) {
		assert.Nil(t, policy.Evaluate(tool, "how do I add payroll?"))
	})

	t.Run("resolved ambiguity retrieves instead of re-asking", func(t *testing.T) {
		assert.Nil(t, policy.Evaluate(tool, "employee contributions"))
	})
}

func TestRedirectPolicy(t *testing.T) {
	policy := NewRedirectPolicy(
		`\b(payroll|legal|lawsuit|compliance)\b`,
		"This belongs to a specialist tool.",
	)
	tool := model.ToolDefinition{Name: "general_product_support_retrieval"}

	t.Run("keyword match rejects", func(t *testing.T) {
		outcome := policy.Evaluate(tool, "tell me about a LAWSUIT")
		require.NotNil(t, outcome)
		assert.True(t, outcome.Rejected)
		assert.Equal(t, "This belongs to a specialist tool.", outcome.RejectionReason)
	})

	t.Run("word boundary respected", func(t *testing.T) {
		assert.Nil(t, policy.Evaluate(tool, "how do I use the legalese template?"))
	})

	t.Run("clean query passes", func(t *testing.T) {
		assert.Nil(t, policy.Evaluate(tool, "how do I make an invoice?"))
	})
}

func TestPolicyRegistry(t *testing.T) {
	registry := NewPolicyRegistry()
	registry.Register("legal", &FixedResponsePolicy{Content: "disclaimer"})

	assert.NotNil(t, registry.Evaluate(model.ToolDefinition{Name: "legal"}, "q"))
	assert.Nil(t, registry.Evaluate(model.ToolDefinition{Name: "other"}, "q"))
}
