package executor

import (
	"regexp"
	"strings"

	"ai-support-router-be/internal/model"
)

// Policy inspects a planned call before any retrieval happens. A policy that
// returns a non-nil outcome short-circuits the tool; returning nil lets
// execution continue. Policies are how non-retrieval tools (index_name empty)
// and guardrails on retrieval tools are expressed.
type Policy interface {
	Evaluate(tool model.ToolDefinition, query string) *model.RetrievalOutcome
}

// PolicyRegistry binds tool names to their policies.
type PolicyRegistry struct {
	policies map[string]Policy
}

func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{policies: make(map[string]Policy)}
}

func (r *PolicyRegistry) Register(toolName string, policy Policy) {
	r.policies[toolName] = policy
}

func (r *PolicyRegistry) Evaluate(tool model.ToolDefinition, query string) *model.RetrievalOutcome {
	policy, ok := r.policies[tool.Name]
	if !ok {
		return nil
	}
	return policy.Evaluate(tool, query)
}

// FixedResponsePolicy always answers with the same verbatim text. Used for
// compliance tools whose wording is legally reviewed and must never be
// paraphrased by the synthesizer.
type FixedResponsePolicy struct {
	Content     string
	SourceTitle string
}

func (p *FixedResponsePolicy) Evaluate(tool model.ToolDefinition, query string) *model.RetrievalOutcome {
	return &model.RetrievalOutcome{
		ToolName: tool.Name,
		Query:    query,
		Chunks: []model.RetrievedChunk{{
			Content:     p.Content,
			SourceTitle: p.SourceTitle,
		}},
		PresentAsIs: true,
	}
}

// FollowUpPolicy asks a clarifying question when the query touches its
// keywords, and marks the tool sticky so the user's answer routes back here.
// Unless keywords suppress the question: once the user's message carries one
// of them the ambiguity is resolved and retrieval proceeds.
type FollowUpPolicy struct {
	Keywords []string
	Unless   []string
	Question string
}

func (p *FollowUpPolicy) Evaluate(tool model.ToolDefinition, query string) *model.RetrievalOutcome {
	if !containsAny(query, p.Keywords) || containsAny(query, p.Unless) {
		return nil
	}
	return &model.RetrievalOutcome{
		ToolName:         tool.Name,
		Query:            query,
		FollowUpQuestion: p.Question,
		AskedForSticky:   true,
	}
}

// RedirectPolicy rejects queries matching its pattern, naming where they
// belong instead. Keeps broad catch-all tools from answering questions that
// have a dedicated owner.
type RedirectPolicy struct {
	Pattern *regexp.Regexp
	Reason  string
}

func NewRedirectPolicy(pattern, reason string) *RedirectPolicy {
	return &RedirectPolicy{
		Pattern: regexp.MustCompile(pattern),
		Reason:  reason,
	}
}

func (p *RedirectPolicy) Evaluate(tool model.ToolDefinition, query string) *model.RetrievalOutcome {
	if !p.Pattern.MatchString(strings.ToLower(query)) {
		return nil
	}
	return &model.RetrievalOutcome{
		ToolName:        tool.Name,
		Query:           query,
		Rejected:        true,
		RejectionReason: p.Reason,
	}
}

func containsAny(query string, keywords []string) bool {
	lowered := strings.ToLower(query)
	for _, kw := range keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
