package executor

import (
	"context"
	"fmt"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/index"
	"ai-support-router-be/pkg/rerank"
)

// Handler executes a non-retrieval tool (index_name empty) that has no
// short-circuiting policy, e.g. structured user-data lookups.
type Handler interface {
	Handle(ctx context.Context, tool model.ToolDefinition, call model.PlanEntry) model.RetrievalOutcome
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, tool model.ToolDefinition, call model.PlanEntry) model.RetrievalOutcome

func (f HandlerFunc) Handle(ctx context.Context, tool model.ToolDefinition, call model.PlanEntry) model.RetrievalOutcome {
	return f(ctx, tool, call)
}

// Executor runs one planned tool call to completion. Every failure mode is
// absorbed into the returned outcome; Execute never errors, so one bad tool
// cannot take down a turn.
type Executor struct {
	searcher            index.Searcher
	rerankers           *rerank.Registry
	policies            *PolicyRegistry
	handlers            map[string]Handler
	similarityThreshold float64
	log                 logger.ILogger
}

func NewExecutor(searcher index.Searcher, rerankers *rerank.Registry, policies *PolicyRegistry, similarityThreshold float64, log logger.ILogger) *Executor {
	return &Executor{
		searcher:            searcher,
		rerankers:           rerankers,
		policies:            policies,
		handlers:            make(map[string]Handler),
		similarityThreshold: similarityThreshold,
		log:                 log,
	}
}

// RegisterHandler binds a non-retrieval tool name to its handler.
func (e *Executor) RegisterHandler(toolName string, handler Handler) {
	e.handlers[toolName] = handler
}

// Execute runs policies first, then either the tool's domain handler or the
// retrieval pipeline (search filtered by user attributes, then rerank).
func (e *Executor) Execute(ctx context.Context, tool model.ToolDefinition, call model.PlanEntry, userFields map[string]string) model.RetrievalOutcome {
	query := call.QueryArgument()

	if outcome := e.policies.Evaluate(tool, query); outcome != nil {
		e.log.Info("executor", "policy short-circuit", map[string]interface{}{
			"tool":     tool.Name,
			"rejected": outcome.Rejected,
			"followup": outcome.FollowUpQuestion != "",
		})
		return *outcome
	}

	if !tool.IsRetrieval() {
		handler, ok := e.handlers[tool.Name]
		if !ok {
			e.log.Warn("executor", "no handler for non-retrieval tool", map[string]interface{}{"tool": tool.Name})
			return model.RetrievalOutcome{
				ToolName:        tool.Name,
				Query:           query,
				Rejected:        true,
				RejectionReason: fmt.Sprintf("tool %q has no handler registered", tool.Name),
			}
		}
		return handler.Handle(ctx, tool, call)
	}

	return e.retrieve(ctx, tool, call, query, userFields)
}

func (e *Executor) retrieve(ctx context.Context, tool model.ToolDefinition, call model.PlanEntry, query string, userFields map[string]string) model.RetrievalOutcome {
	outcome := model.RetrievalOutcome{
		ToolName:    tool.Name,
		Query:       query,
		PresentAsIs: tool.DisplayMode == model.DisplayAsIs,
	}
	if query == "" {
		query = callFallbackQuery(call)
	}

	matches, err := e.searcher.Search(ctx, tool.IndexName, query, index.SearchOptions{
		TopK:                tool.TopK,
		SimilarityThreshold: e.similarityThreshold,
		UserFields:          intersectUserFields(tool, userFields),
	})
	if err != nil {
		e.log.Error("executor", "retrieval failed", map[string]interface{}{
			"tool":  tool.Name,
			"index": tool.IndexName,
			"error": err.Error(),
		})
		outcome.Error = err.Error()
		outcome.Rejected = true
		outcome.RejectionReason = "retrieval failed"
		return outcome
	}

	matches = e.rerankers.Get(tool.Reranker)(matches)
	if len(matches) == 0 {
		outcome.Rejected = true
		outcome.RejectionReason = "no relevant information found"
		return outcome
	}

	for _, m := range matches {
		outcome.Chunks = append(outcome.Chunks, model.RetrievedChunk{
			Content:     m.Entry.Body,
			SourceTitle: m.Entry.Title,
			SourceLink:  m.Entry.SourceLink,
		})
	}
	return outcome
}

// intersectUserFields narrows the user's attributes to the fields the tool
// declares, so a tool only filters on dimensions it knows about.
func intersectUserFields(tool model.ToolDefinition, userFields map[string]string) map[string]string {
	if len(tool.UserFieldsMapping) == 0 || len(userFields) == 0 {
		return nil
	}
	out := make(map[string]string)
	for field := range tool.UserFieldsMapping {
		if value, ok := userFields[field]; ok {
			out[field] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// callFallbackQuery stringifies the first argument when no recognized query
// argument is present. Better a fuzzy search than none.
func callFallbackQuery(call model.PlanEntry) string {
	for _, v := range call.Arguments {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
