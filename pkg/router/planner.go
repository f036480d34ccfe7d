package router

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/llm"
)

// Structured keys expected from the planning call.
const (
	keyFunctionCalls = "function_calls"
	keyExplanation   = "explanation"
)

// PlanRequest carries everything the planner needs for one turn.
type PlanRequest struct {
	Query              string
	History            []llm.Message
	UserContext        map[string]interface{}
	BusinessContext    map[string]interface{}
	Tools              []model.ToolDefinition
	StickyHint         string
	Mode               string
	RelevanceThreshold int
}

// PlanResult is the validated execution plan for one turn. Explanation is
// only meaningful when Calls is empty.
type PlanResult struct {
	Thoughts    []string
	Calls       []model.PlanEntry
	Explanation string
}

// Planner turns a user message into an execution plan via a structured LLM
// call, then validates, prunes and orders the resulting tool calls.
type Planner struct {
	structured *llm.StructuredClient
	composer   *PromptComposer
	log        logger.ILogger
}

func NewPlanner(structured *llm.StructuredClient, log logger.ILogger) *Planner {
	return &Planner{
		structured: structured,
		composer:   NewPromptComposer(),
		log:        log,
	}
}

// Plan runs one planning pass. When a sticky hint points at a tool that may
// not be overridden, the catalog offered to the model collapses to that tool
// alone; otherwise the hint only biases the prompt.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	tools := req.Tools
	forcedExclusive := false
	if req.StickyHint != "" {
		for _, t := range req.Tools {
			if t.Name == req.StickyHint && !t.Overridable() {
				tools = []model.ToolDefinition{t}
				forcedExclusive = true
				break
			}
		}
	}

	prompt := p.composer.Compose(req, tools, forcedExclusive)

	fragments, err := p.structured.Generate(ctx, prompt,
		[]string{llm.KeyThought, keyFunctionCalls, keyExplanation},
		p.modeOptions(req.Mode)...)
	if err != nil {
		return nil, fmt.Errorf("planning call: %w", err)
	}

	result := &PlanResult{
		Thoughts: llm.Strings(fragments, llm.KeyThought),
	}
	if raw, ok := llm.First(fragments, keyExplanation); ok {
		var explanation string
		if err := json.Unmarshal(raw, &explanation); err == nil {
			result.Explanation = explanation
		}
	}

	raw, ok := llm.First(fragments, keyFunctionCalls)
	if !ok {
		return result, nil
	}
	var rawCalls []rawCall
	if err := json.Unmarshal(raw, &rawCalls); err != nil {
		return nil, fmt.Errorf("decode function_calls: %w", err)
	}

	byName := make(map[string]model.ToolDefinition, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}

	var calls []model.PlanEntry
	for _, rc := range rawCalls {
		tool, known := byName[rc.Name]
		if !known {
			p.log.Warn("router", "planner selected unknown tool", map[string]interface{}{"tool": rc.Name})
			continue
		}
		entry := validateCall(rc, tool)
		if req.RelevanceThreshold > 0 && entry.RelevanceScore < req.RelevanceThreshold {
			p.log.Info("router", "call pruned below relevance threshold", map[string]interface{}{
				"tool":      rc.Name,
				"score":     entry.RelevanceScore,
				"threshold": req.RelevanceThreshold,
			})
			continue
		}
		calls = append(calls, entry)
	}

	result.Calls = PruneByPriority(calls, byName)
	return result, nil
}

// modeOptions maps the planner mode to sampling options. fast keeps the model
// deterministic; smart trades latency for more room to reason.
func (p *Planner) modeOptions(mode string) []llm.Option {
	switch mode {
	case model.PlannerModeSmart:
		return []llm.Option{llm.WithTemperature(0.2), llm.WithMaxTokens(1500)}
	case model.PlannerModeFastListen:
		return []llm.Option{llm.WithTemperature(0), llm.WithMaxTokens(800)}
	default:
		return []llm.Option{llm.WithTemperature(0), llm.WithMaxTokens(600)}
	}
}
