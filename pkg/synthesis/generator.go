package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/llm"
)

// Structured keys expected from the synthesis call.
const (
	keyFinalResponse = "final_response_text"
	keyCitationMap   = "citation_map"
)

var citationRef = regexp.MustCompile(`\[(\d+)\]`)

// Input is everything synthesis needs for one turn.
type Input struct {
	Query           string
	History         []llm.Message
	UserContext     map[string]interface{}
	BusinessContext map[string]interface{}
	Outcomes        []model.RetrievalOutcome
}

// Result is the synthesized answer. Citations maps numeric ids appearing as
// [n] in Text to their sources. UsedLLM is false on the local paths.
type Result struct {
	Thoughts  []string
	Text      string
	Citations map[string]model.Citation
	UsedLLM   bool
}

// Generator produces the final user-facing answer from tool outcomes. Turns
// where every tool was rejected are answered locally without an LLM call;
// anything with usable content goes through the structured synthesis prompt.
type Generator struct {
	structured *llm.StructuredClient
	log        logger.ILogger
}

func NewGenerator(structured *llm.StructuredClient, log logger.ILogger) *Generator {
	return &Generator{structured: structured, log: log}
}

func (g *Generator) Generate(ctx context.Context, in Input) (*Result, error) {
	var successes, rejections []model.RetrievalOutcome
	for _, o := range in.Outcomes {
		if o.Succeeded() {
			successes = append(successes, o)
		} else {
			rejections = append(rejections, o)
		}
	}

	if len(successes) == 0 {
		return g.generateLocal(rejections), nil
	}
	return g.generateWithModel(ctx, in, successes, rejections)
}

// generateLocal answers an all-rejected turn without the model. Verbatim
// content attached to a rejected outcome (a policy answer that also rejects
// follow-through) is surfaced first; otherwise the rejection reasons are
// relayed plainly.
func (g *Generator) generateLocal(rejections []model.RetrievalOutcome) *Result {
	var verbatim []string
	for _, o := range rejections {
		if !o.PresentAsIs {
			continue
		}
		for _, chunk := range o.Chunks {
			verbatim = append(verbatim, chunk.Content)
		}
	}
	if len(verbatim) > 0 {
		return &Result{Text: strings.Join(verbatim, "\n\n")}
	}

	var b strings.Builder
	b.WriteString("I wasn't able to find an answer for that.")
	seen := make(map[string]bool)
	for _, o := range rejections {
		reason := o.RejectionReason
		if reason == "" || seen[reason] {
			continue
		}
		seen[reason] = true
		b.WriteString(" ")
		b.WriteString(reason)
		if !strings.HasSuffix(reason, ".") {
			b.WriteString(".")
		}
	}
	return &Result{Text: b.String()}
}

func (g *Generator) generateWithModel(ctx context.Context, in Input, successes, rejections []model.RetrievalOutcome) (*Result, error) {
	sources := collectSources(successes)
	prompt := g.composePrompt(in, successes, rejections, sources)

	fragments, err := g.structured.Generate(ctx, prompt,
		[]string{llm.KeyThought, keyFinalResponse, keyCitationMap},
		llm.WithTemperature(0.3))
	if err != nil {
		return nil, fmt.Errorf("synthesis call: %w", err)
	}

	result := &Result{
		Thoughts: llm.Strings(fragments, llm.KeyThought),
		UsedLLM:  true,
	}

	raw, ok := llm.First(fragments, keyFinalResponse)
	if !ok {
		return nil, fmt.Errorf("synthesis response missing %s", keyFinalResponse)
	}
	if err := json.Unmarshal(raw, &result.Text); err != nil {
		return nil, fmt.Errorf("decode %s: %w", keyFinalResponse, err)
	}

	result.Citations = g.resolveCitations(fragments, result.Text, sources)
	return result, nil
}

// resolveCitations merges the model's citation_map with the authoritative
// source list: every [n] referenced in the text gets an entry, and ids the
// model invented for unknown sources are dropped.
func (g *Generator) resolveCitations(fragments []llm.Fragment, text string, sources []model.Citation) map[string]model.Citation {
	citations := make(map[string]model.Citation)

	if raw, ok := llm.First(fragments, keyCitationMap); ok {
		var fromModel map[string]model.Citation
		if err := json.Unmarshal(raw, &fromModel); err == nil {
			for id, c := range fromModel {
				if n, err := strconv.Atoi(id); err == nil && n >= 1 && n <= len(sources) {
					citations[id] = c
				}
			}
		} else {
			g.log.Warn("synthesis", "citation_map malformed, rebuilding locally", map[string]interface{}{"error": err.Error()})
		}
	}

	for _, ref := range citationRef.FindAllStringSubmatch(text, -1) {
		id := ref[1]
		if _, ok := citations[id]; ok {
			continue
		}
		if n, err := strconv.Atoi(id); err == nil && n >= 1 && n <= len(sources) {
			citations[id] = sources[n-1]
		}
	}

	if len(citations) == 0 {
		return nil
	}
	return citations
}

// collectSources assigns stable 1-based citation ids to the unique sources
// across all successful outcomes, in outcome order.
func collectSources(successes []model.RetrievalOutcome) []model.Citation {
	var sources []model.Citation
	seen := make(map[string]bool)
	for _, o := range successes {
		for _, chunk := range o.Chunks {
			key := chunk.SourceTitle + "|" + chunk.SourceLink
			if seen[key] {
				continue
			}
			seen[key] = true
			sources = append(sources, model.Citation{Title: chunk.SourceTitle, Link: chunk.SourceLink})
		}
	}
	return sources
}

func (g *Generator) composePrompt(in Input, successes, rejections []model.RetrievalOutcome, sources []model.Citation) string {
	var b strings.Builder

	b.WriteString("You are a customer support assistant writing the final reply. ")
	b.WriteString("Answer using only the retrieved material below.\n\n")

	if len(in.BusinessContext) > 0 {
		if payload, err := json.MarshalIndent(in.BusinessContext, "", "  "); err == nil {
			b.WriteString("BUSINESS CONTEXT:\n")
			b.Write(payload)
			b.WriteString("\n\n")
		}
	}
	if len(in.UserContext) > 0 {
		if payload, err := json.MarshalIndent(in.UserContext, "", "  "); err == nil {
			b.WriteString("CURRENT USER:\n")
			b.Write(payload)
			b.WriteString("\n\n")
		}
	}

	sourceID := make(map[string]int, len(sources))
	for i, s := range sources {
		sourceID[s.Title+"|"+s.Link] = i + 1
	}

	b.WriteString("RETRIEVED MATERIAL:\n")
	for _, o := range successes {
		for _, chunk := range o.Chunks {
			id := sourceID[chunk.SourceTitle+"|"+chunk.SourceLink]
			b.WriteString(fmt.Sprintf("[%d] %s (via %s)", id, chunk.SourceTitle, o.ToolName))
			if o.PresentAsIs {
				b.WriteString(" [MUST BE QUOTED VERBATIM, DO NOT REWORD]")
			}
			b.WriteString(":\n")
			b.WriteString(chunk.Content)
			b.WriteString("\n\n")
		}
	}

	if len(rejections) > 0 {
		b.WriteString("SUB-QUESTIONS THAT COULD NOT BE ANSWERED:\n")
		for _, o := range rejections {
			reason := o.RejectionReason
			if reason == "" {
				reason = "no result"
			}
			b.WriteString(fmt.Sprintf("- %s: %s\n", o.ToolName, reason))
		}
		b.WriteString("Mention these briefly, do not apologize at length.\n")
		b.WriteString("\n")
	}

	b.WriteString("USER MESSAGE:\n")
	b.WriteString(in.Query)
	b.WriteString("\n\n")

	b.WriteString("Respond with JSON lines, one JSON object per line:\n")
	b.WriteString(`1. {"thought": "..."} : 1 to 3 lines on how you will compose the answer.` + "\n")
	b.WriteString(`2. {"final_response_text": "..."} : the reply to the user. Cite sources inline as [1], [2] using the ids above. Verbatim-flagged material must appear word for word.` + "\n")
	b.WriteString(`3. {"citation_map": {"1": {"title": "...", "link": "..."}}} : the sources you actually cited.` + "\n")
	b.WriteString("No prose outside the JSON lines.\n")

	return b.String()
}
