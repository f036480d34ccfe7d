package router

import (
	"encoding/json"
	"fmt"
	"strings"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/pkg/llm"
)

// PromptComposer builds the planning prompt: role, business and user context,
// tool catalog schema, conversation narrative, sticky guidance and the
// JSON-lines output contract.
type PromptComposer struct{}

func NewPromptComposer() *PromptComposer {
	return &PromptComposer{}
}

func (c *PromptComposer) Compose(req PlanRequest, tools []model.ToolDefinition, forcedExclusive bool) string {
	var b strings.Builder

	b.WriteString("You are the routing brain of a customer support assistant. ")
	b.WriteString("Decide which tools, if any, should run to answer the user's latest message.\n\n")

	c.writeContextSection(&b, "BUSINESS CONTEXT", req.BusinessContext)
	c.writeContextSection(&b, "CURRENT USER", req.UserContext)
	c.writeCatalog(&b, tools)
	c.writeHistory(&b, req.History)
	c.writeStickyGuidance(&b, req, forcedExclusive)

	b.WriteString("USER MESSAGE:\n")
	b.WriteString(req.Query)
	b.WriteString("\n\n")

	c.writeOutputContract(&b, req.RelevanceThreshold)

	return b.String()
}

func (c *PromptComposer) writeContextSection(b *strings.Builder, title string, data map[string]interface{}) {
	if len(data) == 0 {
		return
	}
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return
	}
	b.WriteString(title + ":\n")
	b.Write(payload)
	b.WriteString("\n\n")
}

func (c *PromptComposer) writeCatalog(b *strings.Builder, tools []model.ToolDefinition) {
	b.WriteString("AVAILABLE TOOLS:\n")
	if len(tools) == 0 {
		b.WriteString("  (none)\n\n")
		return
	}
	for _, tool := range tools {
		b.WriteString(fmt.Sprintf("- %s: %s\n", tool.Name, tool.Description))
		if len(tool.Parameters) == 0 {
			continue
		}
		b.WriteString("  parameters:\n")
		for _, p := range tool.Parameters {
			requirement := "optional"
			if p.Required {
				requirement = "required"
			}
			b.WriteString(fmt.Sprintf("    %s (%s, %s): %s\n", p.Name, p.Type, requirement, p.Description))
		}
	}
	b.WriteString("\n")
}

func (c *PromptComposer) writeHistory(b *strings.Builder, history []llm.Message) {
	if len(history) == 0 {
		b.WriteString("CONVERSATION: this is the first message.\n\n")
		return
	}

	windowSize := 6
	if len(history) < windowSize {
		windowSize = len(history)
	}

	b.WriteString("CONVERSATION SO FAR:\n")
	for _, msg := range history[len(history)-windowSize:] {
		speaker := "User"
		if msg.Role == llm.RoleAssistant {
			speaker = "Assistant"
		}
		content := msg.Content
		if len(content) > 300 {
			content = content[:300] + "..."
		}
		b.WriteString(fmt.Sprintf("%s: %s\n", speaker, content))
	}
	b.WriteString("\n")
}

func (c *PromptComposer) writeStickyGuidance(b *strings.Builder, req PlanRequest, forcedExclusive bool) {
	if req.StickyHint == "" {
		return
	}
	if forcedExclusive {
		b.WriteString(fmt.Sprintf(
			"The previous turn asked the user a follow-up question on behalf of %q. "+
				"That tool is awaiting the answer and is the only tool available this turn.\n\n",
			req.StickyHint))
		return
	}
	b.WriteString(fmt.Sprintf(
		"The previous turn asked the user a follow-up question on behalf of %q. "+
			"If the message reads like an answer to that question, strongly prefer that tool; "+
			"if the user changed topic, route normally.\n\n",
		req.StickyHint))
}

func (c *PromptComposer) writeOutputContract(b *strings.Builder, relevanceThreshold int) {
	b.WriteString("Respond with JSON lines, one JSON object per line, in this order:\n")
	b.WriteString(`1. {"thought": "..."} : 2 to 4 lines of reasoning about what the user needs.` + "\n")
	b.WriteString(`2. {"function_calls": [{"name": "...", "arguments": {...}, "relevance_score": 0-100, "required_fields_completed": 0-100}]} : the tools to run. Emit exactly one function_calls line. Use an empty array when no tool applies.` + "\n")
	b.WriteString(`3. {"explanation": "..."} : only when function_calls is empty, a direct answer or a clarifying question for the user.` + "\n")
	if relevanceThreshold > 0 {
		b.WriteString(fmt.Sprintf("Only include calls you score at %d relevance or higher.\n", relevanceThreshold))
	}
	b.WriteString("No prose outside the JSON lines.\n")
}
