package router

import "ai-support-router-be/internal/model"

// PruneByPriority keeps only the calls whose tools share the minimum selected
// priority value. Lower numbers win; relative order of survivors is kept.
// Calls naming unknown tools are assumed filtered out already.
func PruneByPriority(entries []model.PlanEntry, tools map[string]model.ToolDefinition) []model.PlanEntry {
	if len(entries) <= 1 {
		return entries
	}

	minPriority := 0
	for i, e := range entries {
		p := tools[e.ToolName].Priority
		if i == 0 || p < minPriority {
			minPriority = p
		}
	}

	var kept []model.PlanEntry
	for _, e := range entries {
		if tools[e.ToolName].Priority == minPriority {
			kept = append(kept, e)
		}
	}
	return kept
}
