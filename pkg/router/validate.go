package router

import (
	"fmt"
	"strings"

	"ai-support-router-be/internal/model"
)

// rawCall is one entry of the model's function_calls array before validation.
// Score fields sometimes arrive nested inside arguments; both spots are read.
type rawCall struct {
	Name                    string                 `json:"name"`
	Arguments               map[string]interface{} `json:"arguments"`
	RelevanceScore          interface{}            `json:"relevance_score"`
	RequiredFieldsCompleted interface{}            `json:"required_fields_completed"`
}

// validateCall checks one raw call against its tool schema and produces a
// coerced plan entry. Validation never rejects the call outright; problems
// are recorded in the entry's ValidationDetail so downstream stages and the
// telemetry stream can act on them.
func validateCall(raw rawCall, tool model.ToolDefinition) model.PlanEntry {
	entry := model.PlanEntry{
		ToolName:  tool.Name,
		Arguments: make(map[string]interface{}),
	}
	var problems []string

	args := raw.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}

	relevanceRaw := raw.RelevanceScore
	if relevanceRaw == nil {
		relevanceRaw = popArg(args, "relevance_score")
	}
	fieldsRaw := raw.RequiredFieldsCompleted
	if fieldsRaw == nil {
		fieldsRaw = popArg(args, "required_fields_completed")
	}

	score, ok := coerceScore(relevanceRaw)
	entry.RelevanceScore = score
	if !ok {
		entry.Validation.RelevanceScoreError = true
		problems = append(problems, "relevance_score out of range or malformed")
	}

	score, ok = coerceScore(fieldsRaw)
	entry.RequiredFieldsCompleted = score
	if !ok {
		entry.Validation.RequiredFieldsCompletedError = true
		problems = append(problems, "required_fields_completed out of range or malformed")
	}

	for _, param := range tool.Parameters {
		value, present := args[param.Name]
		if !present {
			if param.Required {
				entry.Validation.MissingRequiredParams = append(entry.Validation.MissingRequiredParams, param.Name)
				problems = append(problems, fmt.Sprintf("missing required param %q", param.Name))
			}
			continue
		}

		coerced, valid := CoerceValue(value, param.Type)
		if !valid {
			if param.Required {
				entry.Validation.MissingRequiredParams = append(entry.Validation.MissingRequiredParams, param.Name)
				problems = append(problems, fmt.Sprintf("required param %q not coercible to %s", param.Name, param.Type))
			} else {
				entry.Validation.InvalidOptionalParams = append(entry.Validation.InvalidOptionalParams, param.Name)
				problems = append(problems, fmt.Sprintf("optional param %q not coercible to %s, dropped", param.Name, param.Type))
			}
			continue
		}
		entry.Arguments[param.Name] = coerced
		entry.Validation.FieldsFound = append(entry.Validation.FieldsFound, param.Name)
	}

	// Undeclared arguments pass through untouched; handlers may accept more
	// than the schema advertises.
	for name, value := range args {
		if _, declared := tool.Param(name); !declared {
			entry.Arguments[name] = value
		}
	}

	if len(problems) > 0 {
		entry.Validation.Message = strings.Join(problems, "; ")
	}
	return entry
}

func popArg(args map[string]interface{}, key string) interface{} {
	v, ok := args[key]
	if !ok {
		return nil
	}
	delete(args, key)
	return v
}
