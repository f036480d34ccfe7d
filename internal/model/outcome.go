package model

// RetrievedChunk is one piece of content surfaced by a tool, ready for
// citation in the final answer.
type RetrievedChunk struct {
	Content     string `json:"chunk_content"`
	SourceTitle string `json:"source_title"`
	SourceLink  string `json:"source_link,omitempty"`
}

// RetrievalOutcome is the result of executing one planned tool call. Failures
// are absorbed here rather than propagated; a turn only dies on planner or
// synthesizer errors.
type RetrievalOutcome struct {
	ToolName         string           `json:"tool_name"`
	Query            string           `json:"query,omitempty"`
	Chunks           []RetrievedChunk `json:"chunks,omitempty"`
	PresentAsIs      bool             `json:"present_as_is"`
	FollowUpQuestion string           `json:"follow_up_question,omitempty"`
	AskedForSticky   bool             `json:"asked_for_sticky,omitempty"`
	Rejected         bool             `json:"rejected"`
	RejectionReason  string           `json:"rejection_reason,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// Succeeded reports whether the outcome carries usable content.
func (o RetrievalOutcome) Succeeded() bool {
	return !o.Rejected && o.Error == "" && len(o.Chunks) > 0
}

// ValidationDetail records per-field validation results for one planned call.
// Kept verbose on purpose so the admin telemetry stream can show exactly why
// a call was accepted or flagged.
type ValidationDetail struct {
	RelevanceScoreError          bool     `json:"relevance_score_error,omitempty"`
	RequiredFieldsCompletedError bool     `json:"required_fields_completed_error,omitempty"`
	MissingRequiredParams        []string `json:"missing_required_params,omitempty"`
	InvalidOptionalParams        []string `json:"invalid_optional_params,omitempty"`
	FieldsFound                  []string `json:"fields_found,omitempty"`
	Message                      string   `json:"message,omitempty"`
}

// OK reports whether the call passed validation cleanly.
func (v ValidationDetail) OK() bool {
	return !v.RelevanceScoreError && !v.RequiredFieldsCompletedError &&
		len(v.MissingRequiredParams) == 0 && len(v.InvalidOptionalParams) == 0
}

// PlanEntry is one validated, coerced call in an execution plan. Arguments
// hold only coerced parameter values; scoring fields live alongside.
type PlanEntry struct {
	ToolName                string                 `json:"tool_name"`
	Arguments               map[string]interface{} `json:"arguments"`
	RelevanceScore          int                    `json:"relevance_score"`
	RequiredFieldsCompleted int                    `json:"required_fields_completed"`
	Validation              ValidationDetail       `json:"validation"`
}

// QueryArgument extracts the natural-language query of a planned call,
// falling back across the argument names planners actually emit.
func (p PlanEntry) QueryArgument() string {
	for _, key := range []string{"query", "data_request", "question"} {
		if v, ok := p.Arguments[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Citation maps a numeric citation id to its source.
type Citation struct {
	Title string `json:"title"`
	Link  string `json:"link,omitempty"`
}
