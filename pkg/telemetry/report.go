package telemetry

import (
	"time"

	"ai-support-router-be/internal/model"
)

// CallReport is the execution record of one planned call, raw outcome
// included. Admin views show these untouched, so nothing is elided.
type CallReport struct {
	ToolName   string                  `json:"tool_name"`
	Query      string                  `json:"query,omitempty"`
	Arguments  map[string]interface{}  `json:"arguments,omitempty"`
	Validation model.ValidationDetail  `json:"validation"`
	RawResult  *model.RetrievalOutcome `json:"raw_result,omitempty"`
}

// TurnReport is the full telemetry record of one conversation turn.
type TurnReport struct {
	SessionID             string       `json:"session_id"`
	TurnID                string       `json:"turn_id"`
	Query                 string       `json:"query"`
	UnderstandingThoughts []string     `json:"understanding_thoughts,omitempty"`
	FunctionCallsMade     []CallReport `json:"function_calls_made,omitempty"`
	SummarizationThoughts []string     `json:"summarization_thoughts,omitempty"`
	FinalResponse         string       `json:"final_response,omitempty"`
	Error                 string       `json:"error,omitempty"`
	StartedAt             time.Time    `json:"started_at"`
	DurationMs            int64        `json:"duration_ms"`
}
