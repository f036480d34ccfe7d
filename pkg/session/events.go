package session

import "ai-support-router-be/internal/model"

// Event types streamed to the chat client over the turn.
const (
	EventThought       = "thought"
	EventPlan          = "plan"
	EventStatus        = "status"
	EventFinalResponse = "final_response"
	EventAdminUpdate   = "admin_update"
	EventError         = "error"
)

// Event is one item of the turn's client stream.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Emitter receives turn events in order. Implementations must be safe to call
// from the turn goroutine only; the engine never emits concurrently.
type Emitter func(Event)

// FinalResponse is the payload of the final_response event.
type FinalResponse struct {
	AIMessage       string                    `json:"ai_message"`
	Citations       map[string]model.Citation `json:"citations,omitempty"`
	ThinkingProcess []string                  `json:"thinking_process,omitempty"`
}
