package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/executor"
	"ai-support-router-be/pkg/llm"
	"ai-support-router-be/pkg/router"
	"ai-support-router-be/pkg/synthesis"
	"ai-support-router-be/pkg/telemetry"
)

const fallbackAnswer = "I'm not sure how to help with that. Could you rephrase or give me a bit more detail?"
const fatalAnswer = "Something went wrong on my side while working on that. Please try again in a moment."

// ConfigSource supplies the live catalog for each turn. Implementations read
// the config store so admin edits apply from the very next turn.
type ConfigSource interface {
	Tools() []model.ToolDefinition
	PlannerSettings() model.PlannerSettings
	UserProfile() model.UserProfile
}

// Engine drives one conversation turn through planning, concurrent tool
// execution and synthesis, streaming progress events to the client and a
// telemetry report to the admin bus.
type Engine struct {
	sessions    *Repository
	planner     *router.Planner
	executor    *executor.Executor
	synthesizer *synthesis.Generator
	config      ConfigSource
	telemetry   *telemetry.Publisher
	log         logger.ILogger
}

func NewEngine(
	sessions *Repository,
	planner *router.Planner,
	exec *executor.Executor,
	synthesizer *synthesis.Generator,
	config ConfigSource,
	tel *telemetry.Publisher,
	log logger.ILogger,
) *Engine {
	return &Engine{
		sessions:    sessions,
		planner:     planner,
		executor:    exec,
		synthesizer: synthesizer,
		config:      config,
		telemetry:   tel,
		log:         log,
	}
}

// HandleTurn runs one full turn. It never returns an error: planner or
// synthesizer failures end the turn with an error event and an apology, tool
// failures are absorbed into their outcomes. The sticky hint is consumed at
// the very start, before anything can fail, so it influences at most one turn.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, userText string, emit Emitter) {
	started := time.Now()
	state := e.sessions.LoadOrCreate(sessionID)
	stickyHint := state.StickyHint
	state.StickyHint = ""

	report := telemetry.TurnReport{
		SessionID: sessionID,
		TurnID:    uuid.NewString(),
		Query:     userText,
		StartedAt: started,
	}
	defer func() {
		report.DurationMs = time.Since(started).Milliseconds()
		if err := e.telemetry.PublishTurnReport(ctx, report); err != nil {
			e.log.Warn("session", "turn report publish failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	tools := e.config.Tools()
	settings := e.config.PlannerSettings()
	profile := e.config.UserProfile()

	byName := make(map[string]model.ToolDefinition, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}

	emit(Event{Type: EventStatus, Data: "planning"})
	plan, err := e.planner.Plan(ctx, router.PlanRequest{
		Query:              userText,
		History:            state.History,
		UserContext:        profile.Attributes,
		BusinessContext:    profile.BusinessContext,
		Tools:              tools,
		StickyHint:         stickyHint,
		Mode:               settings.Mode,
		RelevanceThreshold: settings.RelevanceThreshold,
	})
	if err != nil {
		e.failTurn(state, &report, emit, "planning failed", err)
		return
	}

	report.UnderstandingThoughts = plan.Thoughts
	for _, thought := range plan.Thoughts {
		emit(Event{Type: EventThought, Data: thought})
	}
	emit(Event{Type: EventPlan, Data: plan.Calls})

	var finalText string
	var citations map[string]model.Citation
	thinking := append([]string(nil), plan.Thoughts...)

	if len(plan.Calls) == 0 {
		// The planner answered directly or had nothing to offer.
		finalText = plan.Explanation
		if finalText == "" {
			finalText = fallbackAnswer
		}
	} else {
		emit(Event{Type: EventStatus, Data: "executing"})
		outcomes := e.executeAll(ctx, plan.Calls, byName, profile)
		report.FunctionCallsMade = buildCallReports(plan.Calls, outcomes)

		// First follow-up in plan order wins; completion order is irrelevant
		// because outcomes sit at their plan positions.
		followUp, nextSticky := firstFollowUp(outcomes)
		if followUp != "" {
			finalText = followUp
			state.StickyHint = nextSticky
			emit(Event{Type: EventAdminUpdate, Data: map[string]interface{}{
				"stage":       "follow_up_shortcut",
				"sticky_tool": nextSticky,
			}})
		} else {
			emit(Event{Type: EventStatus, Data: "synthesizing"})
			result, err := e.synthesizer.Generate(ctx, synthesis.Input{
				Query:           userText,
				History:         state.History,
				UserContext:     profile.Attributes,
				BusinessContext: profile.BusinessContext,
				Outcomes:        outcomes,
			})
			if err != nil {
				e.failTurn(state, &report, emit, "synthesis failed", err)
				return
			}
			finalText = result.Text
			citations = result.Citations
			thinking = append(thinking, result.Thoughts...)
			report.SummarizationThoughts = result.Thoughts
			for _, thought := range result.Thoughts {
				emit(Event{Type: EventThought, Data: thought})
			}
		}
	}

	state.History = append(state.History,
		llm.Message{Role: llm.RoleUser, Content: userText},
		llm.Message{Role: llm.RoleAssistant, Content: finalText},
	)
	e.sessions.Save(state)

	report.FinalResponse = finalText
	emit(Event{Type: EventFinalResponse, Data: FinalResponse{
		AIMessage:       finalText,
		Citations:       citations,
		ThinkingProcess: thinking,
	}})
}

// executeAll runs every planned call concurrently. Outcomes land at their
// plan positions regardless of completion order.
func (e *Engine) executeAll(ctx context.Context, calls []model.PlanEntry, byName map[string]model.ToolDefinition, profile model.UserProfile) []model.RetrievalOutcome {
	outcomes := make([]model.RetrievalOutcome, len(calls))
	userFields := profile.FieldAttributes()

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call model.PlanEntry) {
			defer wg.Done()
			outcomes[i] = e.executor.Execute(ctx, byName[call.ToolName], call, userFields)
		}(i, call)
	}
	wg.Wait()
	return outcomes
}

// failTurn ends a turn on a planner or synthesizer error. The session is
// saved so the sticky consumption sticks, but no history is appended: a turn
// that produced no real answer should not pollute future planning context.
func (e *Engine) failTurn(state *State, report *telemetry.TurnReport, emit Emitter, stage string, err error) {
	e.log.Error("session", stage, map[string]interface{}{
		"session_id": state.ID,
		"error":      err.Error(),
	})
	report.Error = err.Error()
	e.sessions.Save(state)
	emit(Event{Type: EventError, Data: map[string]interface{}{"message": fatalAnswer}})
}

func firstFollowUp(outcomes []model.RetrievalOutcome) (question, stickyTool string) {
	for _, o := range outcomes {
		if o.AskedForSticky && o.FollowUpQuestion != "" {
			return o.FollowUpQuestion, o.ToolName
		}
	}
	return "", ""
}

func buildCallReports(calls []model.PlanEntry, outcomes []model.RetrievalOutcome) []telemetry.CallReport {
	reports := make([]telemetry.CallReport, len(calls))
	for i, call := range calls {
		outcome := outcomes[i]
		reports[i] = telemetry.CallReport{
			ToolName:   call.ToolName,
			Query:      call.QueryArgument(),
			Arguments:  call.Arguments,
			Validation: call.Validation,
			RawResult:  &outcome,
		}
	}
	return reports
}
