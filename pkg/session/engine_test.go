package session

import (
	"context"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/executor"
	"ai-support-router-be/pkg/index"
	"ai-support-router-be/pkg/llm"
	"ai-support-router-be/pkg/rerank"
	"ai-support-router-be/pkg/router"
	"ai-support-router-be/pkg/synthesis"
	"ai-support-router-be/pkg/telemetry"
)

// queueProvider serves one scripted response per call and records prompts.
type queueProvider struct {
	responses []string
	prompts   []string
}

func (p *queueProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	p.prompts = append(p.prompts, prompt)
	if len(p.responses) == 0 {
		return "", nil
	}
	next := p.responses[0]
	p.responses = p.responses[1:]
	return next, nil
}

func (p *queueProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return p.Generate(ctx, "", options...)
}

type staticSearcher struct {
	matches []index.Match
}

func (s *staticSearcher) Rebuild(ctx context.Context, indexName string, entries []model.ContentEntry) error {
	return nil
}

func (s *staticSearcher) RebuildAll(ctx context.Context, entries []model.ContentEntry) error {
	return nil
}

func (s *staticSearcher) Search(ctx context.Context, indexName, query string, opts index.SearchOptions) ([]index.Match, error) {
	return s.matches, nil
}

type staticConfig struct {
	tools    []model.ToolDefinition
	settings model.PlannerSettings
	profile  model.UserProfile
}

func (c *staticConfig) Tools() []model.ToolDefinition          { return c.tools }
func (c *staticConfig) PlannerSettings() model.PlannerSettings { return c.settings }
func (c *staticConfig) UserProfile() model.UserProfile         { return c.profile }

type engineFixture struct {
	engine       *Engine
	sessions     *Repository
	plannerLLM   *queueProvider
	synthesisLLM *queueProvider
	events       []Event
}

func (f *engineFixture) emit(e Event) { f.events = append(f.events, e) }

func (f *engineFixture) eventsOfType(eventType string) []Event {
	var out []Event
	for _, e := range f.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	log := logger.NewNopLogger()

	boolFalse := false
	tools := []model.ToolDefinition{
		{
			Name:        "payroll_qna_retrieval",
			Description: "Payroll questions.",
			IndexName:   "payroll_qna",
			Parameters: []model.ToolParameter{
				{Name: "query", Type: "string", Required: true},
			},
			CanBeOverriddenWhenSticky: &boolFalse,
		},
	}
	for i := range tools {
		tools[i].Normalize()
	}

	searcher := &staticSearcher{matches: []index.Match{
		{Entry: model.ContentEntry{Title: "Payroll Setup", Body: "Go to Settings > Payroll.", SourceLink: "https://x/1"}, Similarity: 0.9},
	}}

	policies := executor.NewPolicyRegistry()
	policies.Register("payroll_qna_retrieval", &executor.FollowUpPolicy{
		Keywords: []string{"contribution"},
		Unless:   []string{"employee", "employer"},
		Question: "Employee or employer contributions?",
	})

	exec := executor.NewExecutor(searcher, rerank.NewRegistry(log), policies, 0, log)

	plannerLLM := &queueProvider{}
	synthesisLLM := &queueProvider{}

	fixture := &engineFixture{
		sessions:     NewRepository(),
		plannerLLM:   plannerLLM,
		synthesisLLM: synthesisLLM,
	}
	fixture.engine = NewEngine(
		fixture.sessions,
		router.NewPlanner(llm.NewStructuredClient(plannerLLM, log), log),
		exec,
		synthesis.NewGenerator(llm.NewStructuredClient(synthesisLLM, log), log),
		&staticConfig{
			tools:    tools,
			settings: model.PlannerSettings{Mode: model.PlannerModeFast},
			profile: model.UserProfile{
				Attributes: map[string]interface{}{"region": "US"},
			},
		},
		telemetry.NewPublisher(gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}), nil, log),
		log,
	)
	return fixture
}

func plannedCall(query string) string {
	return `{"thought": "route to payroll"}
{"function_calls": [{"name": "payroll_qna_retrieval", "arguments": {"query": "` + query + `"}, "relevance_score": 90, "required_fields_completed": 100}]}`
}

const synthesized = `{"thought": "cite the setup guide"}
{"final_response_text": "Head to Settings > Payroll [1]."}
{"citation_map": {"1": {"title": "Payroll Setup", "link": "https://x/1"}}}`

func TestHandleTurnRetrieval(t *testing.T) {
	f := newEngineFixture(t)
	f.plannerLLM.responses = []string{plannedCall("how do I add payroll?")}
	f.synthesisLLM.responses = []string{synthesized}

	f.engine.HandleTurn(context.Background(), "s1", "how do I add payroll?", f.emit)

	finals := f.eventsOfType(EventFinalResponse)
	require.Len(t, finals, 1)
	final := finals[0].Data.(FinalResponse)
	assert.Equal(t, "Head to Settings > Payroll [1].", final.AIMessage)
	require.Contains(t, final.Citations, "1")
	assert.Equal(t, "Payroll Setup", final.Citations["1"].Title)
	assert.Equal(t, []string{"route to payroll", "cite the setup guide"}, final.ThinkingProcess)

	state := f.sessions.LoadOrCreate("s1")
	require.Len(t, state.History, 2)
	assert.Equal(t, llm.RoleUser, state.History[0].Role)
	assert.Equal(t, "how do I add payroll?", state.History[0].Content)
	assert.Equal(t, llm.RoleAssistant, state.History[1].Role)
	assert.Empty(t, state.StickyHint)
}

func TestHandleTurnFollowUpAndSticky(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Turn 1: ambiguous question, the payroll policy asks a follow-up.
	f.plannerLLM.responses = []string{plannedCall("what about contributions?")}
	f.engine.HandleTurn(ctx, "s1", "what about contributions?", f.emit)

	finals := f.eventsOfType(EventFinalResponse)
	require.Len(t, finals, 1)
	assert.Equal(t, "Employee or employer contributions?", finals[0].Data.(FinalResponse).AIMessage)
	require.Len(t, f.eventsOfType(EventAdminUpdate), 1)

	state := f.sessions.LoadOrCreate("s1")
	assert.Equal(t, "payroll_qna_retrieval", state.StickyHint)
	assert.Len(t, state.History, 2, "follow-up turns still append history")

	// Turn 2: the answer routes back with the sticky hint forcing the catalog.
	f.events = nil
	f.plannerLLM.responses = []string{plannedCall("employee contributions")}
	f.synthesisLLM.responses = []string{synthesized}
	f.engine.HandleTurn(ctx, "s1", "employee contributions", f.emit)

	require.Len(t, f.plannerLLM.prompts, 2)
	assert.Contains(t, f.plannerLLM.prompts[1], "the only tool available this turn")

	finals = f.eventsOfType(EventFinalResponse)
	require.Len(t, finals, 1)
	assert.Equal(t, "Head to Settings > Payroll [1].", finals[0].Data.(FinalResponse).AIMessage)

	state = f.sessions.LoadOrCreate("s1")
	assert.Empty(t, state.StickyHint, "sticky hint is consumed by the turn that reads it")
	assert.Len(t, state.History, 4)

	// Turn 3: no hint remains, the catalog is back to normal.
	f.plannerLLM.responses = []string{plannedCall("how do I add payroll?")}
	f.synthesisLLM.responses = []string{synthesized}
	f.engine.HandleTurn(ctx, "s1", "how do I add payroll?", f.emit)
	require.Len(t, f.plannerLLM.prompts, 3)
	assert.NotContains(t, f.plannerLLM.prompts[2], "only tool available")
}

func TestHandleTurnNoCalls(t *testing.T) {
	ctx := context.Background()

	t.Run("explanation becomes the answer", func(t *testing.T) {
		f := newEngineFixture(t)
		f.plannerLLM.responses = []string{`{"thought": "just a greeting"}
{"function_calls": []}
{"explanation": "Hello! What can I help with?"}`}

		f.engine.HandleTurn(ctx, "s1", "hi", f.emit)

		finals := f.eventsOfType(EventFinalResponse)
		require.Len(t, finals, 1)
		assert.Equal(t, "Hello! What can I help with?", finals[0].Data.(FinalResponse).AIMessage)
	})

	t.Run("empty explanation falls back", func(t *testing.T) {
		f := newEngineFixture(t)
		f.plannerLLM.responses = []string{`{"thought": "nothing fits"}
{"function_calls": []}`}

		f.engine.HandleTurn(ctx, "s1", "asdfgh", f.emit)

		finals := f.eventsOfType(EventFinalResponse)
		require.Len(t, finals, 1)
		answer := finals[0].Data.(FinalResponse).AIMessage
		assert.True(t, strings.Contains(answer, "rephrase"), "got %q", answer)
	})
}

func TestHandleTurnPlannerFailure(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Leave a sticky hint behind first.
	f.plannerLLM.responses = []string{plannedCall("what about contributions?")}
	f.engine.HandleTurn(ctx, "s1", "what about contributions?", f.emit)
	require.Equal(t, "payroll_qna_retrieval", f.sessions.LoadOrCreate("s1").StickyHint)

	// Planner output is pure prose: the turn dies.
	f.events = nil
	f.plannerLLM.responses = []string{"I cannot produce JSON today."}
	f.engine.HandleTurn(ctx, "s1", "employee contributions", f.emit)

	assert.Empty(t, f.eventsOfType(EventFinalResponse))
	require.Len(t, f.eventsOfType(EventError), 1)

	state := f.sessions.LoadOrCreate("s1")
	assert.Len(t, state.History, 2, "failed turns must not pollute history")
	assert.Empty(t, state.StickyHint, "sticky consumption survives the failure")
}

func TestHandleTurnEventOrder(t *testing.T) {
	f := newEngineFixture(t)
	f.plannerLLM.responses = []string{plannedCall("how do I add payroll?")}
	f.synthesisLLM.responses = []string{synthesized}

	f.engine.HandleTurn(context.Background(), "s1", "how do I add payroll?", f.emit)

	var types []string
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		EventStatus, EventThought, EventPlan,
		EventStatus, EventStatus, EventThought,
		EventFinalResponse,
	}, types)
}
