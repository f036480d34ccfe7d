package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"ai-support-router-be/internal/configstore"
	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/events"
	"ai-support-router-be/pkg/executor"
	pktNats "ai-support-router-be/pkg/nats"
)

// Tool names with built-in behavior. The catalog entries themselves live in
// the config store; these bindings only attach when a tool with the matching
// name exists there.
const (
	ToolPayrollQnA     = "payroll_qna_retrieval"
	ToolGeneralSupport = "general_product_support_retrieval"
	ToolLegal          = "legal_compliance_retrieval"
	ToolUserData       = "user_data_query"
)

const legalDisclaimer = "I can share general information, but this is not legal advice. " +
	"Regulations differ by region and change often; please consult a qualified professional " +
	"before acting on compliance or legal matters."

// DefaultPolicies wires the built-in guardrails:
//   - the legal tool always answers with its reviewed disclaimer, verbatim
//   - payroll contribution questions need a clarifying follow-up before any
//     retrieval is useful, and the answer should route back to payroll
//   - the general support tool refuses payroll and legal questions, which
//     have dedicated owners
func DefaultPolicies() *executor.PolicyRegistry {
	policies := executor.NewPolicyRegistry()

	policies.Register(ToolLegal, &executor.FixedResponsePolicy{
		Content:     legalDisclaimer,
		SourceTitle: "Compliance Notice",
	})

	policies.Register(ToolPayrollQnA, &executor.FollowUpPolicy{
		Keywords: []string{"contribution"},
		Unless:   []string{"employee", "employer"},
		Question: "Happy to help with contributions. Are you asking about employee contributions or employer contributions?",
	})

	policies.Register(ToolGeneralSupport, executor.NewRedirectPolicy(
		`\b(payroll|legal|lawsuit|compliance)\b`,
		"This question belongs to a specialist area (payroll or legal), not general product support.",
	))

	return policies
}

// RegisterDefaultHandlers binds non-retrieval tools to their handlers.
func RegisterDefaultHandlers(exec *executor.Executor, store *configstore.Store) {
	exec.RegisterHandler(ToolUserData, executor.HandlerFunc(
		func(ctx context.Context, tool model.ToolDefinition, call model.PlanEntry) model.RetrievalOutcome {
			profile := store.LoadUser()
			if len(profile.Attributes) == 0 {
				return model.RetrievalOutcome{
					ToolName:        tool.Name,
					Query:           call.QueryArgument(),
					Rejected:        true,
					RejectionReason: "no user profile data available",
				}
			}

			payload, err := json.MarshalIndent(profile.Attributes, "", "  ")
			if err != nil {
				return model.RetrievalOutcome{
					ToolName:        tool.Name,
					Query:           call.QueryArgument(),
					Error:           err.Error(),
					Rejected:        true,
					RejectionReason: "user profile unreadable",
				}
			}
			return model.RetrievalOutcome{
				ToolName: tool.Name,
				Query:    call.QueryArgument(),
				Chunks: []model.RetrievedChunk{{
					Content:     fmt.Sprintf("Account data on file:\n%s", payload),
					SourceTitle: "Account Profile",
				}},
			}
		}))
}

// startAuditConsumer tails completed turns from NATS into the isolated log,
// giving a durable audit trail that survives websocket watchers.
func startAuditConsumer(sub *pktNats.Subscriber, auditLog logger.ILogger) {
	err := sub.Subscribe("telemetry.>", "turn-audit", func(ctx context.Context, event events.Event) error {
		auditLog.Info("Audit", "turn completed", event.Payload())
		return nil
	})
	if err != nil {
		log.Printf("[WARN] Failed to start audit consumer: %v", err)
	}
}
