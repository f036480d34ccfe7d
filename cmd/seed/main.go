package main

import (
	"log"

	"ai-support-router-be/internal/config"
	"ai-support-router-be/internal/configstore"
	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
)

func boolPtr(b bool) *bool { return &b }

// Seeds the config store with a starter catalog: four tools, a small content
// set spread over two indexes, planner defaults and a demo user profile.
func main() {
	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, false)

	store, err := configstore.NewStore(cfg.App.ConfigDir, sysLogger)
	if err != nil {
		log.Fatalf("open config store: %v", err)
	}

	tools := []model.ToolDefinition{
		{
			Name:        "payroll_qna_retrieval",
			Description: "Answers questions about payroll setup, taxes, deductions and contributions.",
			Priority:    10,
			IndexName:   "payroll_qna",
			TopK:        2,
			Parameters: []model.ToolParameter{
				{Name: "query", Type: "string", Required: true, Description: "The payroll question, rephrased standalone."},
			},
			UserFieldsMapping:         map[string]model.FieldValues{"region": {"US", "CA", "UK"}},
			DisambiguationLevel:       5,
			CanBeOverriddenWhenSticky: boolPtr(false),
		},
		{
			Name:        "general_product_support_retrieval",
			Description: "Answers general product usage questions: navigation, invoices, reports, settings.",
			Priority:    50,
			DisplayMode: model.DisplaySummarizable,
			IndexName:   "product_support",
			TopK:        3,
			Reranker:    model.RerankerTop3,
			Parameters: []model.ToolParameter{
				{Name: "query", Type: "string", Required: true, Description: "The support question, rephrased standalone."},
			},
		},
		{
			Name:        "legal_compliance_retrieval",
			Description: "Handles legal, regulatory and compliance questions.",
			Priority:    10,
			Parameters: []model.ToolParameter{
				{Name: "query", Type: "string", Required: true, Description: "The legal or compliance question."},
			},
		},
		{
			Name:        "user_data_query",
			Description: "Looks up the user's own account data: plan, region, company details.",
			Priority:    20,
			Parameters: []model.ToolParameter{
				{Name: "data_request", Type: "string", Required: true, Description: "What account data the user wants."},
			},
		},
	}
	if err := store.SaveTools(tools); err != nil {
		log.Fatalf("seed tools: %v", err)
	}

	content := []model.ContentEntry{
		{
			Title:        "Payroll Setup",
			Body:         "To set up payroll, go to Settings > Payroll, connect your bank account, then add each employee with their salary and tax details. Run your first pay cycle in draft mode to verify the numbers.",
			IndexName:    "payroll_qna",
			QueryStrings: []string{"add payroll", "set up payroll", "enable payroll"},
			SourceLink:   "https://help.example.com/payroll/setup",
		},
		{
			Title:             "State Tax Withholding",
			Body:              "State tax withholding is configured per employee under their tax profile. Rates update automatically each January.",
			IndexName:         "payroll_qna",
			QueryStrings:      []string{"state tax", "withholding setup"},
			UserFieldsMapping: map[string]model.FieldValues{"region": {"US"}},
			SourceLink:        "https://help.example.com/payroll/state-tax",
		},
		{
			Title:             "Pension Auto-Enrolment",
			Body:              "Workplace pension auto-enrolment runs through the payroll pension tab. Eligible employees are enrolled on their start date.",
			IndexName:         "payroll_qna",
			QueryStrings:      []string{"pension", "auto enrolment"},
			UserFieldsMapping: map[string]model.FieldValues{"region": {"UK"}},
			Tags:              []string{"SDR"},
			SourceLink:        "https://help.example.com/payroll/pension",
		},
		{
			Title:        "Creating Invoices",
			Body:         "Create an invoice from the + button on the dashboard or from a customer page. Invoices can be emailed directly or downloaded as PDF.",
			IndexName:    "product_support",
			QueryStrings: []string{"new invoice", "send invoice", "make an invoice"},
			SourceLink:   "https://help.example.com/invoices/create",
		},
		{
			Title:        "Monthly Reports",
			Body:         "The Reports tab builds profit and loss, cash flow and balance sheet reports for any date range. Reports can be exported to CSV.",
			IndexName:    "product_support",
			QueryStrings: []string{"profit and loss", "export report", "monthly report"},
			SourceLink:   "https://help.example.com/reports",
		},
	}
	if err := store.SaveContent(content); err != nil {
		log.Fatalf("seed content: %v", err)
	}

	if err := store.SavePlanner(model.PlannerSettings{
		Mode:               model.PlannerModeFast,
		RelevanceThreshold: 40,
	}); err != nil {
		log.Fatalf("seed planner: %v", err)
	}

	if err := store.SaveUser(model.UserProfile{
		Attributes: map[string]interface{}{
			"name":    "Dana Example",
			"region":  "US",
			"plan":    "Plus",
			"company": "Example Coffee Roasters LLC",
		},
		BusinessContext: map[string]interface{}{
			"industry":  "food and beverage",
			"employees": 12,
			"summary":   "Small coffee roastery running payroll for 12 staff and invoicing wholesale customers.",
		},
	}); err != nil {
		log.Fatalf("seed user: %v", err)
	}

	log.Printf("Seeded catalog into %s: %d tools, %d content entries", cfg.App.ConfigDir, len(tools), len(content))
}
