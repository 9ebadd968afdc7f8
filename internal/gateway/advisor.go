package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/ecoai/sentinel/internal/llm/provider"
)

// ErrInvalidReport is returned when the backend's report does not match the
// report schema.
var ErrInvalidReport = errors.New("advisor report does not match schema")

const advisorPrompt = `As an AI Eco-Efficiency Auditor and Sentinel, evaluate this business proposal: "%s". Your goal is to define the "Eco-Efficient Choice", the intersection where ecological sustainability meets economic growth. CRITICAL AUDIT REQUIREMENTS: 1. CHALLENGE AI BIAS: Actively look for areas where the AI solution might be overkill or less efficient than non-AI alternatives. 2. ECONOMIC LOSS ASSESSMENT: Explicitly identify potential economic losses (implementation failure, technical debt, or resource waste). 3. PLANETARY IMPACT: Focus on the peacock sentinel principle, preserving biodiversity and water security. Provide a detailed analysis including metrics, social impact, and roadmap.`

// Report is the business-case audit. Field names are part of the rendering
// contract and must not change.
type Report struct {
	Metrics           ReportMetrics `json:"metrics" validate:"required"`
	TemporalBreakeven Breakeven     `json:"temporalBreakeven" validate:"required"`
	SocialImpact      SocialImpact  `json:"socialImpact" validate:"required"`
	Roadmap           []RoadmapStep `json:"roadmap" validate:"required"`
	Particulars       []Particular  `json:"particulars" validate:"required"`
	Verdict           string        `json:"verdict" validate:"required"`
}

// ReportMetrics are the headline scores. Planet and profit scores are
// percentages.
type ReportMetrics struct {
	PlanetScore float64 `json:"planetScore" validate:"required,min=0,max=100"`
	ProfitScore float64 `json:"profitScore" validate:"required,min=0,max=100"`
	WaterImpact string  `json:"waterImpact" validate:"required"`
	ROIFactor   string  `json:"roiFactor" validate:"required"`
}

// Breakeven is how long the proposal takes to pay back.
type Breakeven struct {
	Value       float64 `json:"value" validate:"required,min=0"`
	Unit        string  `json:"unit" validate:"required" description:"e.g. Months, Years"`
	Description string  `json:"description" validate:"required"`
}

// SocialImpact scores inclusion as a percentage and names the pillars it
// rests on.
type SocialImpact struct {
	Score       float64  `json:"score" validate:"required,min=0,max=100"`
	Description string   `json:"description" validate:"required"`
	Pillars     []string `json:"pillars" validate:"required"`
}

// RoadmapStep is one stage of the rollout with its expected gains and losses.
type RoadmapStep struct {
	Stage    string `json:"stage" validate:"required"`
	Timeline string `json:"timeline" validate:"required"`
	Action   string `json:"action" validate:"required"`
	Gains    string `json:"gains" validate:"required"`
	Losses   string `json:"losses" validate:"required"`
}

// Particular is a single audited variable.
type Particular struct {
	Category string `json:"category" validate:"required"`
	Variable string `json:"variable" validate:"required"`
	Value    string `json:"value" validate:"required"`
	Impact   string `json:"impact" validate:"required"`
}

// ReportSchema is the JSON schema requested from the backend.
var ReportSchema = provider.SchemaFromStruct(reflect.TypeOf(Report{}))

// Advisor audits business proposals on the deep model. It never touches a
// session ledger.
type Advisor struct {
	gateway   *Gateway
	validator *provider.JSONSchemaValidator
}

// NewAdvisor creates an advisor that calls the backend through g.
func NewAdvisor(g *Gateway) *Advisor {
	return &Advisor{
		gateway:   g,
		validator: provider.NewJSONSchemaValidator(false),
	}
}

// Analyze produces the audit report for description.
func (a *Advisor) Analyze(ctx context.Context, description string) (*Report, error) {
	g := a.gateway
	req := provider.StructuredRequest{
		CompletionRequest: provider.CompletionRequest{
			Model:    g.models.Deep,
			Messages: []provider.Message{{Role: provider.RoleUser, Content: fmt.Sprintf(advisorPrompt, description)}},
		},
		Schema:     ReportSchema,
		SchemaName: "eco_efficiency_report",
	}

	resp, err := call(ctx, g, "advise", func(ctx context.Context) (*provider.StructuredResponse, error) {
		return g.backend.CreateStructured(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("advise: %w", err)
	}

	result, err := a.validator.ValidateJSON(ReportSchema, resp.Data)
	if err != nil {
		return nil, fmt.Errorf("advise: %w", err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidReport, strings.Join(result.Errors, "; "))
	}

	var report Report
	if err := json.Unmarshal(resp.Data, &report); err != nil {
		return nil, fmt.Errorf("advise: decode report: %w", err)
	}
	return &report, nil
}
