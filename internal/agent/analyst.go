package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"testforge/internal/contract"
	"testforge/internal/jsonrepair"
	"testforge/internal/llm"
	"testforge/internal/prompt"
	"testforge/internal/types"
)

// Analyst extracts the four-part requirement breakdown from a document
// and runs the confirmation gate that decides whether the pipeline may
// proceed past it.
type Analyst struct {
	deps Deps
	last *types.RequirementAnalysis
}

func NewAnalyst(deps Deps) *Analyst {
	return &Analyst{deps: deps}
}

// Analyze runs the requirement analysis stage. An empty or
// whitespace-only document short-circuits to a sentinel-filled result
// without touching the generator; there is nothing for it to analyze.
func (a *Analyst) Analyze(ctx context.Context, doc string) (types.RequirementAnalysis, error) {
	if strings.TrimSpace(doc) == "" {
		out := emptyDocumentAnalysis()
		payload, _ := json.Marshal(out)
		a.deps.persist(ctx, types.StageRequirementAnalyst, payload)
		a.last = &out
		return out, nil
	}

	filled, err := a.deps.generateWithFallback(ctx, types.StageRequirementAnalyst,
		prompt.AnalysisSpec(), map[string]any{"document": doc}, analysisFromSections)
	if err != nil {
		return types.RequirementAnalysis{}, err
	}
	var out types.RequirementAnalysis
	if err := json.Unmarshal(filled, &out); err != nil {
		return types.RequirementAnalysis{}, &StageError{Stage: types.StageRequirementAnalyst, Err: err}
	}
	a.deps.persist(ctx, types.StageRequirementAnalyst, filled)
	a.last = &out
	return out, nil
}

// Last returns the most recent analysis, if any.
func (a *Analyst) Last() (types.RequirementAnalysis, bool) {
	if a.last == nil {
		return types.RequirementAnalysis{}, false
	}
	return *a.last, true
}

// analysisSections drives the line-extraction fallback when the analysis
// response resists every structural repair. 非功能需求 must precede 功能需求
// so the longer header wins the substring match.
var analysisSections = []jsonrepair.Section{
	{Field: "non_functional_requirements", Headers: []string{"非功能需求", "non-functional requirements"}},
	{Field: "functional_requirements", Headers: []string{"功能需求", "functional requirements"}},
	{Field: "test_scenarios", Headers: []string{"测试场景", "test scenarios"}},
	{Field: "risk_areas", Headers: []string{"风险", "risk"}},
}

// analysisFromSections buckets a prose response into the four analysis
// fields. ExtractSections never fails, so this only declines when the
// result cannot be marshaled.
func analysisFromSections(text string) (json.RawMessage, bool) {
	buckets := jsonrepair.ExtractSections(text, analysisSections)
	out := types.RequirementAnalysis{
		FunctionalRequirements:    buckets["functional_requirements"],
		NonFunctionalRequirements: buckets["non_functional_requirements"],
		RiskAreas:                 buckets["risk_areas"],
	}
	for i, desc := range buckets["test_scenarios"] {
		out.TestScenarios = append(out.TestScenarios, types.TestScenario{
			ID:          fmt.Sprintf("TS%03d", i+1),
			Description: desc,
		})
	}
	raw, err := json.Marshal(out)
	return raw, err == nil
}

func emptyDocumentAnalysis() types.RequirementAnalysis {
	return types.RequirementAnalysis{
		FunctionalRequirements:    []string{contract.SentinelNeedsDetail},
		NonFunctionalRequirements: []string{contract.SentinelNeedsDetail},
		TestScenarios:             []types.TestScenario{{ID: "TS001", Description: contract.SentinelNeedsDetail}},
		RiskAreas:                 []string{contract.SentinelNeedsDetail},
	}
}

// Gate decision tokens. 需要调整 anywhere in the confirmation response
// rejects; everything else, including silence, approves.
const (
	tokenApprove  = "正确"
	tokenRevision = "需要调整"
)

// Decision is the outcome of the requirements confirmation gate.
type Decision struct {
	Approved bool
	Message  string
}

// Confirm asks the generator to double-check the analysis and parses the
// free-text answer for the gate tokens. Silence counts as approval so a
// terse or empty confirmation never stalls the pipeline; a generator
// failure at the gate is treated the same way, logged.
func (a *Analyst) Confirm(ctx context.Context, analysis types.RequirementAnalysis) Decision {
	ctx = llm.WithStage(ctx, types.StageRequirementAnalyst)
	text, err := a.deps.Client.Generate(ctx, confirmPrompt(analysis))
	if err != nil {
		a.deps.logger().Warn("agent: confirmation call failed, treating as approval",
			zap.Error(err))
		return Decision{Approved: true}
	}
	return ParseConfirmation(text)
}

// ParseConfirmation applies the gate rule to a raw confirmation answer.
func ParseConfirmation(text string) Decision {
	trimmed := strings.TrimSpace(text)
	if idx := strings.Index(trimmed, tokenRevision); idx >= 0 {
		msg := strings.TrimLeft(trimmed[idx+len(tokenRevision):], ":： \t")
		return Decision{Approved: false, Message: strings.TrimSpace(msg)}
	}
	return Decision{Approved: true, Message: trimmed}
}

func confirmPrompt(analysis types.RequirementAnalysis) string {
	b, _ := json.MarshalIndent(analysis, "", "  ")
	return fmt.Sprintf(`请检查以下需求分析结果是否完整、准确：

%s

如果分析正确，请回答"%s"。
如果需要修改，请回答"%s"，并在冒号后说明原因。`, string(b), tokenApprove, tokenRevision)
}
