// Package contract enforces the per-stage data schema: required keys,
// list-typed fields, non-emptiness, identifier uniqueness, and priority
// normalization. Validation never rejects repairable input; it coerces and
// default-fills first and only reports not-ok when the result would still
// be unusable downstream.
package contract

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"testforge/internal/types"
)

var (
	scenarioIDRe = regexp.MustCompile(`^TS[0-9]{3,}$`)
	caseIDRe     = regexp.MustCompile(`^TC[0-9]{3,}$`)
)

// Validator holds compiled stage schemas. Fill happens first; the schema
// check then confirms the filled value is structurally sound before it is
// handed to the next stage.
type Validator struct {
	log     *zap.Logger
	schemas map[string]*gojsonschema.Schema
}

func NewValidator(log *zap.Logger) (*Validator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	schemas := make(map[string]*gojsonschema.Schema, len(stageSchemas))
	for stage, doc := range stageSchemas {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
		if err != nil {
			return nil, fmt.Errorf("contract: compile schema for %s: %w", stage, err)
		}
		schemas[stage] = s
	}
	return &Validator{log: log, schemas: schemas}, nil
}

// Validate confirms a structured value satisfies the named stage's schema,
// applying default-fill along the way. The returned payload is the filled,
// canonical form regardless of ok; ok is false only when the value is
// unusable even after fill (e.g. zero valid test cases).
func (v *Validator) Validate(stage string, raw json.RawMessage) (bool, json.RawMessage) {
	var filled any
	ok := false
	switch stage {
	case types.StageRequirementAnalyst:
		filled, ok = v.fillAnalysis(raw)
	case types.StageTestDesigner:
		filled, ok = v.fillStrategy(raw)
	case types.StageTestCaseWriter:
		filled, ok = v.fillCases(raw)
	case types.StageQualityReviewer:
		filled, ok = v.fillReview(raw)
	default:
		v.log.Warn("contract: unknown stage", zap.String("stage", stage))
		return false, nil
	}
	out, err := json.Marshal(filled)
	if err != nil {
		v.log.Error("contract: marshal filled value", zap.String("stage", stage), zap.Error(err))
		return false, nil
	}
	if schema, exists := v.schemas[stage]; exists {
		res, err := schema.Validate(gojsonschema.NewBytesLoader(out))
		if err != nil || !res.Valid() {
			for _, desc := range schemaErrors(res) {
				v.log.Warn("contract: schema violation", zap.String("stage", stage), zap.String("detail", desc))
			}
			return false, out
		}
	}
	return ok, out
}

func schemaErrors(res *gojsonschema.Result) []string {
	if res == nil {
		return []string{"schema validation errored"}
	}
	out := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		out = append(out, e.String())
	}
	return out
}

// fillAnalysis repairs a requirement-analysis payload: all four lists end
// up non-empty and scenario IDs unique in the TS%03d scheme.
func (v *Validator) fillAnalysis(raw json.RawMessage) (types.RequirementAnalysis, bool) {
	m := decodeObject(raw)
	out := types.RequirementAnalysis{
		FunctionalRequirements:    fillIfEmpty(asStringList(m["functional_requirements"]), SentinelNeedsDetail),
		NonFunctionalRequirements: fillIfEmpty(asStringList(m["non_functional_requirements"]), SentinelNeedsDetail),
		RiskAreas:                 fillIfEmpty(asStringList(m["risk_areas"]), SentinelNeedsDetail),
		TestScenarios:             coerceScenarios(m["test_scenarios"]),
	}
	if len(out.TestScenarios) == 0 {
		out.TestScenarios = []types.TestScenario{{Description: SentinelNeedsDetail}}
	}
	RenumberScenarios(out.TestScenarios)
	return out, true
}

// coerceScenarios accepts both the rich object form and the bare string
// list the generator sometimes produces.
func coerceScenarios(v any) []types.TestScenario {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if s := asString(x); s != "" {
			return []types.TestScenario{{Description: s}}
		}
		return nil
	case []any:
		out := make([]types.TestScenario, 0, len(x))
		for _, item := range x {
			switch e := item.(type) {
			case string:
				if s := asString(e); s != "" {
					out = append(out, types.TestScenario{Description: s})
				}
			case map[string]any:
				sc := types.TestScenario{
					ID:          asString(e["id"]),
					Description: asString(e["description"]),
					TestCaseIDs: asStringList(e["test_case_ids"]),
				}
				if sc.Description == "" {
					sc.Description = asString(e["title"])
				}
				if sc.Description != "" || sc.ID != "" {
					out = append(out, sc)
				}
			}
		}
		return out
	default:
		return nil
	}
}

// RenumberScenarios assigns TS%03d identifiers positionally wherever an ID
// is missing, off-scheme, or collides with an earlier one. Renumbering is
// deterministic: position decides, not the colliding value.
func RenumberScenarios(scenarios []types.TestScenario) {
	seen := make(map[string]bool, len(scenarios))
	for i := range scenarios {
		id := scenarios[i].ID
		if !scenarioIDRe.MatchString(id) || seen[id] {
			id = fmt.Sprintf("TS%03d", i+1)
		}
		scenarios[i].ID = id
		seen[id] = true
	}
}

func (v *Validator) fillStrategy(raw json.RawMessage) (types.TestStrategy, bool) {
	m := decodeObject(raw)
	approach := asMap(m["test_approach"])
	est := asMap(m["resource_estimation"])
	out := types.TestStrategy{
		TestApproach: types.TestApproach{
			Methodology: fillIfEmpty(asStringList(approach["methodology"]), SentinelNeedsDetail),
			Tools:       fillIfEmpty(asStringList(approach["tools"]), SentinelNeedsDetail),
			Frameworks:  fillIfEmpty(asStringList(approach["frameworks"]), SentinelNeedsDetail),
		},
		CoverageMatrix: coerceCoverage(m["coverage_matrix"]),
		Priorities:     coercePriorities(m["priorities"]),
		ResourceEstimation: types.ResourceEstimation{
			Time:                orDefault(asString(est["time"]), SentinelPending),
			Personnel:           orDefault(asString(est["personnel"]), SentinelPending),
			Tools:               fillIfEmpty(asStringList(est["tools"]), SentinelNeedsDetail),
			AdditionalResources: asStringList(est["additional_resources"]),
		},
	}
	if len(out.CoverageMatrix) == 0 {
		out.CoverageMatrix = []types.CoverageItem{{Feature: SentinelNeedsDetail, TestType: DefaultCategory}}
	}
	if len(out.Priorities) == 0 {
		out.Priorities = []types.PriorityLevel{{Level: DefaultPriority, Description: SentinelNeedsDetail}}
	}
	return out, true
}

func coerceCoverage(v any) []types.CoverageItem {
	items, _ := v.([]any)
	out := make([]types.CoverageItem, 0, len(items))
	for _, item := range items {
		m := asMap(item)
		if m == nil {
			continue
		}
		ci := types.CoverageItem{
			Feature:  asString(m["feature"]),
			TestType: orDefault(asString(m["test_type"]), DefaultCategory),
		}
		if ci.Feature != "" {
			out = append(out, ci)
		}
	}
	return out
}

func coercePriorities(v any) []types.PriorityLevel {
	items, _ := v.([]any)
	out := make([]types.PriorityLevel, 0, len(items))
	for _, item := range items {
		m := asMap(item)
		if m == nil {
			continue
		}
		pl := types.PriorityLevel{
			Level:       NormalizePriority(asString(m["level"])),
			Description: asString(m["description"]),
		}
		out = append(out, pl)
	}
	return out
}

// fillCases repairs a test-case batch. Cases missing both title and steps
// are dropped; everything else is coerced into shape. ok is false when no
// usable case survives, which is what triggers the stage's single retry.
func (v *Validator) fillCases(raw json.RawMessage) (map[string]any, bool) {
	cases := FillTestCases(decodeCaseList(raw))
	return map[string]any{"test_cases": cases}, len(cases) > 0
}

// decodeCaseList accepts {"test_cases": [...]} or a bare array.
func decodeCaseList(raw json.RawMessage) []any {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil
	}
	switch x := top.(type) {
	case []any:
		return x
	case map[string]any:
		if list, ok := x["test_cases"].([]any); ok {
			return list
		}
	}
	return nil
}

// FillTestCases coerces raw decoded cases to the TestCase contract:
// non-empty title and steps required, expected results padded to the step
// count with the completion placeholder, priority normalized, category
// defaulted, IDs renumbered positionally on absence or collision.
func FillTestCases(items []any) []types.TestCase {
	out := make([]types.TestCase, 0, len(items))
	for _, item := range items {
		m := asMap(item)
		if m == nil {
			continue
		}
		tc := types.TestCase{
			ID:                 asString(m["id"]),
			Title:              asString(m["title"]),
			Preconditions:      asStringList(m["preconditions"]),
			Steps:              asStringList(m["steps"]),
			ExpectedResults:    asStringList(m["expected_results"]),
			Priority:           NormalizePriority(asString(m["priority"])),
			Category:           orDefault(asString(m["category"]), DefaultCategory),
			BoundaryConditions: asStringList(m["boundary_conditions"]),
			ErrorScenarios:     asStringList(m["error_scenarios"]),
		}
		if tc.Title == "" || len(tc.Steps) == 0 {
			continue
		}
		PadExpectedResults(&tc)
		out = append(out, tc)
	}
	RenumberCases(out)
	return out
}

// PadExpectedResults enforces len(expected_results) >= len(steps) so every
// step has a slot, padding with the completion placeholder.
func PadExpectedResults(tc *types.TestCase) {
	for len(tc.ExpectedResults) < len(tc.Steps) {
		tc.ExpectedResults = append(tc.ExpectedResults, SentinelToBeCompleted)
	}
}

// RenumberCases assigns TC%03d identifiers positionally wherever an ID is
// missing, off-scheme, or duplicates an earlier one.
func RenumberCases(cases []types.TestCase) {
	seen := make(map[string]bool, len(cases))
	for i := range cases {
		id := cases[i].ID
		if !caseIDRe.MatchString(id) || seen[id] {
			id = fmt.Sprintf("TC%03d", i+1)
		}
		cases[i].ID = id
		seen[id] = true
	}
}

func (v *Validator) fillReview(raw json.RawMessage) (types.ReviewResult, bool) {
	m := decodeObject(raw)
	comments := asMap(m["comments"])
	if comments == nil {
		// Review responses sometimes put the buckets at the top level.
		comments = m
	}
	out := types.ReviewResult{
		TestCases: FillTestCases(listOf(m["test_cases"])),
		Comments: types.ReviewComments{
			Completeness:   asStringList(comments["completeness"]),
			Clarity:        asStringList(comments["clarity"]),
			Executability:  asStringList(comments["executability"]),
			BoundaryCases:  asStringList(comments["boundary_cases"]),
			ErrorScenarios: asStringList(comments["error_scenarios"]),
		},
		Status: asString(m["status"]),
	}
	switch out.Status {
	case types.ReviewCompleted, types.ReviewIncomplete, types.ReviewError:
	default:
		out.Status = types.ReviewCompleted
	}
	return out, true
}

func listOf(v any) []any {
	items, _ := v.([]any)
	return items
}

func decodeObject(raw json.RawMessage) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
