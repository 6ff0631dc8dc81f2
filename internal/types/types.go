// Package types holds the data contracts exchanged between pipeline stages.
// Field names follow the wire shape the generator is asked to produce, so a
// validated stage payload round-trips through JSON unchanged.
package types

import (
	"encoding/json"
	"time"
)

// Stage names double as ResultStore keys and progress-snapshot labels.
const (
	StageRequirementAnalyst = "requirement_analyst"
	StageTestDesigner       = "test_designer"
	StageTestCaseWriter     = "test_case_writer"
	StageQualityReviewer    = "quality_assurance"
)

// Stages lists the pipeline stages in execution order.
var Stages = []string{
	StageRequirementAnalyst,
	StageTestDesigner,
	StageTestCaseWriter,
	StageQualityReviewer,
}

// TestScenario is produced by requirement analysis. IDs use the TS%03d
// scheme and are unique within one analysis result. TestCaseIDs is filled
// in later by the writer stage; it starts empty.
type TestScenario struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	TestCaseIDs []string `json:"test_case_ids,omitempty"`
}

// RequirementAnalysis is the output of the first stage. After validation
// all four lists are non-empty; missing content is sentinel-filled rather
// than silently dropped.
type RequirementAnalysis struct {
	FunctionalRequirements    []string       `json:"functional_requirements"`
	NonFunctionalRequirements []string       `json:"non_functional_requirements"`
	TestScenarios             []TestScenario `json:"test_scenarios"`
	RiskAreas                 []string       `json:"risk_areas"`
}

// TestApproach groups the methodology portion of a test strategy.
type TestApproach struct {
	Methodology []string `json:"methodology"`
	Tools       []string `json:"tools"`
	Frameworks  []string `json:"frameworks"`
}

// CoverageItem is one (feature, test type) association. A feature may
// appear multiple times with different test types.
type CoverageItem struct {
	Feature  string `json:"feature"`
	TestType string `json:"test_type"`
}

// PriorityLevel pairs a P0..P4 token with its meaning.
type PriorityLevel struct {
	Level       string `json:"level"`
	Description string `json:"description"`
}

// ResourceEstimation is free-text effort estimation from the design stage.
type ResourceEstimation struct {
	Time                string   `json:"time"`
	Personnel           string   `json:"personnel"`
	Tools               []string `json:"tools"`
	AdditionalResources []string `json:"additional_resources"`
}

// TestStrategy is the output of the test design stage.
type TestStrategy struct {
	TestApproach       TestApproach       `json:"test_approach"`
	CoverageMatrix     []CoverageItem     `json:"coverage_matrix"`
	Priorities         []PriorityLevel    `json:"priorities"`
	ResourceEstimation ResourceEstimation `json:"resource_estimation"`
}

// TestCase is the central artifact. IDs use the TC%03d scheme. Steps are
// order-significant; expected results are padded to at least len(steps)
// during repair. Quality review may extend fields but never removes them.
type TestCase struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Preconditions      []string `json:"preconditions"`
	Steps              []string `json:"steps"`
	ExpectedResults    []string `json:"expected_results"`
	Priority           string   `json:"priority"`
	Category           string   `json:"category"`
	BoundaryConditions []string `json:"boundary_conditions,omitempty"`
	ErrorScenarios     []string `json:"error_scenarios,omitempty"`
}

// ReviewComments buckets improvement suggestions under the five fixed
// review categories.
type ReviewComments struct {
	Completeness   []string `json:"completeness"`
	Clarity        []string `json:"clarity"`
	Executability  []string `json:"executability"`
	BoundaryCases  []string `json:"boundary_cases"`
	ErrorScenarios []string `json:"error_scenarios"`
}

// Review statuses.
const (
	ReviewCompleted  = "completed"
	ReviewIncomplete = "incomplete"
	ReviewError      = "error"
)

// ReviewResult is the quality review stage output: the (possibly improved)
// cases plus the comment buckets that drove the improvement.
type ReviewResult struct {
	TestCases []TestCase     `json:"test_cases"`
	Comments  ReviewComments `json:"comments"`
	Status    string         `json:"status"`
}

// StageResult is the persisted envelope: one slot per stage, overwritten on
// each successful run. Payload is kept as raw JSON so the persisted bytes
// round-trip exactly; callers decode into their stage's typed struct.
type StageResult struct {
	Stage     string          `json:"stage"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// PipelineResult aggregates the final payload of a completed run.
type PipelineResult struct {
	Requirements RequirementAnalysis `json:"requirements"`
	Strategy     TestStrategy        `json:"test_strategy"`
	TestCases    []TestCase          `json:"test_cases"`
	Review       ReviewResult        `json:"review"`
}
