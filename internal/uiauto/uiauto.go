// Package uiauto replays written test cases against a UI driven by the
// generator. The driver sits behind the CaseRunner seam so offline runs
// and tests inject a scripted runner instead of a live browser session.
package uiauto

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"testforge/internal/llm"
	"testforge/internal/types"
)

// Case outcome statuses.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusWarning = "warning"
	StatusError   = "error"
)

// CaseResult is one executed case plus its observed outcome.
type CaseResult struct {
	TestCaseID      string    `json:"test_case_id"`
	Title           string    `json:"title"`
	Steps           []string  `json:"steps"`
	ExpectedResults []string  `json:"expected_results"`
	ActualResult    string    `json:"actual_result"`
	Status          string    `json:"status"`
	ExecutionTime   time.Time `json:"execution_time"`
}

// CaseRunner executes one case and reports what actually happened.
// ok is nil when the runner could not decide either way.
type CaseRunner interface {
	Run(ctx context.Context, taskPrompt string) (actual string, ok *bool, err error)
}

// Service loads cases, runs them sequentially, and writes a CSV report.
type Service struct {
	runner CaseRunner
	log    *zap.Logger
}

func NewService(runner CaseRunner, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{runner: runner, log: log}
}

// LoadCases reads a {"test_cases": [...]} JSON file.
func LoadCases(path string) ([]types.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("uiauto: read cases %s: %w", path, err)
	}
	var doc struct {
		TestCases []types.TestCase `json:"test_cases"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("uiauto: parse cases %s: %w", path, err)
	}
	return doc.TestCases, nil
}

// Run executes every case and writes the report. A failing case does not
// stop the run; its failure lands in the report instead.
func (s *Service) Run(ctx context.Context, inputPath, outputPath string) ([]CaseResult, error) {
	cases, err := LoadCases(inputPath)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("uiauto: no test cases in %s", inputPath)
	}

	results := make([]CaseResult, 0, len(cases))
	for _, tc := range cases {
		results = append(results, s.execute(ctx, tc))
	}

	if err := writeReport(results, outputPath); err != nil {
		return results, err
	}
	passed := 0
	for _, r := range results {
		if r.Status == StatusPassed {
			passed++
		}
	}
	s.log.Info("uiauto: run complete",
		zap.Int("total", len(results)), zap.Int("passed", passed),
		zap.String("report", outputPath))
	return results, nil
}

func (s *Service) execute(ctx context.Context, tc types.TestCase) CaseResult {
	res := CaseResult{
		TestCaseID:      tc.ID,
		Title:           tc.Title,
		Steps:           tc.Steps,
		ExpectedResults: tc.ExpectedResults,
		ExecutionTime:   time.Now(),
	}
	actual, ok, err := s.runner.Run(ctx, TaskPrompt(tc))
	if err != nil {
		s.log.Warn("uiauto: case execution failed",
			zap.String("id", tc.ID), zap.Error(err))
		res.ActualResult = err.Error()
		res.Status = StatusError
		return res
	}
	res.ActualResult = actual
	switch {
	case ok == nil:
		res.Status = StatusWarning
	case *ok:
		res.Status = StatusPassed
	default:
		res.Status = StatusFailed
	}
	return res
}

// TaskPrompt renders one case as the numbered step/expectation prompt the
// driver follows.
func TaskPrompt(tc types.TestCase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "测试用例标题: %s\n\n", tc.Title)
	b.WriteString("测试步骤:\n")
	for i, step := range tc.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n预期结果:\n")
	for i, exp := range tc.ExpectedResults {
		fmt.Fprintf(&b, "%d. %s\n", i+1, exp)
	}
	return b.String()
}

func writeReport(results []CaseResult, outputPath string) error {
	if !strings.HasSuffix(outputPath, ".csv") {
		outputPath += ".csv"
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("uiauto: create report %s: %w", outputPath, err)
	}
	w := csv.NewWriter(f)
	header := []string{"test_case_id", "title", "steps", "expected_results", "actual_result", "status", "execution_time"}
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("uiauto: write report header: %w", err)
	}
	for _, r := range results {
		row := []string{
			r.TestCaseID,
			r.Title,
			strings.Join(r.Steps, "\n"),
			strings.Join(r.ExpectedResults, "\n"),
			r.ActualResult,
			r.Status,
			r.ExecutionTime.Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("uiauto: write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("uiauto: flush report: %w", err)
	}
	return f.Close()
}

// LLMRunner drives cases through the generator: the model receives the
// task prompt and reports the observed outcome as a verdict plus
// description.
type LLMRunner struct {
	client llm.Client
}

func NewLLMRunner(client llm.Client) *LLMRunner {
	return &LLMRunner{client: client}
}

func (r *LLMRunner) Run(ctx context.Context, taskPrompt string) (string, *bool, error) {
	ctx = llm.WithStage(ctx, "ui_automation")
	text, err := r.client.Generate(ctx, taskPrompt+
		"\n请执行以上测试并报告结果。第一行回答 PASSED、FAILED 或 UNKNOWN，随后描述实际结果。")
	if err != nil {
		return "", nil, err
	}
	verdict, rest, _ := strings.Cut(strings.TrimSpace(text), "\n")
	actual := strings.TrimSpace(rest)
	if actual == "" {
		actual = strings.TrimSpace(text)
	}
	switch strings.ToUpper(strings.TrimSpace(verdict)) {
	case "PASSED":
		ok := true
		return actual, &ok, nil
	case "FAILED":
		ok := false
		return actual, &ok, nil
	default:
		return actual, nil, nil
	}
}
