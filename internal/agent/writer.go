package agent

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"testforge/internal/contract"
	"testforge/internal/prompt"
	"testforge/internal/types"
)

// batchSize is how many coverage items one generator call is asked to
// cover. Small batches keep each response within what the generator can
// emit as well-formed JSON.
const batchSize = 3

// Writer produces executable test cases from a strategy, fanning the
// coverage matrix out over concurrent generator calls, and applies
// review feedback to existing cases.
type Writer struct {
	deps        Deps
	testType    string
	concurrency int
	last        []types.TestCase
}

func NewWriter(deps Deps, testType string, concurrency int) *Writer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Writer{deps: deps, testType: testType, concurrency: concurrency}
}

// Generate splits the coverage matrix into batches, generates cases for
// each batch concurrently, and joins the results in input order so case
// numbering is stable regardless of which batch finished first.
func (w *Writer) Generate(ctx context.Context, strategy types.TestStrategy) ([]types.TestCase, error) {
	batches := splitCoverage(strategy.CoverageMatrix, batchSize)
	slots := make([][]types.TestCase, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			cases, err := w.generateBatch(gctx, strategy, batch)
			if err != nil {
				return err
			}
			slots[i] = cases
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var cases []types.TestCase
	for _, slot := range slots {
		cases = append(cases, slot...)
	}
	contract.RenumberCases(cases)

	payload, err := json.Marshal(map[string]any{"test_cases": cases})
	if err != nil {
		return nil, &StageError{Stage: types.StageTestCaseWriter, Err: err}
	}
	w.deps.persist(ctx, types.StageTestCaseWriter, payload)
	w.last = cases
	return cases, nil
}

func (w *Writer) generateBatch(ctx context.Context, strategy types.TestStrategy, batch []types.CoverageItem) ([]types.TestCase, error) {
	input := map[string]any{
		"test_approach":  strategy.TestApproach,
		"priorities":     strategy.Priorities,
		"coverage_items": batch,
	}
	filled, err := w.deps.generate(ctx, types.StageTestCaseWriter,
		prompt.WriterSpec(w.testType), input)
	if err != nil {
		return nil, err
	}
	return decodeCases(filled, types.StageTestCaseWriter)
}

// Improve feeds existing cases plus review comments back through the
// generator. Improvement is additive: the merged result keeps every
// input case, and a case whose steps or expected results came back
// shorter keeps its original ones.
func (w *Writer) Improve(ctx context.Context, cases []types.TestCase, comments types.ReviewComments) ([]types.TestCase, error) {
	input := map[string]any{
		"test_cases": cases,
		"comments":   comments,
	}
	filled, err := w.deps.generate(ctx, types.StageTestCaseWriter,
		prompt.ImproveSpec(), input)
	if err != nil {
		return nil, err
	}
	improved, err := decodeCases(filled, types.StageTestCaseWriter)
	if err != nil {
		return nil, err
	}
	merged := mergeImproved(cases, improved)
	w.last = merged
	return merged, nil
}

// Last returns the most recently produced cases.
func (w *Writer) Last() []types.TestCase { return w.last }

func splitCoverage(items []types.CoverageItem, size int) [][]types.CoverageItem {
	if len(items) == 0 {
		// Still issue one call; the strategy fill guarantees at least one
		// coverage item, but an empty matrix must not silently skip the
		// stage.
		return [][]types.CoverageItem{nil}
	}
	var out [][]types.CoverageItem
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

func decodeCases(filled json.RawMessage, stage string) ([]types.TestCase, error) {
	var out struct {
		TestCases []types.TestCase `json:"test_cases"`
	}
	if err := json.Unmarshal(filled, &out); err != nil {
		return nil, &StageError{Stage: stage, Err: err}
	}
	return out.TestCases, nil
}

// mergeImproved keeps the original case set authoritative: improved
// versions are matched by ID, fields may grow but steps and expected
// results never shrink, and cases the generator dropped survive
// untouched.
func mergeImproved(original, improved []types.TestCase) []types.TestCase {
	byID := make(map[string]types.TestCase, len(improved))
	for _, tc := range improved {
		byID[tc.ID] = tc
	}
	out := make([]types.TestCase, 0, len(original))
	for _, orig := range original {
		imp, ok := byID[orig.ID]
		if !ok {
			out = append(out, orig)
			continue
		}
		merged := imp
		if merged.Title == "" {
			merged.Title = orig.Title
		}
		if len(merged.Steps) < len(orig.Steps) {
			merged.Steps = orig.Steps
			merged.ExpectedResults = orig.ExpectedResults
		}
		if len(merged.ExpectedResults) < len(merged.Steps) {
			merged.ExpectedResults = orig.ExpectedResults
		}
		contract.PadExpectedResults(&merged)
		if len(merged.Preconditions) == 0 {
			merged.Preconditions = orig.Preconditions
		}
		out = append(out, merged)
	}
	return out
}
