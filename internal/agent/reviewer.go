package agent

import (
	"context"
	"encoding/json"

	"testforge/internal/prompt"
	"testforge/internal/types"
)

// Reviewer runs the quality review stage. It only produces comments; the
// actual rewriting of cases is delegated back to the Writer so the
// test-case contract lives in one place.
type Reviewer struct {
	deps   Deps
	writer *Writer
}

func NewReviewer(deps Deps, writer *Writer) *Reviewer {
	return &Reviewer{deps: deps, writer: writer}
}

func (r *Reviewer) Review(ctx context.Context, cases []types.TestCase) (types.ReviewResult, error) {
	filled, err := r.deps.generate(ctx, types.StageQualityReviewer,
		prompt.ReviewSpec(), map[string]any{"test_cases": cases})
	if err != nil {
		return types.ReviewResult{}, err
	}
	var reviewed types.ReviewResult
	if err := json.Unmarshal(filled, &reviewed); err != nil {
		return types.ReviewResult{}, &StageError{Stage: types.StageQualityReviewer, Err: err}
	}

	result := types.ReviewResult{
		TestCases: cases,
		Comments:  reviewed.Comments,
		Status:    reviewed.Status,
	}
	if hasComments(reviewed.Comments) {
		improved, err := r.writer.Improve(ctx, cases, reviewed.Comments)
		if err != nil {
			return types.ReviewResult{}, err
		}
		result.TestCases = improved
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return types.ReviewResult{}, &StageError{Stage: types.StageQualityReviewer, Err: err}
	}
	r.deps.persist(ctx, types.StageQualityReviewer, payload)
	return result, nil
}

func hasComments(c types.ReviewComments) bool {
	return len(c.Completeness)+len(c.Clarity)+len(c.Executability)+
		len(c.BoundaryCases)+len(c.ErrorScenarios) > 0
}
