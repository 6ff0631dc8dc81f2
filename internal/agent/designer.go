package agent

import (
	"context"
	"encoding/json"

	"testforge/internal/prompt"
	"testforge/internal/types"
)

// Designer turns a confirmed requirement analysis into a test strategy.
type Designer struct {
	deps Deps
}

func NewDesigner(deps Deps) *Designer {
	return &Designer{deps: deps}
}

func (d *Designer) Design(ctx context.Context, analysis types.RequirementAnalysis) (types.TestStrategy, error) {
	filled, err := d.deps.generate(ctx, types.StageTestDesigner,
		prompt.DesignSpec(), map[string]any{"requirements": analysis})
	if err != nil {
		return types.TestStrategy{}, err
	}
	var out types.TestStrategy
	if err := json.Unmarshal(filled, &out); err != nil {
		return types.TestStrategy{}, &StageError{Stage: types.StageTestDesigner, Err: err}
	}
	d.deps.persist(ctx, types.StageTestDesigner, filled)
	return out, nil
}
