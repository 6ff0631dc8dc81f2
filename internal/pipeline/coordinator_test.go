package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"testforge/internal/agent"
	"testforge/internal/contract"
	"testforge/internal/jsonrepair"
	"testforge/internal/llm"
	"testforge/internal/store"
	"testforge/internal/types"
)

const analysisAnswer = `{
  "functional_requirements": ["用户可以使用账号密码登录"],
  "non_functional_requirements": ["响应时间低于2秒"],
  "test_scenarios": [{"id": "TS001", "description": "正常登录"}],
  "risk_areas": ["认证服务不可用"]
}`

func newCoordinator(t *testing.T, fake *llm.FakeClient, opts ...Option) *Coordinator {
	t.Helper()
	validator, err := contract.NewValidator(nil)
	require.NoError(t, err)
	deps := agent.Deps{
		Client:    fake,
		Normalize: jsonrepair.New(nil),
		Contract:  validator,
		Store:     store.NewFileStore(t.TempDir(), nil),
	}
	writer := agent.NewWriter(deps, "功能测试", 2)
	return New(
		agent.NewAnalyst(deps),
		agent.NewDesigner(deps),
		writer,
		agent.NewReviewer(deps, writer),
		nil,
		opts...,
	)
}

func TestRunCompletesWithCannedAnswers(t *testing.T) {
	fake := llm.NewFakeClient()
	var seen []State
	c := newCoordinator(t, fake, WithNotify(func(p Progress) {
		if len(seen) == 0 || seen[len(seen)-1] != p.State {
			seen = append(seen, p.State)
		}
	}))

	res, err := c.Run(context.Background(), "用户登录模块需求说明")
	require.NoError(t, err)
	require.NotEmpty(t, res.Requirements.FunctionalRequirements)
	require.NotEmpty(t, res.Strategy.CoverageMatrix)
	require.NotEmpty(t, res.TestCases)
	require.Equal(t, types.ReviewCompleted, res.Review.Status)

	require.Equal(t, StateDone, c.Progress().State)
	require.Contains(t, seen, StateRequirements)
	require.Contains(t, seen, StateDesign)
	require.Contains(t, seen, StateWriting)
	require.Contains(t, seen, StateReview)
	require.Equal(t, StateDone, seen[len(seen)-1])
}

func TestGateApprovalTokenProceedsToDesign(t *testing.T) {
	fake := llm.NewFakeClient()
	fake.Enqueue(types.StageRequirementAnalyst, analysisAnswer)
	fake.Enqueue(types.StageRequirementAnalyst, "正确")
	c := newCoordinator(t, fake)

	_, err := c.Run(context.Background(), "需求文档")
	require.NoError(t, err)
	require.Equal(t, StateDone, c.Progress().State)
	require.Positive(t, fake.Calls(types.StageTestDesigner))
}

func TestGateRejectionReturnsNeedsRevision(t *testing.T) {
	fake := llm.NewFakeClient()
	fake.Enqueue(types.StageRequirementAnalyst, analysisAnswer)
	fake.Enqueue(types.StageRequirementAnalyst, "需要调整：字段缺失")
	c := newCoordinator(t, fake)

	res, err := c.Run(context.Background(), "需求文档")
	require.ErrorIs(t, err, ErrNeedsRevision)
	require.Contains(t, err.Error(), "字段缺失")
	require.Equal(t, "字段缺失", res.RevisionMessage)
	// The rejected analysis rides along for correction.
	require.NotEmpty(t, res.Requirements.FunctionalRequirements)

	require.Equal(t, StateNeedsRevision, c.Progress().State)
	require.Equal(t, 0, fake.Calls(types.StageTestDesigner))
}

func TestWriterFailureIsTerminal(t *testing.T) {
	fake := llm.NewFakeClient()
	fake.Enqueue(types.StageTestCaseWriter, `{"test_cases": []}`)
	fake.Enqueue(types.StageTestCaseWriter, `{"test_cases": []}`)
	c := newCoordinator(t, fake)

	res, err := c.Run(context.Background(), "需求文档")
	var stageErr *agent.StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, types.StageTestCaseWriter, stageErr.Stage)
	require.Empty(t, res.TestCases)

	p := c.Progress()
	require.Equal(t, StateError, p.State)
	require.Equal(t, StatusError, p.Stages[types.StageTestCaseWriter].Status)
	require.Equal(t, 0, fake.Calls(types.StageQualityReviewer))
}

func TestProgressSnapshotIsDetached(t *testing.T) {
	fake := llm.NewFakeClient()
	c := newCoordinator(t, fake)

	before := c.Progress()
	require.Equal(t, StateInit, before.State)
	for _, stage := range types.Stages {
		require.Equal(t, StatusPending, before.Stages[stage].Status)
	}

	_, err := c.Run(context.Background(), "需求文档")
	require.NoError(t, err)

	// The earlier snapshot is a copy, untouched by the run.
	require.Equal(t, StateInit, before.State)
	require.Equal(t, StatusPending, before.Stages[types.StageTestDesigner].Status)
	require.Equal(t, StateDone, c.Progress().State)
}
