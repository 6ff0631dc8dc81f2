package contract

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"testforge/internal/types"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(zap.NewNop())
	require.NoError(t, err)
	return v
}

func TestValidateAnalysisFillsEmptyRiskAreas(t *testing.T) {
	v := newValidator(t)
	raw := json.RawMessage(`{
		"functional_requirements": ["登录"],
		"non_functional_requirements": ["性能"],
		"test_scenarios": [{"id": "TS001", "description": "正常登录"}],
		"risk_areas": []
	}`)
	ok, filled := v.Validate(types.StageRequirementAnalyst, raw)
	require.True(t, ok)
	var out types.RequirementAnalysis
	require.NoError(t, json.Unmarshal(filled, &out))
	require.NotEmpty(t, out.RiskAreas)
	require.Equal(t, []string{SentinelNeedsDetail}, out.RiskAreas)
}

func TestValidateAnalysisCoercesScalarToList(t *testing.T) {
	v := newValidator(t)
	raw := json.RawMessage(`{
		"functional_requirements": "只有一条需求",
		"non_functional_requirements": ["性能"],
		"test_scenarios": ["场景一"],
		"risk_areas": ["风险一"]
	}`)
	ok, filled := v.Validate(types.StageRequirementAnalyst, raw)
	require.True(t, ok)
	var out types.RequirementAnalysis
	require.NoError(t, json.Unmarshal(filled, &out))
	require.Equal(t, []string{"只有一条需求"}, out.FunctionalRequirements)
	require.Equal(t, "TS001", out.TestScenarios[0].ID)
	require.Equal(t, "场景一", out.TestScenarios[0].Description)
}

func TestScenarioIdentifierUniqueness(t *testing.T) {
	const n = 7
	scenarios := make([]types.TestScenario, 0, n)
	for i := 0; i < n; i++ {
		scenarios = append(scenarios, types.TestScenario{Description: fmt.Sprintf("场景 %d", i+1)})
	}
	RenumberScenarios(scenarios)
	seen := map[string]bool{}
	for i, sc := range scenarios {
		require.Equal(t, fmt.Sprintf("TS%03d", i+1), sc.ID)
		require.False(t, seen[sc.ID])
		seen[sc.ID] = true
	}
}

func TestRenumberScenariosKeepsValidUniqueIDs(t *testing.T) {
	scenarios := []types.TestScenario{
		{ID: "TS009", Description: "a"},
		{ID: "TS009", Description: "b"}, // collision, renumbered by position
		{ID: "bogus", Description: "c"}, // off-scheme, renumbered
	}
	RenumberScenarios(scenarios)
	require.Equal(t, "TS009", scenarios[0].ID)
	require.Equal(t, "TS002", scenarios[1].ID)
	require.Equal(t, "TS003", scenarios[2].ID)
}

func TestExpectedResultsPadding(t *testing.T) {
	tc := types.TestCase{
		Title:           "三步用例",
		Steps:           []string{"步骤1", "步骤2", "步骤3"},
		ExpectedResults: []string{"结果1"},
	}
	PadExpectedResults(&tc)
	require.Len(t, tc.ExpectedResults, 3)
	require.Equal(t, SentinelToBeCompleted, tc.ExpectedResults[1])
	require.Equal(t, SentinelToBeCompleted, tc.ExpectedResults[2])
}

func TestNormalizePriority(t *testing.T) {
	for _, in := range []string{"0", "P0", "p0"} {
		require.Equal(t, "P0", NormalizePriority(in), "input %q", in)
	}
	require.Equal(t, "P3", NormalizePriority("priority 3"))
	require.Equal(t, DefaultPriority, NormalizePriority(""))
	require.Equal(t, "HIGH", NormalizePriority("high"))
}

func TestValidateWriterPayload(t *testing.T) {
	v := newValidator(t)
	raw := json.RawMessage(`{"test_cases": [
		{"id": "TC001", "title": "登录成功", "preconditions": ["账号已注册"],
		 "steps": ["打开登录页", "输入账号密码", "点击登录"],
		 "expected_results": ["进入首页"],
		 "priority": "0", "category": ""},
		{"id": "TC001", "title": "登录失败",
		 "steps": "输入错误密码",
		 "expected_results": ["提示密码错误"],
		 "priority": "p1", "category": "功能测试"}
	]}`)
	ok, filled := v.Validate(types.StageTestCaseWriter, raw)
	require.True(t, ok)
	var out struct {
		TestCases []types.TestCase `json:"test_cases"`
	}
	require.NoError(t, json.Unmarshal(filled, &out))
	require.Len(t, out.TestCases, 2)

	first := out.TestCases[0]
	require.Equal(t, "P0", first.Priority)
	require.Equal(t, DefaultCategory, first.Category)
	require.Len(t, first.ExpectedResults, 3)

	second := out.TestCases[1]
	require.Equal(t, "TC002", second.ID) // collision renumbered by position
	require.Equal(t, []string{"输入错误密码"}, second.Steps)
	require.Equal(t, "P1", second.Priority)
}

func TestValidateWriterRejectsEmptyBatch(t *testing.T) {
	v := newValidator(t)
	ok, _ := v.Validate(types.StageTestCaseWriter, json.RawMessage(`{"test_cases": []}`))
	require.False(t, ok)

	// Cases without title or steps are unusable and dropped.
	ok, _ = v.Validate(types.StageTestCaseWriter, json.RawMessage(`{"test_cases": [{"id": "TC001"}]}`))
	require.False(t, ok)
}

func TestValidateReviewDefaults(t *testing.T) {
	v := newValidator(t)
	raw := json.RawMessage(`{
		"test_cases": [{"id": "TC001", "title": "t", "steps": ["s"], "expected_results": ["r"], "priority": "P0", "category": "功能测试"}],
		"comments": {"boundary_cases": ["补充边界值"]},
		"status": "unknown-tag"
	}`)
	ok, filled := v.Validate(types.StageQualityReviewer, raw)
	require.True(t, ok)
	var out types.ReviewResult
	require.NoError(t, json.Unmarshal(filled, &out))
	require.Equal(t, types.ReviewCompleted, out.Status)
	require.Equal(t, []string{"补充边界值"}, out.Comments.BoundaryCases)
}
