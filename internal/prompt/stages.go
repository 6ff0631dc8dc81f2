package prompt

// Stage prompt specs. The wording stays in Chinese because the pipeline
// targets Chinese requirement documents and the sentinel vocabulary
// downstream (需要更多细节, 待补充) has to match what the model is told
// to emit.

// AnalysisSpec asks for the four-part requirement breakdown.
func AnalysisSpec() StructuredPromptSpec {
	return ApplyPresets(StructuredPromptSpec{
		Purpose: "你是一位专业的需求分析师，专注于软件测试领域。" +
			"请分析输入的需求文档并提取关键测试点。",
		OutputFields: []PromptField{
			{Name: "functional_requirements", Type: "string[]", Required: true, Description: "功能需求列表"},
			{Name: "non_functional_requirements", Type: "string[]", Required: true, Description: "非功能需求列表"},
			{Name: "test_scenarios", Type: "object[]", Required: true, Description: "测试场景，每项包含 id (TS001 格式) 和 description"},
			{Name: "risk_areas", Type: "string[]", Required: true, Description: "风险领域列表"},
		},
		Rules: []string{
			"每个数组至少包含一个有效项",
			"测试场景 id 使用 TS001、TS002 递增编号",
		},
		OutputFormat: "单个 JSON 对象",
		Language:     "中文",
	}, PresetStrictJSON(), PresetNoInvent(), PresetCautious())
}

// DesignSpec asks for the test strategy built on the analysis result.
func DesignSpec() StructuredPromptSpec {
	return ApplyPresets(StructuredPromptSpec{
		Purpose: "你是一位专业的测试设计师。请基于输入的需求分析结果，" +
			"创建全面的测试策略。",
		OutputFields: []PromptField{
			{Name: "test_approach", Type: "object", Required: true, Description: "测试方法，包含 methodology、tools、frameworks 三个字符串数组"},
			{Name: "coverage_matrix", Type: "object[]", Required: true, Description: "测试覆盖矩阵，每项包含 feature 和 test_type"},
			{Name: "priorities", Type: "object[]", Required: true, Description: "测试优先级，每项包含 level (P0-P4) 和 description"},
			{Name: "resource_estimation", Type: "object", Required: true, Description: "资源估算，包含 time、personnel、tools"},
		},
		Rules: []string{
			"覆盖矩阵必须覆盖分析结果中的全部功能需求",
			"优先级 level 使用 P0 到 P4",
		},
		OutputFormat: "单个 JSON 对象",
		Language:     "中文",
	}, PresetStrictJSON(), PresetNoInvent())
}

// WriterSpec asks for executable test cases for one slice of the coverage
// matrix. testType selects the flavor (功能测试, 接口测试, UI自动化测试).
func WriterSpec(testType string) StructuredPromptSpec {
	if testType == "" {
		testType = "功能测试"
	}
	return ApplyPresets(StructuredPromptSpec{
		Purpose: "你是一位精确的测试用例编写者。请基于输入的测试策略，" +
			"为指定的覆盖项创建详细、清晰且可执行的" + testType + "用例。",
		OutputFields: []PromptField{
			{Name: "test_cases", Type: "object[]", Required: true,
				Description: "测试用例列表，每项包含 id (TC001 格式)、title、preconditions、steps、expected_results、priority、category"},
		},
		Rules: []string{
			"每个测试用例必须包含所有必需字段",
			"steps 与 expected_results 一一对应",
			"每个数组至少包含一个有效项",
			"category 填写 " + testType,
		},
		OutputFormat: "单个 JSON 对象",
		Language:     "中文",
	}, PresetStrictJSON())
}

// ReviewSpec asks for the five-bucket quality review.
func ReviewSpec() StructuredPromptSpec {
	return ApplyPresets(StructuredPromptSpec{
		Purpose: "你是一位严谨的质量保证专家。请审查输入的测试用例，" +
			"从完整性、清晰度、可执行性、边界情况、错误场景五个维度提出改进建议。",
		OutputFields: []PromptField{
			{Name: "comments", Type: "object", Required: true,
				Description: "审查意见，包含 completeness、clarity、executability、boundary_cases、error_scenarios 五个字符串数组"},
			{Name: "status", Type: "string", Required: true, Description: "completed、incomplete 或 error"},
		},
		Rules: []string{
			"只审查，不重写用例",
			"没有意见的维度返回空数组",
		},
		OutputFormat: "单个 JSON 对象",
		Language:     "中文",
	}, PresetStrictJSON())
}

// ImproveSpec asks the writer to apply review feedback to existing cases.
func ImproveSpec() StructuredPromptSpec {
	return ApplyPresets(StructuredPromptSpec{
		Purpose: "你是一位精确的测试用例编写者。输入包含现有测试用例和审查意见，" +
			"请根据意见改进这些用例。",
		OutputFields: []PromptField{
			{Name: "test_cases", Type: "object[]", Required: true,
				Description: "改进后的完整测试用例列表，字段与输入用例相同，可补充 boundary_conditions 和 error_scenarios"},
		},
		Rules: []string{
			"保留未被意见涉及的用例原样",
			"只扩展字段，不删除字段",
			"每个测试用例必须包含所有必需字段",
		},
		OutputFormat: "单个 JSON 对象",
		Language:     "中文",
	}, PresetStrictJSON())
}
