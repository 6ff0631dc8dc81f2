package jsonrepair

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var analysisSections = []Section{
	{Field: "functional_requirements", Headers: []string{"功能需求", "functional requirements"}},
	{Field: "non_functional_requirements", Headers: []string{"非功能需求", "non-functional requirements"}},
	{Field: "test_scenarios", Headers: []string{"测试场景", "test scenarios"}},
	{Field: "risk_areas", Headers: []string{"风险领域", "risk areas"}, Sentinel: "暂未识别风险"},
}

func TestExtractSectionsBuckets(t *testing.T) {
	text := `分析如下：
1. 功能需求
- 用户可以使用账号密码登录
- 支持找回密码
2. 非功能需求
1) 页面响应时间低于2秒
3. 测试场景
（一）正确的账号密码登录
（二）错误的账号密码登录
4. 风险领域
· 第三方认证服务不可用`

	got := ExtractSections(text, analysisSections)
	require.Equal(t, []string{"用户可以使用账号密码登录", "支持找回密码"}, got["functional_requirements"])
	require.Equal(t, []string{"页面响应时间低于2秒"}, got["non_functional_requirements"])
	require.Equal(t, []string{"正确的账号密码登录", "错误的账号密码登录"}, got["test_scenarios"])
	require.Equal(t, []string{"第三方认证服务不可用"}, got["risk_areas"])
}

func TestExtractSectionsCaseInsensitiveHeaders(t *testing.T) {
	text := "Functional Requirements:\n- login works\nRisk Areas:\n- auth outage"
	got := ExtractSections(text, analysisSections)
	require.Equal(t, []string{"login works"}, got["functional_requirements"])
	require.Equal(t, []string{"auth outage"}, got["risk_areas"])
}

func TestExtractSectionsSentinelFill(t *testing.T) {
	got := ExtractSections("完全无关的文本", analysisSections)
	require.Equal(t, []string{DefaultSentinel}, got["functional_requirements"])
	require.Equal(t, []string{"暂未识别风险"}, got["risk_areas"])
}

func TestExtractSectionsDiscardsHeaderLikeLines(t *testing.T) {
	// A bucketed line that itself names another known header is treated as
	// noise, not content.
	text := "1. 功能需求\n- 登录\n以上是功能需求的全部内容"
	got := ExtractSections(text, analysisSections)
	require.Equal(t, []string{"登录"}, got["functional_requirements"])
}

func TestStripEnumeration(t *testing.T) {
	cases := map[string]string{
		"1. 第一项":   "第一项",
		"10、第十项":   "第十项",
		"（3）括号项":   "括号项",
		"(12) 半角":  "半角",
		"一、中文序号":   "中文序号",
		"- 短横线":    "短横线",
		"• 项目符号":   "项目符号",
		"纯文本保持不变":  "纯文本保持不变",
		"2) 右括号分隔": "右括号分隔",
	}
	for in, want := range cases {
		require.Equal(t, want, stripEnumeration(in), "input %q", in)
	}
}
