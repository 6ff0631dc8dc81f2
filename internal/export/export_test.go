package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"testforge/internal/types"
)

func sampleCases() []types.TestCase {
	return []types.TestCase{
		{
			ID:              "TC001",
			Title:           "正确账号密码登录成功",
			Preconditions:   []string{"账号已注册"},
			Steps:           []string{"打开登录页", "输入账号密码", "点击登录"},
			ExpectedResults: []string{"页面打开", "回显正确", "跳转首页"},
			Priority:        "P0",
			Category:        "功能测试",
		},
		{
			ID:              "TC002",
			Title:           "错误密码登录失败",
			Steps:           []string{"打开登录页", "输入错误密码"},
			ExpectedResults: []string{"页面打开", "提示密码错误"},
			Priority:        "P2",
			Category:        "功能测试",
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExportWritesAllCases(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(DefaultTemplate(), nil)

	path, err := e.Export(sampleCases(), filepath.Join(dir, "cases.csv"))
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	require.Equal(t, baseColumns, rows[0])
	require.Equal(t, "TC001", rows[1][0])
	require.Equal(t, "打开登录页\n输入账号密码\n点击登录", rows[1][3])
	require.Equal(t, "TC002", rows[2][0])
}

func TestExportNormalizesExtension(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(DefaultTemplate(), nil)

	path, err := e.Export(sampleCases(), filepath.Join(dir, "cases"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "cases.csv"))

	path, err = e.Export(sampleCases(), filepath.Join(dir, "cases.xlsx"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "cases.csv"))
}

func TestExportMissingDirectory(t *testing.T) {
	e := NewExporter(DefaultTemplate(), nil)
	_, err := e.Export(sampleCases(), filepath.Join(t.TempDir(), "absent", "cases.csv"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "output directory")
}

func TestConditionalFormattingEffects(t *testing.T) {
	tmpl := DefaultTemplate()
	tmpl.Formatting = []FormatRule{
		{Column: "Priority", Condition: "P0", Format: FormatHighlight},
		{Column: "Title", Condition: "失败", Format: FormatPrefix},
		{Column: "Category", Condition: "功能", Format: FormatUppercase},
	}
	dir := t.TempDir()
	e := NewExporter(tmpl, nil)

	path, err := e.Export(sampleCases(), filepath.Join(dir, "cases.csv"))
	require.NoError(t, err)
	rows := readCSV(t, path)

	require.Equal(t, "*** P0 ***", rows[1][5])
	require.Equal(t, "P2", rows[2][5])
	require.Equal(t, "! 错误密码登录失败", rows[2][1])
	// Uppercase on Chinese text is a no-op but must not corrupt it.
	require.Equal(t, "功能测试", rows[1][6])
}

func TestLoadTemplateYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tmpl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: 评审模板
description: 带高亮的导出模板
custom_fields: [Reviewer]
conditional_formatting:
  - column: Priority
    condition: P0
    format: highlight
  - column: Title
    condition: x
`), 0o644))

	tmpl, err := LoadTemplate(path)
	require.NoError(t, err)
	require.Equal(t, "评审模板", tmpl.Name)
	require.Equal(t, "1.0", tmpl.Version)
	require.Equal(t, []string{"Reviewer"}, tmpl.CustomFields)
	// The incomplete rule (no format) is dropped.
	require.Len(t, tmpl.Formatting, 1)
	// Defaults fill in when the file omits widths.
	require.Equal(t, DefaultTemplate().ColumnWidths, tmpl.ColumnWidths)
}

func TestAddCustomField(t *testing.T) {
	tmpl := DefaultTemplate()
	tmpl.AddCustomField("Reviewer")
	tmpl.AddCustomField("Reviewer")
	require.Equal(t, []string{"Reviewer"}, tmpl.CustomFields)
	require.Equal(t, 30, tmpl.ColumnWidths["Reviewer"])

	e := NewExporter(tmpl, nil)
	path, err := e.Export(sampleCases(), filepath.Join(t.TempDir(), "cases.csv"))
	require.NoError(t, err)
	rows := readCSV(t, path)
	require.Equal(t, "Reviewer", rows[0][len(rows[0])-1])
}
