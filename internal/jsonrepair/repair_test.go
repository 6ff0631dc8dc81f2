package jsonrepair

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustValue(t *testing.T, raw json.RawMessage) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestNormalizeDirectParse(t *testing.T) {
	n := New(zap.NewNop())
	raw, err := n.Normalize(`  {"a": 1, "b": ["x"]}  `)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": float64(1), "b": []any{"x"}}, mustValue(t, raw))
}

func TestNormalizeStripsMarkdownFence(t *testing.T) {
	n := New(zap.NewNop())
	raw, err := n.Normalize("Here you go:\n```json\n{\"ok\": true}\n```\nLet me know!")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"ok": true}, mustValue(t, raw))
}

func TestNormalizeBoundaryExtraction(t *testing.T) {
	n := New(zap.NewNop())
	raw, err := n.Normalize(`以下是分析结果：{"risk_areas": ["并发"]} 希望对你有帮助。`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"risk_areas": []any{"并发"}}, mustValue(t, raw))
}

func TestNormalizeMissingComma(t *testing.T) {
	// A missing comma between two array elements repairs to the same value
	// as the corrected string.
	n := New(zap.NewNop())
	raw, err := n.Normalize(`{"steps": ["登录系统" "输入密码"]}`)
	require.NoError(t, err)
	want, err := n.Normalize(`{"steps": ["登录系统", "输入密码"]}`)
	require.NoError(t, err)
	require.Equal(t, mustValue(t, want), mustValue(t, raw))
}

func TestNormalizeMissingCommaBetweenObjects(t *testing.T) {
	n := New(zap.NewNop())
	raw, err := n.Normalize(`{"cases": [{"id": "TC001"} {"id": "TC002"}]}`)
	require.NoError(t, err)
	v := mustValue(t, raw).(map[string]any)
	require.Len(t, v["cases"], 2)
}

func TestNormalizeBracketAutoClose(t *testing.T) {
	n := New(zap.NewNop())
	raw, err := n.Normalize(`{"a": ["x", "y"`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": []any{"x", "y"}}, mustValue(t, raw))
}

func TestNormalizeMismatchedCloser(t *testing.T) {
	n := New(zap.NewNop())
	raw, err := n.Normalize(`{"a": ["x", "y"}]`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": []any{"x", "y"}}, mustValue(t, raw))
}

func TestNormalizeUnquotedKeys(t *testing.T) {
	n := New(zap.NewNop())
	raw, err := n.Normalize(`{id: "TC001", title: "登录"}`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": "TC001", "title": "登录"}, mustValue(t, raw))
}

func TestNormalizeSingleQuotes(t *testing.T) {
	n := New(zap.NewNop())
	raw, err := n.Normalize(`{'priority': 'P0'}`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"priority": "P0"}, mustValue(t, raw))
}

func TestNormalizeTrailingComma(t *testing.T) {
	n := New(zap.NewNop())
	raw, err := n.Normalize(`{"a": [1, 2,], "b": "x",}`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": []any{float64(1), float64(2)}, "b": "x"}, mustValue(t, raw))
}

func TestNormalizeStrayInteriorQuote(t *testing.T) {
	n := New(zap.NewNop())
	raw, err := n.Normalize(`{"title": "点击 "确认" 按钮"}`)
	require.NoError(t, err)
	v := mustValue(t, raw).(map[string]any)
	require.Contains(t, v["title"], "确认")
}

func TestNormalizeGarbage(t *testing.T) {
	n := New(zap.NewNop())
	for _, in := range []string{"", "   ", "no structure at all"} {
		_, err := n.Normalize(in)
		require.ErrorIs(t, err, ErrUnparseable, "input %q", in)
	}
}

func TestNormalizeBareScalarRejected(t *testing.T) {
	n := New(zap.NewNop())
	_, err := n.Normalize(`"just a string"`)
	require.ErrorIs(t, err, ErrUnparseable)
}
