package contract

import (
	"fmt"
	"strings"
)

// Sentinels inserted when a required field would otherwise be empty. They
// are defined fallbacks, not silent loss: a reader of the persisted result
// can see exactly which fields the generator under-delivered.
const (
	SentinelNeedsDetail   = "需要更多细节"
	SentinelToBeCompleted = "待补充"
	SentinelPending       = "待定"
	DefaultCategory       = "功能测试"
	DefaultPriority       = "P2"
)

// NormalizePriority maps priority tokens to the canonical P<digit> form:
// "0" -> "P0", "p1" -> "P1", "P2" -> "P2". Tokens ending in a digit keep
// that digit; anything else is uppercased as-is, empty becomes the default.
func NormalizePriority(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultPriority
	}
	runes := []rune(p)
	last := runes[len(runes)-1]
	if last >= '0' && last <= '9' {
		return "P" + string(last)
	}
	return strings.ToUpper(p)
}

// asStringList coerces a decoded JSON value into a list of non-empty
// strings. Bare scalars become a single-element list rather than being
// rejected; nested values are stringified.
func asStringList(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		return []string{s}
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s := asString(item)
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		s := asString(v)
		if s == "" {
			return nil
		}
		return []string{s}
	}
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case bool:
		return fmt.Sprintf("%t", x)
	default:
		return ""
	}
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

// fillIfEmpty guarantees a non-empty list by inserting the sentinel.
func fillIfEmpty(list []string, sentinel string) []string {
	if len(list) == 0 {
		return []string{sentinel}
	}
	return list
}
