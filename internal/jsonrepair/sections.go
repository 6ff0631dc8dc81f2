package jsonrepair

import "strings"

// Section describes one target field for heuristic line extraction: the
// header phrases that open its block (matched case-insensitively as
// substrings) and the sentinel used when nothing was collected.
type Section struct {
	Field    string
	Headers  []string
	Sentinel string
}

// DefaultSentinel fills a bucket that stayed empty after extraction so
// downstream stages never index into an empty list.
const DefaultSentinel = "需要更多细节"

// ExtractSections is the fallback path when no structural repair yields
// JSON: lines are bucketed under the most recently seen section header
// until the next recognized header or end of text. Enumeration markers are
// stripped, header-like and empty lines are discarded. This never fails;
// empty buckets come back sentinel-filled.
func ExtractSections(text string, sections []Section) map[string][]string {
	out := make(map[string][]string, len(sections))
	current := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if field, ok := matchHeader(line, sections); ok {
			current = field
			continue
		}
		if current == "" {
			continue
		}
		item := stripEnumeration(line)
		if item == "" || headerLike(item, sections) {
			continue
		}
		out[current] = append(out[current], item)
	}
	for _, s := range sections {
		if len(out[s.Field]) == 0 {
			sentinel := s.Sentinel
			if sentinel == "" {
				sentinel = DefaultSentinel
			}
			out[s.Field] = []string{sentinel}
		}
	}
	return out
}

func matchHeader(line string, sections []Section) (string, bool) {
	lower := strings.ToLower(line)
	for _, s := range sections {
		for _, h := range s.Headers {
			if h == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(h)) {
				return s.Field, true
			}
		}
	}
	return "", false
}

// headerLike reports whether a stripped line still reads as a section
// header rather than content; such lines are discarded instead of bucketed.
func headerLike(line string, sections []Section) bool {
	if _, ok := matchHeader(line, sections); ok {
		return true
	}
	return false
}

const cjkOrdinals = "一二三四五六七八九十"

// stripEnumeration removes leading list markers: bullets, "1." / "1、" /
// "(1)" / "（一）" forms, and the trailing separator they carry.
func stripEnumeration(line string) string {
	s := strings.TrimSpace(line)
	for {
		trimmed := trimOneMarker(s)
		if trimmed == s {
			return s
		}
		s = strings.TrimSpace(trimmed)
	}
}

func trimOneMarker(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	switch runes[0] {
	case '-', '*', '>', '+', '•', '·':
		return string(runes[1:])
	case '(', '（':
		// Parenthesized ordinal: (1) or （一）.
		for i := 1; i < len(runes) && i <= 4; i++ {
			if runes[i] == ')' || runes[i] == '）' {
				if i > 1 && allOrdinal(runes[1:i]) {
					return string(runes[i+1:])
				}
				return s
			}
		}
		return s
	}
	// Digit or CJK ordinal run followed by a separator.
	i := 0
	for i < len(runes) && isOrdinalRune(runes[i]) {
		i++
	}
	if i == 0 || i >= len(runes) {
		return s
	}
	switch runes[i] {
	case '.', '、', '．', ')', '）', ':', '：':
		return string(runes[i+1:])
	}
	return s
}

func allOrdinal(runes []rune) bool {
	for _, r := range runes {
		if !isOrdinalRune(r) {
			return false
		}
	}
	return true
}

func isOrdinalRune(r rune) bool {
	if r >= '0' && r <= '9' {
		return true
	}
	return strings.ContainsRune(cjkOrdinals, r)
}
