// Package jsonrepair turns unreliable generator output into parseable JSON.
// The generator is asked for strict JSON but routinely wraps it in prose or
// markdown fences, drops separators, or truncates mid-object. Normalize runs
// a fixed ladder of repairs; the first parseable result wins. When no
// structural repair succeeds, callers fall back to line-oriented section
// extraction (see sections.go), which never hard-fails.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ErrUnparseable is returned when every structural repair attempt failed.
var ErrUnparseable = errors.New("jsonrepair: no structural repair produced valid JSON")

// Normalizer repairs malformed JSON-like text. The zero value is usable;
// New attaches a logger so bracket auto-insertions leave a trace.
type Normalizer struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{log: log}
}

// Normalize converts a text blob believed to contain one JSON object into a
// parsed raw message. Attempts, in order: direct parse, brace-boundary
// extraction, structural repair, trailing-comma-tolerant parse, and
// bracket-count coercion.
func (n *Normalizer) Normalize(text string) (json.RawMessage, error) {
	if n == nil {
		n = New(nil)
	}
	candidate := stripFences(strings.TrimSpace(text))
	if candidate == "" {
		return nil, ErrUnparseable
	}

	if raw, ok := tryParse(candidate); ok {
		return raw, nil
	}

	bounded := sliceToBraces(candidate)
	if bounded != "" {
		if raw, ok := tryParse(bounded); ok {
			return raw, nil
		}
		candidate = bounded
	}

	repaired := n.repairStructure(candidate)
	if raw, ok := tryParse(repaired); ok {
		return raw, nil
	}

	// Lenient pass: only strip trailing separators, in case the heavier
	// repairs above mangled an otherwise minor deviation.
	if raw, ok := tryParse(dropTrailingSeparators(candidate)); ok {
		return raw, nil
	}

	if coerced := n.coerceBraceCounts(repaired); coerced != repaired {
		if raw, ok := tryParse(coerced); ok {
			return raw, nil
		}
	}
	return nil, ErrUnparseable
}

func tryParse(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return json.RawMessage(s), true
	}
	// Bare scalars are not useful stage payloads.
	return nil, false
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// stripFences extracts the first fenced block when present; the generator
// often wraps its JSON in ```json fences with commentary around them.
func stripFences(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		inner := strings.TrimSpace(m[1])
		if inner != "" {
			return inner
		}
	}
	return s
}

// sliceToBraces cuts the text to the span between the first opening brace
// and the last closing brace, discarding generator preamble and postamble.
// When no closing brace follows the opener the tail is kept as-is so the
// bracket balancer can finish the job.
func sliceToBraces(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	end := strings.LastIndexAny(s, "}]")
	if end > start {
		return s[start : end+1]
	}
	return s[start:]
}

var (
	unquotedKeyRe = regexp.MustCompile(`([{\[,]\s*)([A-Za-z_][A-Za-z0-9_\-]*)\s*:`)
	missingCommaStrRe = regexp.MustCompile(`("(?:[^"\\]|\\.)*")(\s+)(["{\[])`)
	missingCommaCloseRe = regexp.MustCompile(`([}\]])(\s+)(["{\[])`)
	missingCommaNumRe = regexp.MustCompile(`([0-9])(\s+)(["{\[])`)
	trailingSepRe = regexp.MustCompile(`,\s*([}\]])`)
)

// repairStructure applies the ordered repair passes from cheap textual
// rewrites up to the bracket-stack balancer.
func (n *Normalizer) repairStructure(s string) string {
	s = unquotedKeyRe.ReplaceAllString(s, `$1"$2":`)
	s = normalizeQuotes(s)
	// Missing-separator insertion can unlock further matches (three
	// adjacent elements share a boundary), so run to a fixed point.
	for {
		next := missingCommaStrRe.ReplaceAllString(s, `$1,$2$3`)
		next = missingCommaCloseRe.ReplaceAllString(next, `$1,$2$3`)
		next = missingCommaNumRe.ReplaceAllString(next, `$1,$2$3`)
		if next == s {
			break
		}
		s = next
	}
	s = dropTrailingSeparators(s)
	return n.balanceBrackets(s)
}

func dropTrailingSeparators(s string) string {
	return trailingSepRe.ReplaceAllString(s, `$1`)
}

// normalizeQuotes walks the text once, converting single-quoted strings to
// double-quoted ones and escaping stray interior double quotes. A double
// quote inside a string is considered stray when the next non-space rune is
// not a separator, closer, or colon.
func normalizeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	inDouble := false
	inSingle := false
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inDouble:
			if r == '\\' && i+1 < len(runes) {
				b.WriteRune(r)
				b.WriteRune(runes[i+1])
				i++
				continue
			}
			if r == '"' {
				if strayQuote(runes, i+1) {
					b.WriteString(`\"`)
					continue
				}
				inDouble = false
			}
			b.WriteRune(r)
		case inSingle:
			if r == '\\' && i+1 < len(runes) {
				b.WriteRune(r)
				b.WriteRune(runes[i+1])
				i++
				continue
			}
			if r == '\'' {
				inSingle = false
				b.WriteRune('"')
				continue
			}
			if r == '"' {
				b.WriteString(`\"`)
				continue
			}
			b.WriteRune(r)
		default:
			if r == '"' {
				inDouble = true
			} else if r == '\'' {
				inSingle = true
				b.WriteRune('"')
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// strayQuote reports whether a closing double quote looks accidental: the
// following non-space rune continues prose instead of terminating a value.
// A following opener (", {, [) is a missing-separator case handled later,
// not a stray quote.
func strayQuote(runes []rune, from int) bool {
	for j := from; j < len(runes); j++ {
		switch runes[j] {
		case ' ', '\t', '\r', '\n':
			continue
		case ',', '}', ']', ':', '"', '{', '[':
			return false
		default:
			return true
		}
	}
	return false
}

// balanceBrackets tracks an open/close stack outside string literals.
// Mismatched closers are coerced to the type the stack implies and missing
// closers are appended at end of text. Every auto-correction is logged.
func (n *Normalizer) balanceBrackets(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	var stack []rune
	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			b.WriteRune(r)
			if escaped {
				escaped = false
				continue
			}
			switch r {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
			b.WriteRune(r)
		case '{', '[':
			stack = append(stack, r)
			b.WriteRune(r)
		case '}', ']':
			if len(stack) == 0 {
				n.log.Debug("jsonrepair: dropping unmatched closer", zap.String("closer", string(r)))
				continue
			}
			want := closerFor(stack[len(stack)-1])
			stack = stack[:len(stack)-1]
			if r != want {
				n.log.Debug("jsonrepair: coercing mismatched closer",
					zap.String("got", string(r)), zap.String("want", string(want)))
				r = want
			}
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		c := closerFor(stack[i])
		n.log.Debug("jsonrepair: appending missing closer", zap.String("closer", string(c)))
		b.WriteRune(c)
	}
	return b.String()
}

func closerFor(opener rune) rune {
	if opener == '{' {
		return '}'
	}
	return ']'
}

// coerceBraceCounts is the last structural resort: pad whichever side of
// the brace count is short.
func (n *Normalizer) coerceBraceCounts(s string) string {
	opens, closes := 0, 0
	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			opens++
		case '}':
			closes++
		}
	}
	switch {
	case opens > closes:
		n.log.Debug("jsonrepair: padding closing braces", zap.Int("count", opens-closes))
		return s + strings.Repeat("}", opens-closes)
	case closes > opens:
		n.log.Debug("jsonrepair: padding opening braces", zap.Int("count", closes-opens))
		return strings.Repeat("{", closes-opens) + s
	}
	return s
}
