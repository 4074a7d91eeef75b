// Package llmjson recovers JSON objects from model output. Models wrap
// JSON in markdown fences, leave raw newlines inside strings, surround it
// with prose, or truncate it. Parsing walks a fixed ladder of strategies
// and stops at the first one that yields an object.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Strategy names the rung of the ladder that produced a result.
type Strategy string

const (
	StrategyDirect   Strategy = "direct"
	StrategyEscaped  Strategy = "escaped_newlines"
	StrategyBalanced Strategy = "balanced_braces"
	StrategyFields   Strategy = "field_regex"
)

// ErrNoJSON is returned when no strategy recovered any usable content.
var ErrNoJSON = errors.New("no JSON object found in model output")

var fenceRegex = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// Result is a recovered object plus the strategy that produced it.
type Result struct {
	Data     map[string]any
	Strategy Strategy
}

// Extract recovers a JSON object from raw. fields names the keys the
// caller expects. A brace-balanced span cut out of surrounding text is
// only accepted when it carries at least one of them; otherwise the
// regex rung recovers them one by one.
func Extract(raw string, fields ...string) (*Result, error) {
	for _, c := range candidates(raw) {
		var m map[string]any
		if err := json.Unmarshal([]byte(c.text), &m); err == nil && m != nil {
			if c.strategy == StrategyBalanced && !hasAnyField(m, fields) {
				continue
			}
			return &Result{Data: m, Strategy: c.strategy}, nil
		}
	}

	m := extractFields(raw, fields)
	if len(m) == 0 {
		return nil, ErrNoJSON
	}
	return &Result{Data: m, Strategy: StrategyFields}, nil
}

// Decode recovers an object from raw and unmarshals it into v.
func Decode(raw string, v any, fields ...string) (Strategy, error) {
	for _, c := range candidates(raw) {
		if !looksLikeObject(c.text) {
			continue
		}
		if c.strategy == StrategyBalanced && len(fields) > 0 {
			var m map[string]any
			if err := json.Unmarshal([]byte(c.text), &m); err != nil || !hasAnyField(m, fields) {
				continue
			}
		}
		if err := json.Unmarshal([]byte(c.text), v); err == nil {
			return c.strategy, nil
		}
	}

	m := extractFields(raw, fields)
	if len(m) == 0 {
		return "", ErrNoJSON
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("re-marshal recovered fields: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return "", fmt.Errorf("decode recovered fields: %w", err)
	}
	return StrategyFields, nil
}

type candidate struct {
	text     string
	strategy Strategy
}

// candidates yields the texts tried by the first three rungs, in order.
func candidates(raw string) []candidate {
	stripped := StripFences(raw)
	out := []candidate{{text: stripped, strategy: StrategyDirect}}

	escaped := EscapeNewlinesInStrings(stripped)
	if escaped != stripped {
		out = append(out, candidate{text: escaped, strategy: StrategyEscaped})
	}

	for _, obj := range TopLevelObjects(raw) {
		out = append(out, candidate{text: obj, strategy: StrategyBalanced})
		if esc := EscapeNewlinesInStrings(obj); esc != obj {
			out = append(out, candidate{text: esc, strategy: StrategyBalanced})
		}
	}
	return out
}

func looksLikeObject(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{")
}

// hasAnyField reports whether m carries one of fields. An empty field
// list accepts any object.
func hasAnyField(m map[string]any, fields []string) bool {
	if len(fields) == 0 {
		return true
	}
	for _, f := range fields {
		if _, ok := m[f]; ok {
			return true
		}
	}
	return false
}

// StripFences removes a surrounding markdown code fence, if any, and a
// bare leading "json" label some models emit without backticks.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fenceRegex.FindStringSubmatch(s); len(m) == 2 {
		s = m[1]
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "json\n") {
		s = strings.TrimSpace(s[5:])
	}
	return s
}

// EscapeNewlinesInStrings escapes raw control characters that appear
// inside JSON string literals.
func EscapeNewlinesInStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
				b.WriteRune(r)
				continue
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			case r == '\n':
				b.WriteString(`\n`)
				continue
			case r == '\r':
				b.WriteString(`\r`)
				continue
			case r == '\t':
				b.WriteString(`\t`)
				continue
			}
			b.WriteRune(r)
			continue
		}
		if r == '"' {
			inString = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BalancedObject returns the first top-level brace-balanced {...} span in
// s, ignoring braces inside string literals. When the first object is
// never closed there is none: every later brace sits inside it.
func BalancedObject(s string) (string, bool) {
	objs := TopLevelObjects(s)
	if len(objs) == 0 {
		return "", false
	}
	return objs[0], true
}

// TopLevelObjects returns every closed top-level {...} span in s, in
// order. Scanning stops at the first object that is never closed.
func TopLevelObjects(s string) []string {
	var out []string
	pos := 0
	for pos < len(s) {
		i := strings.IndexByte(s[pos:], '{')
		if i < 0 {
			break
		}
		start := pos + i
		end := matchClose(s, start, '{', '}')
		if end < 0 {
			break
		}
		out = append(out, s[start:end+1])
		pos = end + 1
	}
	return out
}

func matchClose(s string, start int, open, close byte) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// extractFields pulls individual "field": value pairs out of text that no
// longer parses as a whole.
func extractFields(raw string, fields []string) map[string]any {
	out := make(map[string]any)
	for _, f := range fields {
		if v, ok := extractField(raw, f); ok {
			out[f] = v
		}
	}
	return out
}

func extractField(raw, field string) (any, bool) {
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(field) + `"\s*:\s*`)
	loc := re.FindStringIndex(raw)
	if loc == nil {
		return nil, false
	}
	rest := raw[loc[1]:]
	if rest == "" {
		return nil, false
	}

	switch rest[0] {
	case '"':
		return readString(rest)
	case '{', '[':
		open, close := rest[0], byte('}')
		if open == '[' {
			close = ']'
		}
		end := matchClose(rest, 0, open, close)
		if end < 0 {
			return nil, false
		}
		var v any
		span := EscapeNewlinesInStrings(rest[:end+1])
		if err := json.Unmarshal([]byte(span), &v); err != nil {
			return nil, false
		}
		return v, true
	}

	tok := rest
	if i := strings.IndexAny(tok, ",}\n"); i >= 0 {
		tok = tok[:i]
	}
	tok = strings.TrimSpace(tok)
	switch tok {
	case "true":
		return true, true
	case "false":
		return false, true
	case "null":
		return nil, false
	}
	if n, err := strconv.ParseFloat(tok, 64); err == nil {
		return n, true
	}
	return nil, false
}

// readString reads a JSON string literal that may contain raw newlines or
// be cut off before its closing quote.
func readString(s string) (any, bool) {
	var b strings.Builder
	escaped := false
	for i := 1; i < len(s); i++ {
		c := s[i]
		if escaped {
			switch c {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(c)
			}
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			return b.String(), true
		default:
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return nil, false
	}
	return b.String(), true
}

// String returns m[key] as a string, or "" when absent or not a string.
func String(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Float returns m[key] as a float64, or def when absent.
func Float(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}
