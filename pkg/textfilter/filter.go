// Package textfilter cleans model prose and folds names for comparison.
package textfilter

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Patterns the writer model leaks into prose. Order matters: the choice
// block is cut before headings are stripped.
var metaPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?is)\n\s*(?:\*\*)?(?:choices|lựa chọn)(?:\*\*)?\s*:.*$`), ""},
	{regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+.*$`), ""},
	{regexp.MustCompile(`(?m)^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`), ""},
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "$1"},
	{regexp.MustCompile(`(?i)\bas an ai(?: language model)?,?\s*`), ""},
	{regexp.MustCompile(`[ \t]+\n`), "\n"},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

// CleanProse removes markdown scaffolding and leaked meta text from
// model prose.
func CleanProse(text string) string {
	out := strings.ReplaceAll(text, "\r\n", "\n")
	for _, p := range metaPatterns {
		out = p.re.ReplaceAllString(out, p.repl)
	}
	return strings.TrimSpace(out)
}

// Fold lower-cases s and strips diacritics so "Thệ Ước" and "the uoc"
// compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.NewReplacer("đ", "d", "Đ", "D").Replace(out)
	return strings.Join(strings.Fields(cases.Fold().String(out)), " ")
}

// TitleCase capitalises each word, keeping diacritics.
func TitleCase(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int { return len(strings.Fields(s)) }

// Truncate shortens s to at most n runes, cutting at a word boundary
// in the second half of the kept text.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i >= n/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}

// PreserveCase applies the case pattern of original to replacement.
func PreserveCase(original, replacement string) string {
	if original == "" {
		return replacement
	}
	if strings.ToUpper(original) == original {
		return strings.ToUpper(replacement)
	}
	if strings.ToLower(original) == original {
		return strings.ToLower(replacement)
	}
	if TitleCase(strings.ToLower(original)) == original {
		return TitleCase(replacement)
	}
	return replacement
}
