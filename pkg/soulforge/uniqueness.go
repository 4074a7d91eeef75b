package soulforge

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/textfilter"
)

const (
	MaxForgeRetries = 3
	// MinUniqueness is the lowest acceptable 1 - max cosine similarity.
	MinUniqueness    = 0.15
	wordOverlapLimit = 0.6
)

// NamesSimilar compares two skill names after folding case and
// diacritics: exact match, substring either way when longer than three
// characters, or more than 60% shared words.
func NamesSimilar(a, b string) bool {
	fa, fb := textfilter.Fold(a), textfilter.Fold(b)
	if fa == "" || fb == "" {
		return false
	}
	if fa == fb {
		return true
	}
	if utf8.RuneCountInString(fa) > 3 && utf8.RuneCountInString(fb) > 3 &&
		(strings.Contains(fa, fb) || strings.Contains(fb, fa)) {
		return true
	}
	wa, wb := wordSet(fa), wordSet(fb)
	shared := 0
	for w := range wa {
		if wb[w] {
			shared++
		}
	}
	return float64(shared)/float64(max(len(wa), len(wb))) > wordOverlapLimit
}

func wordSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(s) {
		out[w] = true
	}
	return out
}

// SimilarName returns the first existing name that clashes with name.
func SimilarName(name string, existing []string) (string, bool) {
	for _, e := range existing {
		if NamesSimilar(name, e) {
			return e, true
		}
	}
	return "", false
}

// Cosine is the cosine similarity of two vectors, 0 when either is empty
// or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// UniquenessScore is 1 minus the highest similarity to any stored mechanic.
func UniquenessScore(vec []float32, stored [][]float32) float64 {
	best := 0.0
	for _, s := range stored {
		best = max(best, Cosine(vec, s))
	}
	return 1 - best
}

var chaosKeywords = []string{
	"mirrors", "debt", "hunger", "tides", "clockwork", "ash", "names",
	"thresholds", "echoes", "salt", "borrowed time", "forgotten gods",
}

// RetryDirective is appended to the forge prompt on retry attempt n
// (1-based). Directives accumulate across attempts.
func RetryDirective(attempt int, rejected []string, roller dice.Roller) string {
	if attempt <= 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "These names are taken and must not be reused or echoed: %s. ", strings.Join(rejected, ", "))
	b.WriteString("Design a completely different mechanic.")
	if attempt >= 2 {
		kw := chaosKeywords[0]
		if roller != nil {
			if i, err := roller.Roll(len(chaosKeywords)); err == nil {
				kw = chaosKeywords[i-1]
			}
		}
		fmt.Fprintf(&b, " Chaos factor: build the skill around %q.", kw)
	}
	if attempt >= 3 {
		b.WriteString(" You may break exactly one category rule if it makes the skill distinct.")
	}
	return b.String()
}

// ValidateForged checks a generated unique skill before it is installed.
func ValidateForged(u *skill.UniqueSkill) error {
	switch {
	case strings.TrimSpace(u.Name) == "":
		return fmt.Errorf("forged skill has no name")
	case !u.Category.Valid():
		return fmt.Errorf("forged skill has unknown category %q", u.Category)
	case !u.WeaknessType.Valid():
		return fmt.Errorf("forged skill has unknown weakness type %q", u.WeaknessType)
	case strings.TrimSpace(u.Mechanic) == "":
		return fmt.Errorf("forged skill has no mechanic")
	case strings.TrimSpace(u.Weakness) == "":
		return fmt.Errorf("forged skill has no weakness")
	case strings.TrimSpace(u.DomainPassiveName) == "":
		return fmt.Errorf("forged skill has no domain passive")
	}
	return nil
}
