package game

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var cleaner = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// cleanAnswer folds a guess or a song/artist name down to the characters that
// matter for comparison: lowercase, diacritics stripped, punctuation and
// whitespace removed, trailing feature credits dropped.
func cleanAnswer(s string) string {
	s = strings.ToLower(s)
	if i := strings.Index(s, "(feat"); i > 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "feat."); i > 0 {
		s = s[:i]
	}
	if folded, _, err := transform.String(cleaner, s); err == nil {
		s = folded
	}
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// answerMatches reports whether guess matches any of the names, tolerating
// small typos on longer answers. Tolerance scales with length so short titles
// still require an exact match.
func answerMatches(guess string, names []string) bool {
	g := cleanAnswer(guess)
	if g == "" {
		return false
	}
	for _, name := range names {
		n := cleanAnswer(name)
		if n == "" {
			continue
		}
		if g == n {
			return true
		}
		if tol := typoTolerance(len(n)); tol > 0 && levenshtein.ComputeDistance(g, n) <= tol {
			return true
		}
	}
	return false
}

func typoTolerance(nameLen int) int {
	switch {
	case nameLen >= 10:
		return 2
	case nameLen >= 5:
		return 1
	default:
		return 0
	}
}
