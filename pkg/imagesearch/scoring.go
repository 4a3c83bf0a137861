package imagesearch

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	AttributionBonus = 0.05
	DefaultMinScore  = 0.15
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"on": {}, "for": {}, "with": {}, "at": {}, "by": {}, "from": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "this": {}, "that": {}, "it": {}, "its": {}, "as": {},
	"showing": {}, "shows": {}, "image": {}, "photo": {}, "picture": {}, "illustration": {},
}

// Normalize folds case and strips diacritics.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

// Tokens returns the distinct content words of s.
func Tokens(s string) map[string]struct{} {
	fields := strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

// Dice is the Sørensen–Dice coefficient over token sets.
func Dice(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ta)+len(tb))
}

// Score rates a candidate against the placeholder description.
func Score(description string, c Candidate) float64 {
	s := Dice(description, c.Label())
	if c.AttributionURL != "" {
		s += AttributionBonus
	}
	if s > 1 {
		s = 1
	}
	return s
}

// Best returns the highest scoring candidate; ties keep provider order.
func Best(description string, candidates []Candidate) (Candidate, float64, bool) {
	var best Candidate
	bestScore := -1.0
	for _, c := range candidates {
		if s := Score(description, c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore, bestScore >= 0
}
