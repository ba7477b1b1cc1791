package textutil

import (
	"regexp"
	"seatwatch/lib/htmlutil"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases and strips every kind of whitespace, so
// "Rem Seats" and "rem seats" compare equal.
func NormalizeName(name string) string {
	name = strings.ToLower(htmlutil.CleanText(name))
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// MatchName reports whether `name` contains `matcher` after
// normalization, or failing that if the two are at least `similarity`
// alike by Jaro-Winkler distance.
func MatchName(name, matcher string, similarity float64) bool {
	name = NormalizeName(name)
	matcher = NormalizeName(matcher)
	if name == "" || matcher == "" {
		return false
	}
	if strings.Contains(name, matcher) {
		return true
	}
	return matchr.JaroWinkler(name, matcher, false) >= similarity
}
