// Package match decides which search results belong to the requested work and
// orders them by how well their release fits the file being played.
package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/david325345/stremio-titulky.com-docker/internal/titulky"
)

// Normalize folds diacritics, lowercases, and reduces s to ASCII letters,
// digits and single spaces ("Železný Muž: 2" -> "zelezny muz 2").
func Normalize(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn))), s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var sb strings.Builder
	sb.Grow(len(folded))
	space := true
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			space = false
			continue
		}
		if !space {
			sb.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(sb.String())
}

// BoundaryToken is one kind of word allowed to follow the title in a result
// that still counts as the same work.
type BoundaryToken struct {
	Name  string
	Match func(word string) bool
}

var (
	yearRe       = regexp.MustCompile(`^(19|20)\d{2}$`)
	seasonEpRe   = regexp.MustCompile(`^s\d{1,2}(e\d{1,3})*$`)
	crossEpRe    = regexp.MustCompile(`^\d{1,2}x\d{1,3}$`)
	resolutionRe = regexp.MustCompile(`^\d{3,4}[pi]$`)
)

var seasonWords = map[string]struct{}{
	"season": {},
	"series": {},
	"serie":  {},
	"rada":   {},
	"sezona": {},
}

var releasePrefixes = []string{
	"bluray", "bdrip", "brrip",
	"web",
	"hdtv", "hdrip",
	"dvd",
	"x264", "x265", "h264", "h265", "hevc", "xvid",
	"remux",
}

// BoundaryTokens is the allowlist consulted by IsExactTitleMatch. Anything
// not listed here (a bare sequel number, a subtitle word) rejects the match.
var BoundaryTokens = []BoundaryToken{
	{Name: "year", Match: yearRe.MatchString},
	{Name: "season-episode", Match: func(w string) bool {
		return seasonEpRe.MatchString(w) || crossEpRe.MatchString(w)
	}},
	{Name: "season-word", Match: func(w string) bool {
		_, ok := seasonWords[w]
		return ok
	}},
	{Name: "resolution", Match: func(w string) bool {
		return resolutionRe.MatchString(w) || w == "4k" || w == "uhd"
	}},
	{Name: "release", Match: func(w string) bool {
		for _, p := range releasePrefixes {
			if strings.HasPrefix(w, p) {
				return true
			}
		}
		return false
	}},
}

// IsExactTitleMatch reports whether candidate names the target work: equal
// after normalization, or the target followed by a word from BoundaryTokens.
func IsExactTitleMatch(target, candidate string) bool {
	t := Normalize(target)
	c := Normalize(candidate)
	if t == "" || c == "" {
		return false
	}
	if c == t {
		return true
	}
	if !strings.HasPrefix(c, t+" ") {
		return false
	}
	next := strings.Fields(c[len(t)+1:])
	if len(next) == 0 {
		return true
	}
	for _, b := range BoundaryTokens {
		if b.Match(next[0]) {
			return true
		}
	}
	return false
}

// FilterByTitle keeps results whose title or link slug matches any of names.
// With no usable names every result is kept.
func FilterByTitle(results []titulky.SearchResult, names []string) []titulky.SearchResult {
	var targets []string
	for _, n := range names {
		if Normalize(n) != "" {
			targets = append(targets, n)
		}
	}
	if len(targets) == 0 {
		return results
	}

	kept := make([]titulky.SearchResult, 0, len(results))
	for _, r := range results {
		if matchesAny(targets, r.Title) || matchesAny(targets, r.SlugText()) {
			kept = append(kept, r)
		}
	}
	return kept
}

func matchesAny(targets []string, text string) bool {
	for _, t := range targets {
		if IsExactTitleMatch(t, text) {
			return true
		}
	}
	return false
}
