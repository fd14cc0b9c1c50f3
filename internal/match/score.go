package match

import (
	"sort"

	"github.com/david325345/stremio-titulky.com-docker/internal/titulky"
)

// Points per tag shared with the playing file.
var categoryWeights = map[Category]int{
	Resolution: 20,
	Source:     15,
	Codec:      5,
}

// qualityLadder ranks tags worst to best for results scored without a
// playing file.
var qualityLadder = map[string]int{
	"cam":      1,
	"telesync": 2,
	"dvd":      3,
	"dvdrip":   4,
	"hdtv":     5,
	"720p":     6,
	"hdrip":    6,
	"webrip":   7,
	"web":      8,
	"webdl":    9,
	"1080p":    10,
	"bluray":   11,
	"remux":    12,
	"2160p":    13,
}

// Scored is a search result with its rank score.
type Scored struct {
	titulky.SearchResult
	Score int `json:"score"`
}

// ContextScore sums the category weights of every tag label shares with
// playing.
func ContextScore(label string, playing Tags) int {
	score := 0
	for tag := range ExtractTags(label) {
		if category, ok := playing[tag]; ok {
			score += categoryWeights[category]
		}
	}
	return score
}

// QualityScore is the ladder rank of the best tag in label, 0 when none is
// on the ladder.
func QualityScore(label string) int {
	best := 0
	for tag := range ExtractTags(label) {
		if rank := qualityLadder[tag]; rank > best {
			best = rank
		}
	}
	return best
}

// Rank scores results against the playing file's tags, or by quality when
// playing is empty, and sorts them best first. Equal scores keep their input
// order.
func Rank(results []titulky.SearchResult, playing Tags) []Scored {
	scored := make([]Scored, len(results))
	for i, r := range results {
		score := 0
		if len(playing) > 0 {
			score = ContextScore(r.Label(), playing)
		} else {
			score = QualityScore(r.Label())
		}
		scored[i] = Scored{SearchResult: r, Score: score}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
