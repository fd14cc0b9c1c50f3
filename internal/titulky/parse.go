package titulky

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/language"
)

// noResultsMarker is printed by the site in place of the result table.
var noResultsMarker = []byte("Nebyly nalezeny žádné titulky")

// Column positions in a result row.
const (
	downloadsCell = 4
	sizeCell      = 7
	authorCell    = 8
)

var (
	rowClassRe = regexp.MustCompile(`^r\d*$`)
	slugRe     = regexp.MustCompile(`(?:^|/)([A-Za-z0-9][^/?#"'\s]*?)-(\d+)\.htm(?:[?#].*)?$`)
	anchorRe   = regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*["']([^"']+)["'][^>]*>(.*?)</a>`)
	tagRe      = regexp.MustCompile(`(?s)<[^>]*>`)
)

// linkDenylist holds slug fragments of site pages that share the listing URL
// shape but are not subtitles.
var linkDenylist = []string{
	"napoveda",
	"forum",
	"reklama",
	"pravidla",
	"kontakt",
	"faq",
	"navod",
}

// ParseStrategy extracts results from a search page. It returns nothing when
// the page does not have the shape it understands.
type ParseStrategy func(body []byte) []SearchResult

// parseStrategies are tried in order; the first non-empty result wins.
var parseStrategies = []ParseStrategy{
	ParseRows,
	ParseLinks,
}

// ParseSearchPage turns a search result page into results.
func ParseSearchPage(body []byte) []SearchResult {
	if bytes.Contains(body, noResultsMarker) {
		return nil
	}
	for _, strategy := range parseStrategies {
		if results := strategy(body); len(results) > 0 {
			return results
		}
	}
	return nil
}

// ParseRows reads the structured result table: one <tr class="rN"> per
// subtitle.
func ParseRows(body []byte) []SearchResult {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var results []SearchResult
	for _, row := range findAll(doc, isResultRow) {
		if r, ok := parseRow(row); ok {
			results = append(results, r)
		}
	}
	return results
}

func parseRow(row *html.Node) (SearchResult, bool) {
	var r SearchResult
	for _, a := range findAll(row, isElement(atom.A)) {
		m := slugRe.FindStringSubmatch(attr(a, "href"))
		if m == nil {
			continue
		}
		text := nodeText(a)
		if r.ID == 0 {
			id, err := strconv.ParseInt(m[2], 10, 64)
			if err != nil {
				continue
			}
			r.ID = id
			r.LinkToken = m[1] + "-" + m[2]
		}
		if r.Title == "" && text != "" {
			r.Title = text
			r.Version = strings.TrimSpace(attr(a, "title"))
		}
	}
	if r.ID == 0 {
		return SearchResult{}, false
	}
	if r.Title == "" {
		r.Title = r.SlugText()
	}

	r.Language = language.Und
	for _, img := range findAll(row, isElement(atom.Img)) {
		if tag, ok := flagLanguage(attr(img, "alt")); ok {
			r.Language = tag
			break
		}
	}

	cells := childElements(row, atom.Td)
	if text := cellText(cells, downloadsCell); text != "" {
		if n, err := strconv.Atoi(onlyDigits(text)); err == nil {
			r.Downloads = n
		}
	}
	if text := cellText(cells, sizeCell); text != "" {
		r.Size = text
		if n, err := humanize.ParseBytes(strings.ReplaceAll(text, ",", ".")); err == nil {
			r.SizeBytes = n
		}
	}
	r.Author = cellText(cells, authorCell)
	return r, true
}

// ParseLinks scans every anchor that looks like a subtitle listing link. It is
// the fallback for pages whose table markup changed.
func ParseLinks(body []byte) []SearchResult {
	seen := make(map[int64]struct{})
	var results []SearchResult
	for _, m := range anchorRe.FindAllSubmatch(body, -1) {
		href := html.UnescapeString(string(m[1]))
		sm := slugRe.FindStringSubmatch(href)
		if sm == nil || denied(sm[1]) {
			continue
		}
		id, err := strconv.ParseInt(sm[2], 10, 64)
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		r := SearchResult{
			ID:        id,
			LinkToken: sm[1] + "-" + sm[2],
			Language:  language.Und,
		}
		r.Title = collapseSpace(html.UnescapeString(tagRe.ReplaceAllString(string(m[2]), " ")))
		if r.Title == "" {
			r.Title = r.SlugText()
		}
		results = append(results, r)
	}
	return results
}

func denied(slug string) bool {
	lower := strings.ToLower(slug)
	for _, word := range linkDenylist {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

func flagLanguage(alt string) (language.Tag, bool) {
	switch strings.ToUpper(strings.TrimSpace(alt)) {
	case "CZ", "CS", "CZE":
		return language.Czech, true
	case "SK", "SLO", "SVK":
		return language.Slovak, true
	}
	return language.Und, false
}

func isResultRow(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Tr {
		return false
	}
	for _, class := range strings.Fields(attr(n, "class")) {
		if rowClassRe.MatchString(class) {
			return true
		}
	}
	return false
}

func isElement(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func childElements(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			out = append(out, c)
		}
	}
	return out
}

func cellText(cells []*html.Node, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return nodeText(cells[i])
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return collapseSpace(sb.String())
}

// onlyDigits drops grouping separators ("1 234", "1.234").
func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
