package titulky

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/david325345/stremio-titulky.com-docker/pkg/log"
)

const minCandidateLength = 2

// Search tries each candidate query in order and returns the results of the
// first one that yields any. Candidates shorter than minCandidateLength are
// skipped. A failed query is logged and the cascade moves on.
func (c *Client) Search(ctx context.Context, s *Session, candidates []string) ([]SearchResult, error) {
	if !s.EnsureAuthenticated(ctx) {
		return nil, NewError(ErrAuthFailure, "login failed").WithContext("user", s.Username())
	}

	for _, candidate := range candidates {
		query := strings.TrimSpace(candidate)
		if utf8.RuneCountInString(query) < minCandidateLength {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pg, err := c.get(ctx, s, c.searchURL(query), c.pageURL("/", nil))
		if err != nil {
			log.Warn("Search %q failed: %v", query, err)
			continue
		}
		results := ParseSearchPage(pg.body)
		log.Debug("Search %q returned %d results", query, len(results))
		if len(results) > 0 {
			return results, nil
		}
	}
	return nil, nil
}
