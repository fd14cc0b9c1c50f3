package titulky

import (
	"strings"

	"golang.org/x/text/language"
)

// Credentials identify a site account. Each distinct username gets its own
// Session.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Username) != "" && c.Password != ""
}

// SearchResult is one subtitle entry parsed from a listing page.
type SearchResult struct {
	ID        int64        `json:"id"`
	LinkToken string       `json:"link_token"`
	Title     string       `json:"title"`
	Version   string       `json:"version,omitempty"`
	Language  language.Tag `json:"language"`
	Downloads int          `json:"downloads"`
	Size      string       `json:"size,omitempty"`
	SizeBytes uint64       `json:"size_bytes,omitempty"`
	Author    string       `json:"author,omitempty"`
}

// Label is the free text used for release-tag matching.
func (r SearchResult) Label() string {
	if r.Version == "" {
		return r.Title
	}
	return r.Version + " " + r.Title
}

// SlugText returns the link token without its numeric id, with dashes as
// spaces ("Iron-Man-123" -> "Iron Man").
func (r SearchResult) SlugText() string {
	token := r.LinkToken
	if i := strings.LastIndex(token, "-"); i > 0 {
		token = token[:i]
	}
	return strings.TrimSpace(strings.ReplaceAll(token, "-", " "))
}

// LanguageCode renders the result language as the short code used by the
// site ("cs", "sk") or "unknown".
func (r SearchResult) LanguageCode() string {
	if r.Language == language.Und {
		return "unknown"
	}
	return r.Language.String()
}

// File is one subtitle file extracted from a downloaded archive.
type File struct {
	Name string
	Data []byte
}
