package service

import (
	"context"
	"strings"

	"github.com/david325345/stremio-titulky.com-docker/internal/match"
)

// Title is what the resolver knows about a work.
type Title struct {
	Name    string
	Aliases []string
	Poster  string
}

// Names is the display name followed by the aliases.
func (t Title) Names() []string {
	return append([]string{t.Name}, t.Aliases...)
}

// TitleResolver looks up a work by an external identifier such as an IMDb
// id. It is only used to build search terms.
type TitleResolver interface {
	Resolve(ctx context.Context, workID string) (Title, error)
}

// SearchRequest describes the video being played. Names, when set, are used
// as they are; otherwise WorkID is resolved through the TitleResolver.
type SearchRequest struct {
	WorkID   string
	Names    []string
	Season   int
	Episode  int
	FileName string
}

// Result is a ranked search result.
type Result struct {
	match.Scored
	Cached bool `json:"cached"`
}

// Subtitle is a served subtitle. Limited is set when Content is the
// download limit placeholder.
type Subtitle struct {
	Content  string
	FileName string
	Limited  bool
}

type OutputFormat string

const (
	OutputVTT OutputFormat = "vtt"
	OutputSRT OutputFormat = "srt"
)

func (f OutputFormat) Ext() string {
	if f == OutputSRT {
		return ".srt"
	}
	return ".vtt"
}

func (f OutputFormat) ContentType() string {
	if f == OutputSRT {
		return "application/x-subrip; charset=utf-8"
	}
	return "text/vtt; charset=utf-8"
}

// ParseOutputFormat accepts "vtt" and "srt", case-insensitively.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputVTT, OutputSRT:
		return f, nil
	default:
		return "", NewError(ErrValidation, "unsupported output format").WithContext("format", s)
	}
}
