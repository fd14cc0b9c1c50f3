package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/david325345/stremio-titulky.com-docker/internal/cache"
	"github.com/david325345/stremio-titulky.com-docker/internal/match"
	"github.com/david325345/stremio-titulky.com-docker/internal/subtitle"
	"github.com/david325345/stremio-titulky.com-docker/internal/titulky"
	"github.com/david325345/stremio-titulky.com-docker/pkg/file"
	"github.com/david325345/stremio-titulky.com-docker/pkg/log"
)

// Service owns every piece of shared state of the subtitle pipeline: the
// per-user sessions, both cache tiers and the in-flight downloads. Build one
// at startup and Close it at shutdown.
type Service struct {
	client   *titulky.Client
	cache    *cache.Cache
	resolver TitleResolver
	closers  []func() error

	mu       sync.Mutex
	sessions map[string]*titulky.Session
}

type Option func(*Service)

// WithResolver sets the collaborator used to turn work ids into names.
func WithResolver(r TitleResolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithCloser registers fn to run on Close, in reverse registration order.
func WithCloser(fn func() error) Option {
	return func(s *Service) { s.closers = append(s.closers, fn) }
}

func New(client *titulky.Client, c *cache.Cache, opts ...Option) (*Service, error) {
	if client == nil || c == nil {
		return nil, NewError(ErrConfig, "service needs a site client and a cache")
	}
	s := &Service{
		client:   client,
		cache:    c,
		sessions: make(map[string]*titulky.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases resources registered with WithCloser.
func (s *Service) Close() error {
	var errs []string
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close service: %s", strings.Join(errs, "; "))
	}
	return nil
}

// session returns the session for creds, replacing it when the password
// changed since it was created.
func (s *Service) session(creds titulky.Credentials) *titulky.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[creds.Username]; ok && sess.Matches(creds) {
		return sess
	}
	sess := s.client.NewSession(creds)
	s.sessions[creds.Username] = sess
	log.Debug("New session %s for %s", sess.ID, creds.Username)
	return sess
}

// Search finds subtitles for the video described by req, ranked best
// first. Every failure degrades to an empty result.
func (s *Service) Search(ctx context.Context, creds titulky.Credentials, req SearchRequest) []Result {
	var out []Result
	err := SafeExecute(func() error {
		out = s.search(ctx, creds, req)
		return nil
	})
	if err != nil {
		return []Result{}
	}
	return out
}

func (s *Service) search(ctx context.Context, creds titulky.Credentials, req SearchRequest) []Result {
	if !creds.Valid() {
		log.Warn("Search without credentials")
		return []Result{}
	}

	names := s.names(ctx, req)
	candidates := BuildCandidates(names, req.Season, req.Episode)
	if len(candidates) == 0 {
		log.Info("No search candidates for %q", req.WorkID)
		return []Result{}
	}

	found, err := s.client.Search(ctx, s.session(creds), candidates)
	if err != nil {
		log.Warn("Search for %v failed: %v", candidates, err)
		return []Result{}
	}

	filtered := match.FilterByTitle(found, names)
	ranked := match.Rank(filtered, match.ExtractTags(req.FileName))

	out := make([]Result, len(ranked))
	for i, r := range ranked {
		out[i] = Result{Scored: r, Cached: s.cache.Cached(fmt.Sprint(r.ID))}
	}
	log.Info("Search %v: %d results, %d after title filter", candidates, len(found), len(out))
	return out
}

func (s *Service) names(ctx context.Context, req SearchRequest) []string {
	if len(req.Names) > 0 {
		return req.Names
	}
	if s.resolver == nil || req.WorkID == "" {
		return nil
	}
	title, err := s.resolver.Resolve(ctx, req.WorkID)
	if err != nil {
		log.Warn("Resolving %s failed: %v", req.WorkID, err)
		return nil
	}
	return title.Names()
}

// ServeSubtitle returns subtitle id converted to format. When the site
// refuses the download the limit placeholder is returned instead.
func (s *Service) ServeSubtitle(ctx context.Context, creds titulky.Credentials, id, linkToken string, format OutputFormat) Subtitle {
	var out Subtitle
	err := SafeExecute(func() error {
		out = s.serve(ctx, creds, id, linkToken, format)
		return nil
	})
	if err != nil {
		return limitSubtitle(format)
	}
	return out
}

func (s *Service) serve(ctx context.Context, creds titulky.Credentials, id, linkToken string, format OutputFormat) Subtitle {
	sess := s.session(creds)
	res := s.cache.Serve(ctx, id, func(ctx context.Context) ([]titulky.File, error) {
		return s.client.Fetch(ctx, sess, id, linkToken)
	})
	if res.Limited {
		return limitSubtitle(format)
	}

	content := res.Content
	if format == OutputSRT {
		srt, err := subtitle.VTTToSRT(content)
		if err != nil {
			log.Error("Rendering subtitle %s as SRT failed: %v", id, err)
			return limitSubtitle(format)
		}
		content = srt
	}
	return Subtitle{
		Content:  content,
		FileName: ServedName(res.FileName, id, format),
	}
}

// ConvertToCueFormat converts subtitle bytes in format (empty to detect) to
// WebVTT.
func (s *Service) ConvertToCueFormat(data []byte, format subtitle.Format) string {
	return subtitle.ConvertToCueFormat(data, format)
}

// ServedName is the original file name with the output extension, or the
// id when the original name is unusable.
func ServedName(original, id string, format OutputFormat) string {
	return file.SafeName(file.ReplaceExt(original, format.Ext()), id+format.Ext())
}

func limitSubtitle(format OutputFormat) Subtitle {
	if format == OutputSRT {
		return Subtitle{Content: cache.LimitPlain, FileName: "limit.srt", Limited: true}
	}
	return Subtitle{Content: cache.LimitCue, FileName: "limit.vtt", Limited: true}
}

// BuildCandidates turns work names into search terms. Episode forms
// ("Name S01E02") come before the bare names; duplicates and terms shorter
// than two characters are dropped.
func BuildCandidates(names []string, season, episode int) []string {
	var ordered []string
	if season > 0 && episode > 0 {
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				ordered = append(ordered, fmt.Sprintf("%s S%02dE%02d", n, season, episode))
			}
		}
	}
	ordered = append(ordered, names...)

	seen := make(map[string]struct{}, len(ordered))
	candidates := make([]string, 0, len(ordered))
	for _, c := range ordered {
		c = strings.Join(strings.Fields(c), " ")
		if utf8.RuneCountInString(c) < 2 {
			continue
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, c)
	}
	return candidates
}

// IndexedSubtitles is the number of subtitles known to be in the durable
// tier.
func (s *Service) IndexedSubtitles() int {
	return s.cache.IndexSize()
}
