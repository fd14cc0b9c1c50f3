package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david325345/stremio-titulky.com-docker/internal/cache"
	"github.com/david325345/stremio-titulky.com-docker/internal/persistence"
	"github.com/david325345/stremio-titulky.com-docker/internal/titulky"
)

var testCreds = titulky.Credentials{Username: "user", Password: "secret"}

const listing = `<html><body><table>
<tr class="r1">
  <td><a href="/Iron-Man-2008-123456.htm" title="Iron.Man.2008.1080p.BluRay.x264">Iron Man</a></td>
  <td></td><td>2008</td><td>01.01.2020</td><td>100</td>
  <td><img alt="CZ"></td><td>1</td><td>35 kB</td><td>Someone</td>
</tr>
<tr class="r">
  <td><a href="/Iron-Man-2-2010-555.htm" title="Iron.Man.2.720p.WEB-DL">Iron Man 2</a></td>
  <td></td><td>2010</td><td>01.01.2020</td><td>50</td>
  <td><img alt="CZ"></td><td>1</td><td>30 kB</td><td>Someone</td>
</tr>
<tr class="r2">
  <td><a href="/Iron-Man-2008-777.htm" title="Iron.Man.720p.WEB-DL">Iron Man (2008)</a></td>
  <td></td><td>2008</td><td>02.02.2020</td><td>12</td>
  <td><img alt="SK"></td><td>1</td><td>40 kB</td><td>Other</td>
</tr>
</table></body></html>`

const subtitleBody = "1\r\n00:00:01,000 --> 00:00:02,500\r\nAhoj, jak se máš?\r\n\r\n" +
	"2\r\n00:00:03,000 --> 00:00:04,000\r\nDobře, díky.\r\n"

type site struct {
	downloads atomic.Int32
	captcha   atomic.Bool

	mu      sync.Mutex
	queries []string

	srv *httptest.Server
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{}
	authorized := func(r *http.Request) bool {
		c, err := r.Cookie("LogonLogin")
		return err == nil && c.Value == testCreds.Username
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if r.FormValue("Login") != testCreds.Username || r.FormValue("Password") != testCreds.Password {
				_, _ = w.Write([]byte("<html>Neplatné přihlašovací údaje</html>"))
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "LogonLogin", Value: testCreds.Username})
			_, _ = w.Write([]byte("<html>ok</html>"))
			return
		}
		if !authorized(r) {
			http.Error(w, "login", http.StatusForbidden)
			return
		}
		q := r.URL.Query().Get("Fulltext")
		s.mu.Lock()
		s.queries = append(s.queries, q)
		s.mu.Unlock()
		if q == "Iron Man" {
			_, _ = w.Write([]byte(listing))
			return
		}
		_, _ = w.Write([]byte("<html>Nebyly nalezeny žádné titulky</html>"))
	})
	mux.HandleFunc("/idown.php", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			http.Error(w, "login", http.StatusForbidden)
			return
		}
		if s.captcha.Load() {
			_, _ = w.Write([]byte(`<html><img src="/captcha.php"></html>`))
			return
		}
		_, _ = w.Write([]byte(`<html><a id="downlink" href="/files/Iron.Man.2008.cz.srt">Stáhnout</a></html>`))
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		s.downloads.Add(1)
		_, _ = w.Write([]byte(subtitleBody))
	})

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *site) searched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

type stubResolver struct {
	title Title
	err   error
}

func (r stubResolver) Resolve(context.Context, string) (Title, error) {
	return r.title, r.err
}

func newService(t *testing.T, s *site, opts ...Option) *Service {
	t.Helper()
	client, err := titulky.New(titulky.Config{
		BaseURL:           s.srv.URL,
		RequestsPerSecond: 1000,
		RetryAttempts:     1,
		RetryDelay:        time.Millisecond,
	})
	require.NoError(t, err)

	store, err := persistence.NewFSStore(afero.NewMemMapFs(), "/objects")
	require.NoError(t, err)

	svc, err := New(client, cache.New(store, cache.Config{}), opts...)
	require.NoError(t, err)
	return svc
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(nil, nil)
	assert.True(t, IsErrorType(err, ErrConfig))
}

func TestSearch_FiltersAndRanksByPlayingFile(t *testing.T) {
	s := newSite(t)
	svc := newService(t, s)

	results := svc.Search(context.Background(), testCreds, SearchRequest{
		Names:    []string{"Iron Man"},
		FileName: "Iron.Man.2008.720p.WEB-DL.DDP5.1.mkv",
	})

	require.Len(t, results, 2)
	assert.EqualValues(t, 777, results[0].ID)
	assert.Equal(t, 35, results[0].Score)
	assert.EqualValues(t, 123456, results[1].ID)
	assert.Equal(t, 0, results[1].Score)
	assert.False(t, results[0].Cached)
}

func TestSearch_QualityOrderWithoutPlayingFile(t *testing.T) {
	s := newSite(t)
	svc := newService(t, s)

	results := svc.Search(context.Background(), testCreds, SearchRequest{Names: []string{"Iron Man"}})
	require.Len(t, results, 2)
	assert.EqualValues(t, 123456, results[0].ID)
	assert.EqualValues(t, 777, results[1].ID)
}

func TestSearch_EpisodeCandidatesFirst(t *testing.T) {
	s := newSite(t)
	svc := newService(t, s, WithResolver(stubResolver{title: Title{Name: "Iron Man", Aliases: []string{"Železný muž"}}}))

	results := svc.Search(context.Background(), testCreds, SearchRequest{WorkID: "tt0371746", Season: 1, Episode: 2})
	assert.Len(t, results, 2)
	assert.Equal(t, []string{"Iron Man S01E02", "Železný muž S01E02", "Iron Man"}, s.searched())
}

func TestSearch_DegradesToEmpty(t *testing.T) {
	s := newSite(t)

	tests := []struct {
		name  string
		svc   *Service
		creds titulky.Credentials
		req   SearchRequest
	}{
		{"no resolver", newService(t, s), testCreds, SearchRequest{WorkID: "tt1"}},
		{"resolver error", newService(t, s, WithResolver(stubResolver{err: errors.New("down")})), testCreds, SearchRequest{WorkID: "tt1"}},
		{"bad password", newService(t, s), titulky.Credentials{Username: "user", Password: "nope"}, SearchRequest{Names: []string{"Iron Man"}}},
		{"no credentials", newService(t, s), titulky.Credentials{}, SearchRequest{Names: []string{"Iron Man"}}},
		{"nothing found", newService(t, s), testCreds, SearchRequest{Names: []string{"Unknown Film"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := tt.svc.Search(context.Background(), tt.creds, tt.req)
			assert.NotNil(t, results)
			assert.Empty(t, results)
		})
	}
}

func TestServeSubtitle(t *testing.T) {
	s := newSite(t)
	svc := newService(t, s)
	ctx := context.Background()

	vtt := svc.ServeSubtitle(ctx, testCreds, "777", "Iron-Man-2008-777", OutputVTT)
	assert.False(t, vtt.Limited)
	assert.Equal(t, "Iron.Man.2008.cz.vtt", vtt.FileName)
	assert.True(t, strings.HasPrefix(vtt.Content, "WEBVTT\n\n1\n00:00:01.000 --> 00:00:02.500\nAhoj, jak se máš?\n"))

	srt := svc.ServeSubtitle(ctx, testCreds, "777", "Iron-Man-2008-777", OutputSRT)
	assert.False(t, srt.Limited)
	assert.Equal(t, "Iron.Man.2008.cz.srt", srt.FileName)
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,500\nAhoj, jak se máš?\n\n2\n00:00:03,000 --> 00:00:04,000\nDobře, díky.\n\n", srt.Content)

	assert.Equal(t, int32(1), s.downloads.Load())

	results := svc.Search(ctx, testCreds, SearchRequest{Names: []string{"Iron Man"}})
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, r.ID == 777, r.Cached, r.ID)
	}
}

func TestServeSubtitle_LimitOnCaptcha(t *testing.T) {
	s := newSite(t)
	s.captcha.Store(true)
	svc := newService(t, s)

	vtt := svc.ServeSubtitle(context.Background(), testCreds, "1", "X-1", OutputVTT)
	assert.True(t, vtt.Limited)
	assert.Equal(t, cache.LimitCue, vtt.Content)

	srt := svc.ServeSubtitle(context.Background(), testCreds, "1", "X-1", OutputSRT)
	assert.True(t, srt.Limited)
	assert.Equal(t, cache.LimitPlain, srt.Content)
	assert.Equal(t, "limit.srt", srt.FileName)
}

func TestSessionRegistry(t *testing.T) {
	s := newSite(t)
	svc := newService(t, s)

	a := svc.session(testCreds)
	assert.Same(t, a, svc.session(testCreds))

	other := svc.session(titulky.Credentials{Username: "other", Password: "x"})
	assert.NotSame(t, a, other)

	changed := svc.session(titulky.Credentials{Username: "user", Password: "new"})
	assert.NotSame(t, a, changed)
	assert.Same(t, changed, svc.session(titulky.Credentials{Username: "user", Password: "new"}))
}

func TestClose_RunsClosersInReverse(t *testing.T) {
	s := newSite(t)
	var order []string
	svc := newService(t, s,
		WithCloser(func() error { order = append(order, "store"); return nil }),
		WithCloser(func() error { order = append(order, "cron"); return errors.New("stuck") }),
	)

	err := svc.Close()
	assert.ErrorContains(t, err, "stuck")
	assert.Equal(t, []string{"cron", "store"}, order)
}

func TestBuildCandidates(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		season  int
		episode int
		want    []string
	}{
		{"movie", []string{"Iron Man", "Železný muž"}, 0, 0, []string{"Iron Man", "Železný muž"}},
		{"episode", []string{"Dark", "Temnota"}, 1, 3, []string{"Dark S01E03", "Temnota S01E03", "Dark", "Temnota"}},
		{"dedupe and short", []string{"Up", "up", "X", "  ", "Up  "}, 0, 0, []string{"Up"}},
		{"none", nil, 2, 2, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildCandidates(tt.names, tt.season, tt.episode))
		})
	}
}

func TestServedName(t *testing.T) {
	assert.Equal(t, "movie.vtt", ServedName("movie.srt", "1", OutputVTT))
	assert.Equal(t, "movie.srt", ServedName("subs/movie.ass", "1", OutputSRT))
	assert.Equal(t, "1.vtt", ServedName("", "1", OutputVTT))
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat(" SRT ")
	require.NoError(t, err)
	assert.Equal(t, OutputSRT, f)

	_, err = ParseOutputFormat("ass")
	assert.True(t, IsErrorType(err, ErrValidation))
}

func TestSafeExecute_RecoversPanic(t *testing.T) {
	err := SafeExecute(func() error { panic("boom") })
	assert.True(t, IsErrorType(err, ErrUnknown))
}
