package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david325345/stremio-titulky.com-docker/internal/match"
	"github.com/david325345/stremio-titulky.com-docker/internal/service"
	"github.com/david325345/stremio-titulky.com-docker/internal/subtitle"
	"github.com/david325345/stremio-titulky.com-docker/internal/titulky"
)

type fakeService struct {
	searchReq   service.SearchRequest
	searchCreds titulky.Credentials
	results     []service.Result

	servedID, servedToken string
	servedFormat          service.OutputFormat
	subtitle              service.Subtitle

	convertFormat subtitle.Format
}

func (f *fakeService) Search(_ context.Context, creds titulky.Credentials, req service.SearchRequest) []service.Result {
	f.searchCreds = creds
	f.searchReq = req
	return f.results
}

func (f *fakeService) ServeSubtitle(_ context.Context, _ titulky.Credentials, id, token string, format service.OutputFormat) service.Subtitle {
	f.servedID, f.servedToken, f.servedFormat = id, token, format
	return f.subtitle
}

func (f *fakeService) ConvertToCueFormat(data []byte, format subtitle.Format) string {
	f.convertFormat = format
	return subtitle.ConvertToCueFormat(data, format)
}

func (f *fakeService) IndexedSubtitles() int { return 3 }

var creds = titulky.Credentials{Username: "user", Password: "secret"}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewServer(&fakeService{}, creds).Handler()

	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","cached_subtitles":3}`, rec.Body.String())

	_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestRequestID_ReusesValidHeader(t *testing.T) {
	h := NewServer(&fakeService{}, creds).Handler()
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", id)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get("X-Request-ID"))
}

func TestSearch(t *testing.T) {
	svc := &fakeService{results: []service.Result{{
		Scored: match.Scored{SearchResult: titulky.SearchResult{ID: 777, LinkToken: "Iron-Man-777", Title: "Iron Man"}, Score: 35},
		Cached: true,
	}}}
	h := NewServer(svc, creds).Handler()

	rec := do(t, h, http.MethodGet, "/api/search?q=Iron+Man&q=%20&q=%C5%BDelezn%C3%BD+mu%C5%BE&season=1&episode=2&file=Iron.Man.720p.mkv", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, creds, svc.searchCreds)
	assert.Equal(t, []string{"Iron Man", "Železný muž"}, svc.searchReq.Names)
	assert.Equal(t, 1, svc.searchReq.Season)
	assert.Equal(t, 2, svc.searchReq.Episode)
	assert.Equal(t, "Iron.Man.720p.mkv", svc.searchReq.FileName)

	var body struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.EqualValues(t, 777, body.Results[0]["id"])
	assert.EqualValues(t, 35, body.Results[0]["score"])
	assert.Equal(t, true, body.Results[0]["cached"])
}

func TestSearch_BadRequests(t *testing.T) {
	h := NewServer(&fakeService{}, creds).Handler()

	for _, target := range []string{
		"/api/search",
		"/api/search?q=%20",
		"/api/search?q=X&season=one",
		"/api/search?id=tt1&episode=-1",
	} {
		rec := do(t, h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSubtitle(t *testing.T) {
	svc := &fakeService{subtitle: service.Subtitle{Content: "WEBVTT\n\n", FileName: "Iron.Man.vtt"}}
	h := NewServer(svc, creds).Handler()

	rec := do(t, h, http.MethodGet, "/api/subtitles/777/Iron-Man-2008-777.vtt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "777", svc.servedID)
	assert.Equal(t, "Iron-Man-2008-777", svc.servedToken)
	assert.Equal(t, service.OutputVTT, svc.servedFormat)
	assert.Equal(t, "text/vtt; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Iron.Man.vtt")
	assert.Empty(t, rec.Header().Get("Cache-Control"))
	assert.Equal(t, "WEBVTT\n\n", rec.Body.String())
}

func TestSubtitle_LimitNotCached(t *testing.T) {
	svc := &fakeService{subtitle: service.Subtitle{Content: "1\n", FileName: "limit.srt", Limited: true}}
	h := NewServer(svc, creds).Handler()

	rec := do(t, h, http.MethodGet, "/api/subtitles/5/X-5.SRT", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.OutputSRT, svc.servedFormat)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestSubtitle_BadRequests(t *testing.T) {
	h := NewServer(&fakeService{}, creds).Handler()

	for _, target := range []string{
		"/api/subtitles/abc/X-1.vtt",
		"/api/subtitles/1/X-1.ass",
		"/api/subtitles/1/X-1",
		"/api/subtitles/1/.vtt",
	} {
		rec := do(t, h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestConvert(t *testing.T) {
	svc := &fakeService{}
	h := NewServer(svc, creds).Handler()

	rec := do(t, h, http.MethodPost, "/api/convert?name=movie.srt", "1\n00:00:01,000 --> 00:00:02,500\nHello\n")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, subtitle.FormatSRT, svc.convertFormat)
	assert.Equal(t, "WEBVTT\n\n1\n00:00:01.000 --> 00:00:02.500\nHello\n", rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/convert?format=SUB", "{1}{2}x\n")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, subtitle.FormatMicroDVD, svc.convertFormat)

	rec = do(t, h, http.MethodPost, "/api/convert", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
