package httpapi

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/david325345/stremio-titulky.com-docker/internal/service"
	"github.com/david325345/stremio-titulky.com-docker/internal/subtitle"
)

const maxUploadSize = 10 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"cached_subtitles": s.svc.IndexedSubtitles(),
	})
}

// handleSearch serves GET /api/search?q=Name&q=Alias&season=1&episode=2&file=...
// Without q the work id in "id" is resolved instead.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := service.SearchRequest{
		WorkID:   strings.TrimSpace(query.Get("id")),
		Names:    nonEmpty(query["q"]),
		FileName: query.Get("file"),
	}

	var err error
	if req.Season, err = optionalInt(query.Get("season")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid season")
		return
	}
	if req.Episode, err = optionalInt(query.Get("episode")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode")
		return
	}
	if len(req.Names) == 0 && req.WorkID == "" {
		writeError(w, http.StatusBadRequest, "q or id is required")
		return
	}

	results := s.svc.Search(r.Context(), s.creds, req)
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// handleSubtitle serves GET /api/subtitles/{id}/{token}.{vtt|srt}.
func (s *Server) handleSubtitle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		writeError(w, http.StatusBadRequest, "invalid subtitle id")
		return
	}

	file := chi.URLParam(r, "file")
	ext := path.Ext(file)
	format, err := service.ParseOutputFormat(strings.TrimPrefix(ext, "."))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token := strings.TrimSuffix(file, ext)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing link token")
		return
	}

	sub := s.svc.ServeSubtitle(r.Context(), s.creds, id, token, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": sub.FileName}))
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if sub.Limited {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, sub.Content)
}

// handleConvert serves POST /api/convert?format=ass (or ?name=file.ass).
// The body is the raw subtitle file; the response is WebVTT.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return
	}

	format := subtitle.Format(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))))
	if format == subtitle.FormatAuto {
		format = subtitle.FormatFromName(r.URL.Query().Get("name"))
	}

	w.Header().Set("Content-Type", service.OutputVTT.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s.svc.ConvertToCueFormat(data, format))
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
