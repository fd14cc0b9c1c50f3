package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/david325345/stremio-titulky.com-docker/internal/service"
	"github.com/david325345/stremio-titulky.com-docker/internal/subtitle"
	"github.com/david325345/stremio-titulky.com-docker/internal/titulky"
	"github.com/david325345/stremio-titulky.com-docker/pkg/log"
)

const requestIDHeader = "X-Request-ID"

// subtitleService is the part of service.Service the API exposes.
type subtitleService interface {
	Search(ctx context.Context, creds titulky.Credentials, req service.SearchRequest) []service.Result
	ServeSubtitle(ctx context.Context, creds titulky.Credentials, id, linkToken string, format service.OutputFormat) service.Subtitle
	ConvertToCueFormat(data []byte, format subtitle.Format) string
	IndexedSubtitles() int
}

type Server struct {
	svc   subtitleService
	creds titulky.Credentials

	router chi.Router
	server *http.Server
}

func NewServer(svc subtitleService, creds titulky.Credentials) *Server {
	s := &Server{
		svc:    svc,
		creds:  creds,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.router.Use(requestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/api", func(api chi.Router) {
		api.Get("/search", s.handleSearch)
		api.Get("/subtitles/{id}/{file}", s.handleSubtitle)
		api.Post("/convert", s.handleConvert)
	})
}

// requestID tags each request with a uuid, reusing one the caller sent.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug("%s %s %s -> %d in %s", id, r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}
