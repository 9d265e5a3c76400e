package server

import (
	"bytes"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conneroisu/modserve/internal/errors"
	"github.com/conneroisu/modserve/internal/moduleurl"
)

// Handler returns the HTTP handler of the dev server. Module requests go
// through the transform handler, then HTML entries, then static files.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	if s.metrics != nil {
		r.Method(http.MethodGet, s.config.Metrics.Path, s.metrics.Handler())
	}
	r.Method(http.MethodGet, HealthPath, s.health)

	r.With(s.transformMiddleware, s.indexHTMLMiddleware).
		Get("/*", s.staticHandler().ServeHTTP)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"url", r.URL.RequestURI(),
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// requestURL is the path plus query the pipeline sees for r.
func requestURL(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

// transformMiddleware serves scripts, stylesheets and `?import` requests as
// transformed ES modules. Requests nothing can resolve or load fall through.
func (s *Server) transformMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		url := requestURL(r)
		if !moduleurl.IsJSRequest(url) && !moduleurl.IsCSSRequest(url) && !moduleurl.IsImportRequest(url) {
			next.ServeHTTP(w, r)
			return
		}

		result, err := s.coordinator.TransformRequest(r.Context(), url)
		if err != nil {
			if errors.IsNotFound(err) {
				next.ServeHTTP(w, r)
				return
			}
			if r.Context().Err() != nil {
				// Client went away; nobody reads the response.
				return
			}
			s.logger.Error(r.Context(), err, "transform failed", "url", url)
			s.writeError(w, r, err, url)
			return
		}

		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write([]byte(result.Code))
	})
}

// indexHTMLMiddleware serves HTML documents from the root after running the
// index HTML hooks over them.
func (s *Server) indexHTMLMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urlPath := r.URL.Path
		if strings.HasSuffix(urlPath, "/") {
			urlPath += "index.html"
		}
		if path.Ext(urlPath) != ".html" {
			next.ServeHTTP(w, r)
			return
		}

		file := filepath.Join(s.config.Root, filepath.FromSlash(path.Clean(urlPath)))
		content, err := os.ReadFile(file)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		html, err := s.pipeline.TransformIndexHTML(r.Context(), string(content))
		if err != nil {
			s.logger.Error(r.Context(), err, "index html transform failed", "file", file)
			s.writeError(w, r, err, r.URL.Path)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write([]byte(html))
	})
}

// staticHandler serves files under the root. `?import` requests are never
// served raw.
func (s *Server) staticHandler() http.Handler {
	files := http.FileServer(http.Dir(s.config.Root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if moduleurl.IsImportRequest(requestURL(r)) {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, url string) {
	var buf bytes.Buffer
	if renderErr := ErrorPage(err, url).Render(r.Context(), &buf); renderErr != nil {
		http.Error(w, err.Error(), errors.HTTPStatus(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(errors.HTTPStatus(err))
	_, _ = buf.WriteTo(w)
}
