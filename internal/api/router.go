// Package api assembles the HTTP surface of the inventory service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"libraryinventory/internal/admission"
	"libraryinventory/internal/catalog"
	"libraryinventory/internal/circulation"
)

// RequestIDHeader carries the id that correlates a request with its log line.
const RequestIDHeader = "X-Request-ID"

// BooksPath is the root of the books API.
const BooksPath = "/api/books"

// NewRouter routes the books API through gate. /healthz is never gated.
func NewRouter(svc catalog.Service, gate *admission.Gate) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	books := catalog.NewHandler(svc)
	lending := circulation.NewHandler(svc)
	r.Route(BooksPath, func(r chi.Router) {
		r.Use(gate.Middleware)
		books.Routes(r)
		lending.Routes(r)
	})

	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		logger := log.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			log.Ctx(r.Context()).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request handled")
		}()

		next.ServeHTTP(ww, r)
	})
}
