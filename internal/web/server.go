package web

import (
	"context"
	"net/http"
	"time"

	"github.com/buemura/scanhub/internal/auth"
	"github.com/buemura/scanhub/internal/jobs"
	"github.com/buemura/scanhub/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Server is the HTTP server for the scan API.
type Server struct {
	router  chi.Router
	http    *http.Server
	manager *jobs.Manager
	store   store.Store
	auth    *auth.Manager
	log     logrus.FieldLogger
}

// NewServer builds a new Server with middleware and routes configured.
func NewServer(addr string, manager *jobs.Manager, st store.Store, am *auth.Manager, log logrus.FieldLogger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		manager: manager,
		store:   st,
		auth:    am,
		log:     log,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger(log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(am.Middleware)

	s.registerRoutes()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening on the configured address. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.log.WithField("addr", s.http.Addr).Info("scan API listening")
	return s.http.ListenAndServe()
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Router exposes the chi.Router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// requestLogger logs one entry per request with the chi request id.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     status,
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
			})
			if status >= http.StatusInternalServerError {
				entry.Error("request served")
				return
			}
			entry.Debug("request served")
		})
	}
}
