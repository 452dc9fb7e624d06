// Package server exposes the facade's tool operations over HTTP behind
// chi, plus health/readiness/status endpoints.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"monitorplane/internal/apperr"
	"monitorplane/internal/cooldown"
	"monitorplane/internal/facade"
	"monitorplane/internal/logging"
)

// Server wires the facade behind an HTTP surface.
type Server struct {
	router  chi.Router
	facade  *facade.Facade
	db      *sql.DB
	cd      cooldown.Store
	started time.Time
	status  map[string]bool
}

// Config carries the HTTP-layer knobs that don't belong on Facade itself.
// StatusFlags surfaces non-sensitive configuration booleans on /status —
// never secrets or connection strings themselves.
type Config struct {
	CORSAllowedOrigins []string
	RequestsPerMinute  int
	StatusFlags        map[string]bool
}

// New builds a Server. db and cd are used only for the /ready check.
func New(f *facade.Facade, db *sql.DB, cd cooldown.Store, cfg Config) *Server {
	s := &Server{facade: f, db: db, cd: cd, started: time.Now(), status: cfg.StatusFlags}
	s.router = s.buildRouter(cfg)
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) buildRouter(cfg Config) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(s.loggingMiddleware)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST"},
			AllowedHeaders:   []string{"Content-Type", "X-User-ID"},
			AllowCredentials: true,
		}))
	}

	if cfg.RequestsPerMinute > 0 {
		r.Use(httprate.LimitByIP(cfg.RequestsPerMinute, time.Minute))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/status", s.handleStatus)
	r.Post("/tool/{operation}", s.handleTool)

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithComponent(r.Context(), "server")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if err := s.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	if _, err := s.cd.Exists(ctx, "readiness-probe"); err != nil {
		checks["cooldown_store"] = err.Error()
		ready = false
	} else {
		checks["cooldown_store"] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{"ready": ready, "checks": checks})
}

// handleStatus reports non-sensitive configuration booleans — which
// optional subsystems are active — never the values behind them.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"uptime_seconds": int(time.Since(s.started).Seconds())}
	for k, v := range s.status {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "missing X-User-ID"})
		return
	}

	var payload json.RawMessage
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && err.Error() != "EOF" {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "invalid JSON body"})
			return
		}
	}

	result, err := s.facade.Handle(r.Context(), userID, operation, payload)
	if err != nil {
		status, message := classify(err)
		writeJSON(w, status, map[string]interface{}{"success": false, "message": message})
		return
	}

	// A success response carries "success" plus domain fields at the top
	// level (e.g. "monitor", "alerts"), not nested under an envelope key —
	// every facade handler returns a map with exactly the field its
	// operation's contract names.
	body := map[string]interface{}{"success": true}
	if fields, ok := result.(map[string]interface{}); ok {
		for k, v := range fields {
			body[k] = v
		}
	} else {
		body["data"] = result
	}
	writeJSON(w, http.StatusOK, body)
}

// classify maps the apperr taxonomy onto HTTP status codes. A not-found
// and an access-denied are deliberately indistinguishable to the caller.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not found or access denied"
	case errors.Is(err, apperr.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "a backend dependency is unavailable"
	case errors.Is(err, apperr.ErrIntegrity):
		return http.StatusInternalServerError, "integrity check failed"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
