// Package api exposes profile launches over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stupside/facet/internal/fingerprint"
	"github.com/stupside/facet/internal/launcher"
	"github.com/stupside/facet/internal/store"
)

// Launcher is the launch surface the API drives.
type Launcher interface {
	OpenBrowser(ctx context.Context, name, url string) launcher.OpenResult
	CloseProfile(name string) error
	Sessions() []*launcher.Session
}

// Profiles is the read side of the profile store.
type Profiles interface {
	List() ([]string, error)
	Get(name string) (*store.Profile, error)
}

type Server struct {
	launcher Launcher
	profiles Profiles
}

func NewServer(l Launcher, p Profiles) *Server {
	return &Server{launcher: l, profiles: p}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/profiles", func(r chi.Router) {
		r.Get("/", s.listProfiles)
		r.Get("/{name}", s.getProfile)
		r.Post("/{name}/open", s.openProfile)
		r.Post("/{name}/close", s.closeProfile)
	})
	r.Get("/sessions", s.listSessions)
	return r
}

type openRequest struct {
	URL string `json:"url"`
}

// openProfile always answers 200 with an OpenResult; a failed launch is a
// result, not an HTTP error.
func (s *Server) openProfile(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res := s.launcher.OpenBrowser(r.Context(), chi.URLParam(r, "name"), req.URL)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) closeProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.launcher.CloseProfile(name); err != nil {
		if errors.Is(err, launcher.ErrNotOpen) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "profile": name})
}

func (s *Server) listProfiles(w http.ResponseWriter, _ *http.Request) {
	names, err := s.profiles.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(chi.URLParam(r, "name"))
	switch {
	case errors.Is(err, store.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, fingerprint.ErrInvalid):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, p)
	}
}

type sessionView struct {
	Profile        string                `json:"profile"`
	URL            string                `json:"url"`
	StartedAt      time.Time             `json:"startedAt"`
	Fingerprints   launcher.Fingerprints `json:"fingerprints"`
	HooksInstalled int                   `json:"hooksInstalled"`
	HooksFailed    int                   `json:"hooksFailed"`
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	views := []sessionView{}
	for _, sess := range s.launcher.Sessions() {
		installed, failed := sess.Hooks()
		views = append(views, sessionView{
			Profile:        sess.Name(),
			URL:            sess.Params().URL,
			StartedAt:      sess.Perturbation().CreatedAt,
			Fingerprints:   sess.Fingerprints(),
			HooksInstalled: installed,
			HooksFailed:    failed,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
