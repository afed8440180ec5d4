package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"listing_spider/internal/logger"
	"listing_spider/internal/mailbox"
	"listing_spider/internal/scheduler"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type jobControl interface {
	Entries() []scheduler.Entry
	RunNow(ctx context.Context, name string) error
}

func newRouter(db pinger, mail *mailbox.Handlers, jobs jobControl, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := db.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/jobs", func(w http.ResponseWriter, _ *http.Request) {
		type job struct {
			Name    string    `json:"name"`
			Spec    string    `json:"spec"`
			NextRun time.Time `json:"nextRun,omitzero"`
		}
		entries := jobs.Entries()
		out := make([]job, 0, len(entries))
		for _, e := range entries {
			out = append(out, job{Name: e.Name, Spec: e.Spec, NextRun: e.Next})
		}
		writeJSON(w, http.StatusOK, out)
	})

	// Runs a registered job in the request; the caller waits for it to finish.
	r.Post("/api/jobs/{name}/run", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		err := jobs.RunNow(req.Context(), name)
		switch {
		case errors.Is(err, scheduler.ErrUnknownJob):
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "unknown job", "job": name})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "failed", "job": name, "error": err.Error()})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": "done", "job": name})
		}
	})

	if mail != nil {
		mail.Routes(r)
	}
	return r
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http: request",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", ww.Status()),
				logger.Duration("took", time.Since(start)),
				logger.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
