// Package web exposes the operational HTTP surface: health, day status, and
// metrics.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hvnguyen/popmart-registrar/internal/metrics"
	"github.com/hvnguyen/popmart-registrar/internal/pending"
	"github.com/hvnguyen/popmart-registrar/internal/registry"
)

// Server serves /healthz, /status, and /metrics.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// New builds the ops server on addr.
func New(addr string, reg *registry.Registry, pendings *pending.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Get("/healthz", handleHealth)
	r.Get("/status", handleStatus(reg, pendings))
	r.Handle("/metrics", promhttp.Handler())
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start runs the listener in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("ops server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("ops server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleStatus reports each known day's state plus the count of captcha
// tasks awaiting an operator reply.
func handleStatus(reg *registry.Registry, pendings *pending.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		days := map[string]string{}
		if reg != nil {
			for label, state := range reg.States() {
				days[label] = string(state)
			}
		}
		body := struct {
			Days            map[string]string `json:"days"`
			PendingCaptchas int               `json:"pending_captchas"`
		}{Days: days}
		if pendings != nil {
			body.PendingCaptchas = pendings.Len()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
}
