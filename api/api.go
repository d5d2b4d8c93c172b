// Package api exposes the analytics service over a small HTTP surface:
// family queries, snapshots, correlation, refresh, runtime stats, health
// and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"argus/service"
)

// API is the HTTP server wrapping the analytics service.
type API struct {
	router *mux.Router
	server *http.Server
	svc    *service.Analytics
	logger *zap.SugaredLogger
}

// New creates the API server bound to host:port.
func New(svc *service.Analytics, host string, port int, logger *zap.SugaredLogger) *API {
	a := &API{
		router: mux.NewRouter(),
		svc:    svc,
		logger: logger,
	}
	a.routes()

	a.server = &http.Server{
		Addr:         net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		Handler:      a.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a
}

func (a *API) routes() {
	a.router.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	a.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := a.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/snapshot", a.handleSnapshot).Methods(http.MethodGet)
	v1.HandleFunc("/metrics", a.handleMetrics).Methods(http.MethodGet)
	v1.HandleFunc("/events", a.handleEvents).Methods(http.MethodGet)
	v1.HandleFunc("/anomalies", a.handleAnomalies).Methods(http.MethodGet)
	v1.HandleFunc("/threats", a.handleThreats).Methods(http.MethodGet)
	v1.HandleFunc("/correlate", a.handleCorrelate).Methods(http.MethodPost)
	v1.HandleFunc("/refresh", a.handleRefresh).Methods(http.MethodPost)
	v1.HandleFunc("/stats", a.handleStats).Methods(http.MethodGet)
}

// Start begins serving. It returns once the listener stops; http.ErrServerClosed
// is reported as nil.
func (a *API) Start() error {
	a.logger.Infow("API server listening", "addr", a.server.Addr)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// Handler returns the router, mainly for tests.
func (a *API) Handler() http.Handler { return a.router }

func (a *API) respondJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Errorw("Failed to encode response", "error", err)
	}
}

func (a *API) respondError(w http.ResponseWriter, message string, status int) {
	a.respondJSON(w, map[string]string{"error": message}, status)
}
