package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProgressSource yields a point-in-time view of the run for the /progress
// endpoint. The aggregator implements it.
type ProgressSource interface {
	Progress() Progress
}

// Progress is the JSON shape served at /progress.
type Progress struct {
	RunID     string  `json:"run_id"`
	Total     int     `json:"total"`
	Succeeded int     `json:"successful"`
	Failed    int     `json:"failed"`
	Remaining int     `json:"remaining"`
	Percent   float64 `json:"percent"`
}

// Server exposes /metrics, /progress, and /healthz while a run is active.
type Server struct {
	httpServer *http.Server
}

// NewServer wires the routes. addr is e.g. ":9105".
func NewServer(addr string, collector *Collector, source ProgressSource) *Server {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/progress", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(source.Progress())
	}).Methods(http.MethodGet)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Start serves in the background. Errors other than a clean close are
// returned on the channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
