package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	config "github.com/formula1dl/ingest/pkg/batch/core/config"
	logger "github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// MetricsServer exposes a PrometheusRecorder over HTTP.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewMetricsServer creates a server for cfg.Address serving recorder at cfg.Path.
func NewMetricsServer(cfg config.PrometheusConfig, recorder *PrometheusRecorder) *MetricsServer {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, recorder.Handler())
	return &MetricsServer{
		server: &http.Server{
			Addr:              cfg.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds the address and serves in the background.
func (s *MetricsServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server on %s stopped: %v", ln.Addr(), err)
		}
	}()
	logger.Infof("Serving Prometheus metrics on %s.", ln.Addr())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *MetricsServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *MetricsServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
