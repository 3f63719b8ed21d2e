package root

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docker/mdstream/pkg/perf"
)

// metricsServer exposes the collectors of a stream monitor on /metrics.
type metricsServer struct {
	srv  *http.Server
	addr string
}

func serveMetrics(addr string, monitor *perf.Monitor) (*metricsServer, error) {
	reg := prometheus.NewRegistry()
	if err := monitor.Register(reg); err != nil {
		return nil, fmt.Errorf("registering stream metrics: %w", err)
	}
	reg.MustRegister(collectors.NewGoCollector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("Metrics server stopped", "error", err)
		}
	}()
	slog.Debug("Serving metrics", "addr", ln.Addr().String())

	return &metricsServer{srv: srv, addr: ln.Addr().String()}, nil
}

func (m *metricsServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return m.srv.Shutdown(ctx)
}
