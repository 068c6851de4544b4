package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsShutdownTimeout = 5 * time.Second

// serveMetrics exposes the engine registry on addr until the returned stop
// function is called. It returns the bound address; an empty addr serves
// nothing.
func serveMetrics(addr string) (string, func(), error) {
	if addr == "" {
		return "", func() {}, nil
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("Failed to listen for metrics", "addr", addr, "error", err)
		return "", nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: metricsShutdownTimeout,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", "error", err)
		}
	}()

	bound := listener.Addr().String()
	slog.Info("Serving metrics", "addr", bound)

	return bound, func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Failed to stop metrics server", "error", err)
		}
	}, nil
}
