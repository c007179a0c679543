package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/icopavan/vesna-alh-tools/internal/alh"
)

const shutdownTimeout = 5 * time.Second

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alh_proxy_requests_total",
			Help: "Requests forwarded to the node",
		},
		[]string{"method"},
	)
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alh_proxy_errors_total",
			Help: "Requests that failed against the node",
		},
		[]string{"method"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "alh_proxy_request_duration_seconds",
			Help: "Duration of node round trips",
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, errorsTotal, requestDuration)
}

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var (
		device  string
		listen  string
		verbose bool
	)
	flag.StringVar(&device, "device", "", "Serial console device of the attached node")
	flag.StringVar(&listen, "listen", ":8000", "Address to serve HTTP on")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	if verbose {
		logLevel.Set(slog.LevelDebug)
	}

	if device == "" {
		logger.Error("no serial device given, set -device")
		os.Exit(1)
	}

	terminal, err := alh.OpenTerminal(device, alh.WithTerminalLogger(logger))
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	defer terminal.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/communicator", communicatorHandler(terminal, logger))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    listen,
		Handler: mux,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	failed := make(chan struct{})
	go func() {
		logger.Info("proxy listening",
			slog.String("address", listen),
			slog.String("device", device))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err.Error())
			close(failed)
		}
	}()

	select {
	case <-ctx.Done():
	case <-failed:
		os.Exit(1)
	}

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

// communicatorHandler serves the request format of the infrastructure
// gateway, so the HTTP client transport can talk to a serial-attached node
// unchanged.
func communicatorHandler(node alh.Node, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		method := r.FormValue("method")
		resource := r.FormValue("resource")

		if method != "get" && method != "post" {
			http.Error(w, fmt.Sprintf("unknown method %q", method), http.StatusBadRequest)
			return
		}
		if resource == "" {
			http.Error(w, "resource is required", http.StatusBadRequest)
			return
		}

		requestsTotal.WithLabelValues(method).Inc()
		started := time.Now()

		var response []byte
		var err error
		switch method {
		case "get":
			response, err = node.Get(r.Context(), resource)
		case "post":
			response, err = node.Post(r.Context(), resource, []byte(r.FormValue("content")))
		}

		requestDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())

		if err != nil {
			errorsTotal.WithLabelValues(method).Inc()
			logger.Error("node round trip failed",
				slog.String("method", method),
				slog.String("resource", resource),
				slog.String("error", err.Error()))
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		logger.Debug("request proxied",
			slog.String("method", method),
			slog.String("resource", resource),
			slog.Int("bytes", len(response)),
			slog.Duration("took", time.Since(started)))

		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(response)
	}
}
