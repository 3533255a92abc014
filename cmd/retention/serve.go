package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/retention/compute"
	"github.com/tailored-agentic-units/retention/observability"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	addr      string
	codecs    string
	namespace string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve full reconciliation to remote compute clients",
		Long: `Serves the ComputeFull procedure so drivers configured with the remote
compute mode can offload full passes here. Metrics are exposed at /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&opts.codecs, "codecs", "cbor,wire", "Comma-separated codecs to accept")
	cmd.Flags().StringVar(&opts.namespace, "metrics-namespace", "retention", "Prometheus metric namespace")
	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	logger := newLogger()

	var codecs []compute.Codec
	for name := range strings.SplitSeq(opts.codecs, ",") {
		codec, err := compute.NewCodec(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		codecs = append(codecs, codec)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	observer := observability.NewMultiObserver(
		observability.NewSlogObserver(logger),
		observability.NewPrometheusObserver(reg, opts.namespace),
	)
	provider := compute.Observe(compute.NewLocal(), observer)
	defer provider.Close()

	mux := http.NewServeMux()
	mux.Handle(compute.NewHandler(provider, codecs...))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving compute", "addr", opts.addr, "procedure", compute.ComputeFullProcedure, "codecs", opts.codecs)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	logger.Info("compute server stopped")
	return nil
}
