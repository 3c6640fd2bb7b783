package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-workshop"
	"github.com/goliatone/go-workshop/activitymap"
	"github.com/goliatone/go-workshop/metrics"
	"github.com/goliatone/go-workshop/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workshop portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, cmd)
		},
	}
}

func serve(ctx context.Context, opts *rootOptions, cmd *cobra.Command) error {
	cfg := opts.cfg

	b, err := openBackend(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer b.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	visitors := web.NewRegistry(b.factory,
		web.WithVisitorTTL(cfg.HTTP.VisitorTTL),
		web.WithRegistryLogger(opts.logger),
		web.WithVisitorCount(collector.SetVisitors),
		web.WithStoreOptions(
			workshop.WithStoreLogger(opts.logger),
			workshop.WithStoreActivitySink(workshop.MultiActivitySink(collector, activitymap.LogSink(opts.slog))),
			workshop.WithOperationTimeout(cfg.Store.OperationTimeout),
		),
	)
	defer visitors.Close()

	server, err := web.New(visitors,
		web.WithLogger(opts.logger),
		web.WithMetrics(collector, reg),
		web.WithSecureCookies(cfg.IsProduction()),
		web.WithCookieDuration(cfg.Auth.RefreshTTL),
		web.WithCSRFKey(csrfKey(cfg.Auth.SigningKey)),
	)
	if err != nil {
		return err
	}

	sweepEvery := cfg.HTTP.VisitorTTL / 2
	go visitors.Run(ctx, sweepEvery)
	if b.service != nil {
		go sweepLimiters(ctx, b.service.SweepLimiters, sweepEvery)
	}

	errCh := make(chan error, 1)
	go func() {
		opts.slog.Info("workshop listening", "addr", cfg.HTTP.Addr, "backend", cfg.Backend, "env", cfg.Env)
		errCh <- server.Listen(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	opts.slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func sweepLimiters(ctx context.Context, sweep func(idle time.Duration) int, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(every)
		}
	}
}

// csrfKey derives the csrf signing key. An empty signing key leaves the
// server to pick a random one.
func csrfKey(signingKey string) []byte {
	if signingKey == "" {
		return nil
	}
	key := sha256.Sum256([]byte("csrf:" + signingKey))
	return key[:]
}
