package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/db"
	"github.com/kailas-cloud/lookbook/internal/domain"
	chiTransport "github.com/kailas-cloud/lookbook/internal/transport/chi"
	healthuc "github.com/kailas-cloud/lookbook/internal/usecase/health"
	usageuc "github.com/kailas-cloud/lookbook/internal/usecase/usage"
	"github.com/kailas-cloud/lookbook/internal/version"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var noImages bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the recommendation HTTP API",
		Long: `Load the embedding index and serve the recommendation API.

Endpoints:
  POST /api/v1/recommendations  query -> ranked items
  POST /api/v1/intents          query -> normalized intent
  POST /api/v1/descriptions     image -> item description
  GET  /api/v1/items/{id}       catalog item
  GET  /api/v1/usage            generation token budget
  GET  /health, GET /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()
			return a.serve(cmd.Context(), !noImages)
		},
	}
	cmd.Flags().BoolVar(&noImages, "no-images", false, "Do not look up item image URLs in the dataset")
	return cmd
}

func (a *app) serve(ctx context.Context, withImages bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.logger.Info("Starting lookbook API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", a.env),
		zap.Int("http_port", a.cfg.HTTP.Port),
	)

	// The index is loaded before any network dependency so a bad index fails fast.
	idx, err := a.loadIndex()
	if err != nil {
		return err
	}

	cache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	// Pass nil interfaces (not typed nil pointers!) if the cache is disabled.
	var (
		kv       db.KVStore
		counters db.CounterStore
	)
	healthDeps := healthuc.Deps{Index: idx}
	if cache != nil {
		defer cache.Close()
		kv, counters = cache, cache
		healthDeps.Cache = cache
	}

	embedder, err := a.queryEmbedder(kv)
	if err != nil {
		return err
	}
	gen, tracker, err := a.generator(ctx, counters)
	if err != nil {
		return err
	}
	recommender, err := a.pipeline(idx, embedder, gen)
	if err != nil {
		return err
	}
	describer, err := a.describer(gen)
	if err != nil {
		return err
	}
	if hc, ok := embedder.(domain.HealthChecker); ok {
		healthDeps.Embedding = hc
	}
	healthDeps.Generation = gen

	deps := chiTransport.Deps{
		Recommender: recommender,
		Describer:   describer,
		Catalog:     idx,
		Health:      healthuc.New(healthDeps),
		Usage:       usageuc.New(tracker),
	}
	if withImages {
		deps.Images = a.dataset()
	}
	server := chiTransport.NewServer(deps, chiTransport.Limits{
		MaxN:           a.cfg.Recommend.MaxN,
		MaxK:           a.cfg.Recommend.MaxK,
		MaxBodyBytes:   int64(a.cfg.HTTP.MaxBodyBytes),
		RequestTimeout: time.Duration(a.cfg.HTTP.RequestTimeoutSec) * time.Second,
	}, a.logger)

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           chiTransport.NewRouter(server),
		ReadTimeout:       time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-sigCtx.Done():
		a.logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
	}

	a.logger.Info("Server stopped gracefully")
	return nil
}
