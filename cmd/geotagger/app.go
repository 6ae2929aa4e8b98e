package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/geotagger/client/internal/backend"
	"github.com/geotagger/client/internal/bus"
	"github.com/geotagger/client/internal/config"
	"github.com/geotagger/client/internal/metrics"
	"github.com/geotagger/client/internal/presenter"
	"github.com/geotagger/client/internal/session"
	"github.com/geotagger/client/internal/storage"
	"github.com/geotagger/client/internal/verify"
)

// app is the client core wired for one profile.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       storage.Store
	cache       *session.Cache
	bus         *bus.Bus
	metrics     *metrics.Recorder
	backend     *backend.Client
	coordinator *verify.Coordinator
	badge       *presenter.Badge
	games       *presenter.Registry
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})).With("profile", cfg.Profile)

	policy, err := presenter.ParseResubmitPolicy(cfg.ResubmitPolicy)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage, err)
	}
	logger.Debug("opened profile storage", "storage", cfg.Storage)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		cache:   session.NewCache(store, logger),
		bus:     bus.New(logger),
		metrics: metrics.New(),
		backend: backend.NewClient(backend.Config{BaseURL: cfg.BackendURL, APIKey: cfg.APIKey}),
	}
	a.bus.SetObserver(a.metrics)

	var balances presenter.BalanceSource = a.backend
	if cfg.SupabaseURL != "" {
		balances = backend.NewSupabase(cfg.SupabaseURL, cfg.SupabaseAnonKey, nil)
		logger.Debug("reading balances from supabase", "url", cfg.SupabaseURL)
	}

	a.coordinator = verify.New(a.backend, a.cache, a.bus, logger)
	a.coordinator.SetRecorder(a.metrics)
	a.badge = presenter.NewBadge(a.cache, balances, a.bus, logger, cfg.BalanceRetry)
	a.games = presenter.NewRegistry(a.backend, a.coordinator, policy)
	return a, nil
}

func (a *app) Close() error {
	a.badge.Unmount()
	return a.store.Close()
}

// withApp loads the configuration, applies flag overrides and runs fn with a
// wired app. Logs go to stderr so command output stays clean.
func withApp(o *overrides, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := o.apply(cmd.Flags(), cfg); err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(cmd, a, args)
	}
}
