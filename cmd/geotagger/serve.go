package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/geotagger/client/internal/handler/health"
	"github.com/geotagger/client/internal/presenter"
	"github.com/geotagger/client/internal/server"
)

func newServeCmd(o *overrides) *cobra.Command {
	var (
		addr   string
		spaDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local client API, the point stream and the front end",
		Args:  cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.HTTPAddr = addr
			}
			if cmd.Flags().Changed("spa-dir") {
				a.cfg.SPADir = spaDir
			}
			return serve(cmd.Context(), a)
		}),
	}

	fs := cmd.Flags()
	fs.StringVar(&addr, "addr", "127.0.0.1:8080", "address to listen on (env: HTTP_ADDR)")
	fs.StringVar(&spaDir, "spa-dir", "", "directory with the built front end (env: SPA_DIR)")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	logger := a.logger

	a.badge.OnChange(func(v presenter.BadgeView) {
		logger.Debug("badge changed", "signed_in", v.SignedIn, "points", v.Points)
	})

	srv := server.New(a.cfg.HTTPAddr, server.Deps{
		Logger:   logger,
		Accounts: a.backend,
		Session:  a.cache,
		Bus:      a.bus,
		Badge:    a.badge,
		Games:    a.games,
		Checks: map[string]health.Checker{
			"storage": health.CheckerFunc(a.store.Ping),
			"backend": health.CheckerFunc(a.backend.Ping),
		},
		Metrics:   a.metrics.Handler(),
		PublicURL: a.cfg.PublicURL,
		SPADir:    a.cfg.SPADir,
	})

	g, gctx := errgroup.WithContext(ctx)

	// The authoritative balance read may retry for a while; the listener
	// does not wait for it.
	g.Go(func() error {
		a.badge.Mount(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("starting http server", "addr", a.cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
