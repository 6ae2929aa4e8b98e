// Package server exposes the client core over a local HTTP surface so that a
// browser front end (or curl) can drive the badge, the game views and the
// point notifications.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/geotagger/client/internal/bus"
	"github.com/geotagger/client/internal/geotagger"
	"github.com/geotagger/client/internal/handler/health"
	"github.com/geotagger/client/internal/presenter"
	"github.com/geotagger/client/internal/session"
)

// Accounts is the part of the backend the HTTP surface talks to directly.
type Accounts interface {
	Login(ctx context.Context, email, password string) (geotagger.SessionRecord, error)
	Register(ctx context.Context, email, password string) (geotagger.SessionRecord, error)
	Logout(ctx context.Context) error
	Games(ctx context.Context) ([]geotagger.Game, error)
}

// Deps are the collaborators the routes are wired to.
type Deps struct {
	Logger   *slog.Logger
	Accounts Accounts
	Session  *session.Cache
	Bus      *bus.Bus
	Badge    *presenter.Badge
	Games    *presenter.Registry
	Checks   map[string]health.Checker
	// Metrics is mounted at /metrics when set.
	Metrics   http.Handler
	PublicURL string
	SPADir    string
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func New(addr string, d Deps) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(d.Logger))
	r.Use(middleware.Recoverer)

	addRoutes(r, d)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: d.Logger,
	}
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
