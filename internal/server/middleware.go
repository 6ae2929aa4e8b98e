package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/geotagger/client/internal/presenter"
)

type ctxKey int

const ctxKeyGame ctxKey = iota

func gameMiddleware(games *presenter.Registry, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "gameID")
			if id == "" {
				writeError(w, http.StatusNotFound, "game not found")
				return
			}

			view, err := games.Get(r.Context(), id)
			if err != nil {
				logger.Warn("loading game failed", "game_id", id, "error", err)
				writeBackendError(w, err, "could not load game")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyGame, view)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func gameView(r *http.Request) *presenter.GameView {
	return r.Context().Value(ctxKeyGame).(*presenter.GameView)
}
