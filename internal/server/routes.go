package server

import (
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/geotagger/client/internal/handler/health"
)

func addRoutes(r chi.Router, d Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", handleSwaggerUI())
	r.Mount("/healthz", health.NewHandler(d.Logger, d.Checks).Routes())
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	r.Get("/ws/points", handleWSPoints(d.Bus, d.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", handleLogin(d))
		r.Post("/register", handleRegister(d))
		r.Post("/logout", handleLogout(d))
		r.Get("/me", handleMe(d.Badge))
		r.Get("/points/events", handleEvents(d.Bus, d.Badge, d.Logger))

		r.Get("/games", handleListGames(d.Accounts))

		// {gameID} resolved by gameMiddleware.
		r.Route("/games/{gameID}", func(r chi.Router) {
			r.Use(gameMiddleware(d.Games, d.Logger))
			r.Get("/", handleGetGame())
			r.Put("/marker", handlePutMarker())
			r.Post("/guess", handleGuess(d.Session))
			r.Get("/qr", handleQR(d.PublicURL))
		})
	})

	if d.SPADir != "" {
		if info, err := os.Stat(d.SPADir); err == nil && info.IsDir() {
			d.Logger.Info("serving SPA", "dir", d.SPADir)
			r.NotFound(handleSPA(d.SPADir))
		}
	}
}
