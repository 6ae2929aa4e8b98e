package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/geotagger/client/internal/bus"
	"github.com/geotagger/client/internal/geotagger"
	"github.com/geotagger/client/internal/presenter"
)

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func handleLogin(d Deps) http.HandlerFunc {
	return handleSignIn(d, d.Accounts.Login, "login failed")
}

func handleRegister(d Deps) http.HandlerFunc {
	return handleSignIn(d, d.Accounts.Register, "registration failed")
}

func handleSignIn(d Deps, signIn func(ctx context.Context, email, password string) (geotagger.SessionRecord, error), fallback string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CredentialsRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		rec, err := signIn(r.Context(), req.Email, req.Password)
		if err != nil {
			d.Logger.Info("sign-in rejected", "email", req.Email, "error", err)
			writeBackendError(w, err, fallback)
			return
		}

		if err := d.Session.Write(r.Context(), rec); err != nil {
			d.Logger.Error("caching session failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not store session")
			return
		}

		// Views hold the previous user's guesses.
		d.Games.Reset()
		// Announce the sign-in balance first; Reload then reconciles with the
		// authoritative value.
		d.Bus.Publish(bus.TopicPointsUpdated, bus.Balance{TotalPoints: rec.PointBalance})
		d.Badge.Reload(r.Context())

		writeJSON(w, http.StatusOK, d.Badge.View())
	}
}

func handleLogout(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The local session goes away even when the backend cannot be told.
		if err := d.Accounts.Logout(r.Context()); err != nil {
			d.Logger.Warn("backend logout failed", "error", err)
		}

		if err := d.Session.Clear(r.Context()); err != nil {
			d.Logger.Error("clearing session failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not clear session")
			return
		}

		d.Games.Reset()
		d.Badge.Reload(r.Context())

		writeJSON(w, http.StatusOK, d.Badge.View())
	}
}

func handleMe(badge *presenter.Badge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, badge.View())
	}
}
