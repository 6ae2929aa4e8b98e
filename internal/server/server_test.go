package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geotagger/client/internal/backend"
	"github.com/geotagger/client/internal/bus"
	"github.com/geotagger/client/internal/geotagger"
	"github.com/geotagger/client/internal/handler/health"
	"github.com/geotagger/client/internal/presenter"
	"github.com/geotagger/client/internal/session"
	"github.com/geotagger/client/internal/storage"
	"github.com/geotagger/client/internal/verify"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAccounts struct {
	login     func(email, password string) (geotagger.SessionRecord, error)
	logoutErr error
	games     []geotagger.Game
	gamesErr  error
}

func (f *fakeAccounts) Login(_ context.Context, email, password string) (geotagger.SessionRecord, error) {
	return f.login(email, password)
}

func (f *fakeAccounts) Register(_ context.Context, email, password string) (geotagger.SessionRecord, error) {
	return f.login(email, password)
}

func (f *fakeAccounts) Logout(context.Context) error { return f.logoutErr }

func (f *fakeAccounts) Games(context.Context) ([]geotagger.Game, error) {
	return f.games, f.gamesErr
}

type balanceFunc func(ctx context.Context, id geotagger.UserID) (int, error)

func (f balanceFunc) Points(ctx context.Context, id geotagger.UserID) (int, error) { return f(ctx, id) }

type loaderFunc func(ctx context.Context, id string) (geotagger.Game, error)

func (f loaderFunc) Game(ctx context.Context, id string) (geotagger.Game, error) { return f(ctx, id) }

type scorerFunc func(ctx context.Context, gameID string, guess geotagger.Coordinate, userID geotagger.UserID) (backend.CheckResult, error)

func (f scorerFunc) CheckLocation(ctx context.Context, gameID string, guess geotagger.Coordinate, userID geotagger.UserID) (backend.CheckResult, error) {
	return f(ctx, gameID, guess, userID)
}

var tromostovje = geotagger.Game{ID: "7", Title: "Tromostovje", UserEmail: "ana.novak@example.com"}

func knownGames(_ context.Context, id string) (geotagger.Game, error) {
	if id == tromostovje.ID {
		return tromostovje, nil
	}
	return geotagger.Game{}, &backend.APIError{Status: http.StatusNotFound, Detail: "Game not found"}
}

type harness struct {
	handler  http.Handler
	accounts *fakeAccounts
	cache    *session.Cache
	bus      *bus.Bus
	badge    *presenter.Badge
	scorer   scorerFunc
	userIDs  []geotagger.UserID
	balance  int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := discardLogger()

	h := &harness{
		accounts: &fakeAccounts{
			login: func(email, _ string) (geotagger.SessionRecord, error) {
				return geotagger.SessionRecord{Identity: "17", Email: email, PointBalance: 40}, nil
			},
			games: []geotagger.Game{tromostovje},
		},
		cache:   session.NewCache(storage.NewMemory("default"), logger),
		bus:     bus.New(logger),
		balance: 40,
	}

	total := 60
	h.scorer = func(_ context.Context, _ string, _ geotagger.Coordinate, userID geotagger.UserID) (backend.CheckResult, error) {
		h.userIDs = append(h.userIDs, userID)
		awarded := 20
		return backend.CheckResult{DistanceMeters: 42.4, PointsAwarded: &awarded, TotalPoints: &total}, nil
	}

	coordinator := verify.New(scorerFunc(func(ctx context.Context, gameID string, guess geotagger.Coordinate, userID geotagger.UserID) (backend.CheckResult, error) {
		return h.scorer(ctx, gameID, guess, userID)
	}), h.cache, h.bus, logger)

	h.badge = presenter.NewBadge(h.cache, balanceFunc(func(context.Context, geotagger.UserID) (int, error) {
		return h.balance, nil
	}), h.bus, logger, 0)
	h.badge.Mount(context.Background())
	t.Cleanup(h.badge.Unmount)

	srv := New("127.0.0.1:0", Deps{
		Logger:    logger,
		Accounts:  h.accounts,
		Session:   h.cache,
		Bus:       h.bus,
		Badge:     h.badge,
		Games:     presenter.NewRegistry(loaderFunc(knownGames), coordinator, presenter.RescoreAllowed),
		Checks:    map[string]health.Checker{"storage": health.CheckerFunc(func(context.Context) error { return nil })},
		PublicURL: "https://geotagger.app",
	})
	h.handler = srv.Handler()
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestLoginAndLogout(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/login", `{"email":"ana.novak@example.com","password":"secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body)
	}
	view := decode[presenter.BadgeView](t, rec)
	if !view.SignedIn || view.UserID != "17" || view.Username != "ana.novak" || view.Points != 40 {
		t.Errorf("badge after login = %+v", view)
	}
	if _, ok := h.cache.Read(context.Background()); !ok {
		t.Error("session not cached after login")
	}

	me := decode[presenter.BadgeView](t, h.do(t, http.MethodGet, "/api/me", ""))
	if me != view {
		t.Errorf("/api/me = %+v, want %+v", me, view)
	}

	// A failing backend logout still signs out locally.
	h.accounts.logoutErr = errors.New("connection refused")
	rec = h.do(t, http.MethodPost, "/api/logout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	view = decode[presenter.BadgeView](t, rec)
	if view.SignedIn || view.Username != "Guest" || view.Points != 0 {
		t.Errorf("badge after logout = %+v", view)
	}
	if _, ok := h.cache.Read(context.Background()); ok {
		t.Error("session still cached after logout")
	}
}

func TestLoginKeepsAuthoritativeBalance(t *testing.T) {
	h := newHarness(t)
	h.balance = 55

	var published []bus.Payload
	h.bus.Subscribe(bus.TopicPointsUpdated, func(p bus.Payload) { published = append(published, p) })

	rec := h.do(t, http.MethodPost, "/api/login", `{"email":"ana.novak@example.com","password":"secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	if view := decode[presenter.BadgeView](t, rec); view.Points != 55 {
		t.Errorf("badge points after login = %d, want authoritative 55", view.Points)
	}
	if me := decode[presenter.BadgeView](t, h.do(t, http.MethodGet, "/api/me", "")); me.Points != 55 {
		t.Errorf("/api/me points = %d, want 55", me.Points)
	}
	if len(published) != 1 || published[0] != (bus.Balance{TotalPoints: 40}) {
		t.Errorf("published = %v, want the sign-in balance once", published)
	}
}

func TestLoginErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		loginErr   error
		wantStatus int
		wantError  string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, "invalid request body"},
		{"missing password", `{"email":"a@b.c"}`, nil, http.StatusBadRequest, "email and password are required"},
		{"rejected", `{"email":"a@b.c","password":"x"}`, &backend.APIError{Status: 401, Detail: "Invalid credentials"}, http.StatusUnauthorized, "Invalid credentials"},
		{"backend down", `{"email":"a@b.c","password":"x"}`, errors.New("dial tcp: refused"), http.StatusBadGateway, "login failed"},
		{"bare rejection", `{"email":"a@b.c","password":"x"}`, &backend.APIError{Status: 401}, http.StatusUnauthorized, "login failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.accounts.login = func(string, string) (geotagger.SessionRecord, error) {
				return geotagger.SessionRecord{}, tt.loginErr
			}

			rec := h.do(t, http.MethodPost, "/api/login", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decode[ErrorResponse](t, rec).Error; got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
			if _, ok := h.cache.Read(context.Background()); ok {
				t.Error("session cached after failed login")
			}
		})
	}
}

func TestListGames(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/games", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	games := decode[[]geotagger.Game](t, rec)
	if len(games) != 1 || games[0].ID != "7" {
		t.Errorf("games = %+v", games)
	}

	h.accounts.gamesErr = errors.New("timeout")
	if rec := h.do(t, http.MethodGet, "/api/games", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("status on backend failure = %d, want 502", rec.Code)
	}
}

func TestGetGame(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/games/7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	detail := decode[presenter.GameDetail](t, rec)
	if detail.Game.Title != "Tromostovje" || detail.CreatorName != "ana novak" || detail.CanSubmit {
		t.Errorf("detail = %+v", detail)
	}

	rec = h.do(t, http.MethodGet, "/api/games/99", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown game status = %d, want 404", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec).Error; got != "Game not found" {
		t.Errorf("error = %q", got)
	}
}

func TestGuessWithMarker(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/api/login", `{"email":"ana.novak@example.com","password":"secret"}`)

	rec := h.do(t, http.MethodPut, "/api/games/7/marker", `{"lat":46.0511,"lng":14.5060}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("marker status = %d, body = %s", rec.Code, rec.Body)
	}
	if d := decode[presenter.GameDetail](t, rec); !d.CanSubmit || d.Marker == nil {
		t.Fatalf("after marker = %+v", d)
	}

	rec = h.do(t, http.MethodPost, "/api/games/7/guess", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("guess status = %d, body = %s", rec.Code, rec.Body)
	}
	d := decode[presenter.GameDetail](t, rec)
	if d.Attempt.Status != geotagger.AttemptSucceeded {
		t.Fatalf("attempt = %+v", d.Attempt)
	}
	if d.Feedback == nil || d.Feedback.DistanceMeters != 42 || d.Feedback.Tier != geotagger.TierVeryClose {
		t.Errorf("feedback = %+v", d.Feedback)
	}
	if len(h.userIDs) != 1 || h.userIDs[0] != "17" {
		t.Errorf("scored for users %v, want [17]", h.userIDs)
	}

	me := decode[presenter.BadgeView](t, h.do(t, http.MethodGet, "/api/me", ""))
	if me.Points != 60 {
		t.Errorf("badge points = %d, want 60", me.Points)
	}
	rec2, _ := h.cache.Read(context.Background())
	if rec2.PointBalance != 60 {
		t.Errorf("cached balance = %d, want 60", rec2.PointBalance)
	}
}

func TestGuessRequests(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"no marker", "", http.StatusBadRequest},
		{"half coordinate", `{"lat":46}`, http.StatusBadRequest},
		{"out of range", `{"lat":91,"lng":0}`, http.StatusBadRequest},
		{"inline coordinate", `{"lat":46.05,"lng":14.5}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rec := h.do(t, http.MethodPost, "/api/games/7/guess", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}
}

func TestGuessFailureKeepsBalance(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/api/login", `{"email":"ana.novak@example.com","password":"secret"}`)
	h.scorer = func(context.Context, string, geotagger.Coordinate, geotagger.UserID) (backend.CheckResult, error) {
		return backend.CheckResult{}, &backend.APIError{Status: 500, Detail: "scoring unavailable"}
	}

	rec := h.do(t, http.MethodPost, "/api/games/7/guess", `{"lat":46.05,"lng":14.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	d := decode[presenter.GameDetail](t, rec)
	if d.Attempt.Status != geotagger.AttemptFailed || d.Attempt.ErrorMessage != "scoring unavailable" {
		t.Errorf("attempt = %+v", d.Attempt)
	}
	if d.Feedback != nil {
		t.Errorf("feedback on failure = %+v", d.Feedback)
	}
	if me := decode[presenter.BadgeView](t, h.do(t, http.MethodGet, "/api/me", "")); me.Points != 40 {
		t.Errorf("badge points = %d, want 40", me.Points)
	}
}

func TestQR(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/games/7/qr", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("content-type = %q", got)
	}
	if !strings.HasPrefix(rec.Body.String(), "\x89PNG") {
		t.Error("body is not a PNG")
	}

	if rec := h.do(t, http.MethodGet, "/api/games/7/qr?size=9000", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("oversized qr status = %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode[health.Response](t, rec); body.Checks["storage"].Status != "ok" {
		t.Errorf("body = %+v", body)
	}
}
