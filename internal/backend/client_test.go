package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/geotagger/client/internal/geotagger"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func newTestClient(rt roundTripperFunc) *Client {
	return NewClient(Config{
		BaseURL:    "http://backend.test/",
		HTTPClient: &http.Client{Transport: rt},
	})
}

func TestCheckLocationSendsGuessAndDecodesResult(t *testing.T) {
	var captured map[string]any

	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", req.Method)
		}
		if req.URL.Path != "/games/7/check" {
			t.Fatalf("path = %s, want /games/7/check", req.URL.Path)
		}
		if ct := req.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content-type = %q", ct)
		}
		if err := json.NewDecoder(req.Body).Decode(&captured); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"distance_meters": 42, "points_awarded": 10, "total_points": 110}`), nil
	})

	res, err := client.CheckLocation(context.Background(), "7", geotagger.Coordinate{Lat: 46.05, Lng: 14.50}, "u1")
	if err != nil {
		t.Fatalf("CheckLocation: %v", err)
	}

	if captured["latitude"] != 46.05 || captured["longitude"] != 14.5 || captured["userId"] != "u1" {
		t.Errorf("request body = %v", captured)
	}
	if res.DistanceMeters != 42 {
		t.Errorf("distance = %v, want 42", res.DistanceMeters)
	}
	if res.PointsAwarded == nil || *res.PointsAwarded != 10 {
		t.Errorf("points awarded = %v, want 10", res.PointsAwarded)
	}
	if res.TotalPoints == nil || *res.TotalPoints != 110 {
		t.Errorf("total points = %v, want 110", res.TotalPoints)
	}
}

func TestCheckLocationOmitsAnonymousUser(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		if strings.Contains(string(body), "userId") {
			t.Fatalf("anonymous guess carries userId: %s", body)
		}
		return jsonResponse(http.StatusOK, `{"distance_meters": 300.5}`), nil
	})

	res, err := client.CheckLocation(context.Background(), "7", geotagger.Coordinate{}, "")
	if err != nil {
		t.Fatalf("CheckLocation: %v", err)
	}
	if res.PointsAwarded != nil || res.TotalPoints != nil {
		t.Errorf("expected no point fields, got %+v", res)
	}
}

func TestCheckLocationErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
		wantErr    error
	}{
		{name: "detail", status: 500, body: `{"detail":"server error"}`, wantDetail: "server error"},
		{name: "message", status: 403, body: `{"message":"already guessed"}`, wantDetail: "already guessed"},
		{name: "validation list", status: 422, body: `{"detail":[{"msg":"field required"},{"msg":"bad latitude"}]}`, wantDetail: "field required; bad latitude"},
		{name: "no body", status: 502, body: ``, wantDetail: ""},
		{name: "missing distance", status: 200, body: `{"points_awarded": 3}`, wantErr: ErrMalformedResponse},
		{name: "negative distance", status: 200, body: `{"distance_meters": -1}`, wantErr: ErrMalformedResponse},
		{name: "not json", status: 200, body: `<html>`, wantErr: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(func(*http.Request) (*http.Response, error) {
				return jsonResponse(tt.status, tt.body), nil
			})

			_, err := client.CheckLocation(context.Background(), "1", geotagger.Coordinate{}, "")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %T, want *APIError", err)
			}
			if apiErr.Status != tt.status || apiErr.Detail != tt.wantDetail {
				t.Errorf("api error = %+v, want status %d detail %q", apiErr, tt.status, tt.wantDetail)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	if got := Message(&APIError{Status: 500, Detail: "server error"}, "fallback"); got != "server error" {
		t.Errorf("api error: got %q", got)
	}
	if got := Message(&APIError{Status: 500}, "fallback"); got != "fallback" {
		t.Errorf("api error without detail: got %q", got)
	}
	if got := Message(errors.New("dial tcp: refused"), "fallback"); got != "fallback" {
		t.Errorf("network error: got %q", got)
	}
}

func TestLoginDecodesUser(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/auth/login" {
			t.Fatalf("path = %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"status":"success","user":{"id":5,"email":"ana@example.com","points":40,"is_active":true}}`), nil
	})

	rec, err := client.Login(context.Background(), "ana@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	want := geotagger.SessionRecord{Identity: "5", Email: "ana@example.com", PointBalance: 40}
	if rec != want {
		t.Errorf("record = %+v, want %+v", rec, want)
	}
}

func TestLoginFailure(t *testing.T) {
	client := newTestClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"detail":"Invalid password"}`), nil
	})

	_, err := client.Login(context.Background(), "a", "b")
	if got := Message(err, "Login failed"); got != "Invalid password" {
		t.Errorf("message = %q", got)
	}
}

func TestGameUnwrapsEnvelope(t *testing.T) {
	bodies := map[string]string{
		"direct":  `{"id": 7, "title": "Tromostovje", "image_url": "https://x.supabase.co//a.jpg", "user_email": "ana.novak@example.com", "created_at": "2024-05-01T10:00:00.123456"}`,
		"wrapped": `{"game": {"id": "7", "title": "Tromostovje", "path": "https://x.supabase.co//a.jpg", "user_email": "ana.novak@example.com"}}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(func(req *http.Request) (*http.Response, error) {
				if req.URL.Path != "/games/7" {
					t.Fatalf("path = %s", req.URL.Path)
				}
				return jsonResponse(http.StatusOK, body), nil
			})

			g, err := client.Game(context.Background(), "7")
			if err != nil {
				t.Fatalf("Game: %v", err)
			}
			if g.ID != "7" || g.Title != "Tromostovje" {
				t.Errorf("game = %+v", g)
			}
			if g.ImageURL != "https://x.supabase.co/a.jpg" {
				t.Errorf("image url = %q", g.ImageURL)
			}
			if g.CreatorName() != "ana novak" {
				t.Errorf("creator = %q", g.CreatorName())
			}
		})
	}
}

func TestGameNotFound(t *testing.T) {
	client := newTestClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"detail":"Game not found"}`), nil
	})

	_, err := client.Game(context.Background(), "99")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 APIError", err)
	}
}

func TestGamesAcceptsListOrEnvelope(t *testing.T) {
	for _, body := range []string{
		`[{"id":1,"title":"a"},{"id":2,"title":"b"}]`,
		`{"games":[{"id":1,"title":"a"},{"id":2,"title":"b"}]}`,
	} {
		client := newTestClient(func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, body), nil
		})
		games, err := client.Games(context.Background())
		if err != nil {
			t.Fatalf("Games(%s): %v", body, err)
		}
		if len(games) != 2 || games[1].ID != "2" {
			t.Errorf("Games(%s) = %+v", body, games)
		}
	}
}

func TestPoints(t *testing.T) {
	tests := []struct {
		body    string
		want    int
		wantErr bool
	}{
		{body: `{"points": 110}`, want: 110},
		{body: `{"points": -3}`, wantErr: true},
		{body: `{"points": "many"}`, wantErr: true},
		{body: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		client := newTestClient(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/users/u1/points" {
				t.Fatalf("path = %s", req.URL.Path)
			}
			return jsonResponse(http.StatusOK, tt.body), nil
		})

		got, err := client.Points(context.Background(), "u1")
		if tt.wantErr {
			if err == nil {
				t.Errorf("Points(%s): expected error", tt.body)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Points(%s) = %d, %v; want %d", tt.body, got, err, tt.want)
		}
	}
}

func TestAPIKeyHeader(t *testing.T) {
	client := NewClient(Config{
		APIKey: "secret",
		HTTPClient: &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if got := req.Header.Get("Authorization"); got != "Bearer secret" {
				t.Fatalf("authorization = %q", got)
			}
			if req.URL.Host != "127.0.0.1:8000" {
				t.Fatalf("host = %q, want default backend", req.URL.Host)
			}
			return jsonResponse(http.StatusOK, `{}`), nil
		})},
	})
	if err := client.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                         defaultBaseURL,
		"https://api.example.com/": "https://api.example.com",
		"https://api.example.com":  "https://api.example.com",
	}
	for in, want := range cases {
		if got := normalizeBaseURL(in); got != want {
			t.Errorf("normalizeBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPing(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodGet || req.URL.Path != "/" {
			t.Fatalf("request = %s %s, want GET /", req.Method, req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"message": "Welcome to Geotagger API"}`), nil
	})
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	down := newTestClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusServiceUnavailable, ``), nil
	})
	var apiErr *APIError
	if err := down.Ping(context.Background()); !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("Ping on 503 = %v", err)
	}
}

func TestRegisterAndResetPassword(t *testing.T) {
	var paths []string
	var bodies []map[string]string
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		paths = append(paths, req.URL.Path)
		var body map[string]string
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		bodies = append(bodies, body)
		if req.URL.Path == "/auth/register" {
			return jsonResponse(http.StatusOK, `{"user": {"id": "u9", "email": "new@example.com"}}`), nil
		}
		return jsonResponse(http.StatusOK, `{"message": "Password updated"}`), nil
	})

	rec, err := client.Register(context.Background(), "new@example.com", "pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if rec.Identity != "u9" || rec.PointBalance != 0 {
		t.Errorf("record = %+v", rec)
	}

	if err := client.ResetPassword(context.Background(), "new@example.com", "pw2"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if len(paths) != 2 || paths[0] != "/auth/register" || paths[1] != "/auth/reset-password" {
		t.Fatalf("paths = %v", paths)
	}
	if bodies[1]["email"] != "new@example.com" || bodies[1]["new_password"] != "pw2" {
		t.Errorf("reset body = %v", bodies[1])
	}
}
