package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/geotagger/client/internal/geotagger"
)

// flexID accepts ids encoded as JSON strings or numbers.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	var u geotagger.UserID
	if err := u.UnmarshalJSON(data); err != nil {
		return err
	}
	*id = flexID(u)
	return nil
}

type gameResponse struct {
	ID          flexID           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	ImageURL    string           `json:"image_url"`
	Path        string           `json:"path"`
	UserID      geotagger.UserID `json:"user_id"`
	UserEmail   string           `json:"user_email"`
	CreatedAt   string           `json:"created_at"`
}

func (g gameResponse) game() geotagger.Game {
	img := g.ImageURL
	if img == "" {
		img = g.Path
	}
	out := geotagger.Game{
		ID:          string(g.ID),
		Title:       g.Title,
		Description: g.Description,
		ImageURL:    geotagger.NormalizeImageURL(img),
		UserID:      g.UserID,
		UserEmail:   g.UserEmail,
	}
	if ts, ok := parseTimestamp(g.CreatedAt); ok {
		out.CreatedAt = &ts
	}
	return out
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Games lists published games.
func (c *Client) Games(ctx context.Context) ([]geotagger.Game, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/games", nil, &raw); err != nil {
		return nil, err
	}

	var list []gameResponse
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			Games []gameResponse `json:"games"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, ErrMalformedResponse
		}
		list = wrapped.Games
	}

	games := make([]geotagger.Game, 0, len(list))
	for _, g := range list {
		games = append(games, g.game())
	}
	return games, nil
}

// Game fetches one game. The backend returns it either directly or wrapped
// in {"game": ...}.
func (c *Client) Game(ctx context.Context, id string) (geotagger.Game, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/games/"+url.PathEscape(id), nil, &raw); err != nil {
		return geotagger.Game{}, err
	}

	var direct gameResponse
	if err := json.Unmarshal(raw, &direct); err == nil && direct.ID != "" {
		return direct.game(), nil
	}
	var wrapped struct {
		Game *gameResponse `json:"game"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Game == nil || wrapped.Game.ID == "" {
		return geotagger.Game{}, ErrMalformedResponse
	}
	return wrapped.Game.game(), nil
}

type checkRequest struct {
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	UserID    *geotagger.UserID `json:"userId,omitempty"`
}

// CheckResult is the backend's verdict on one guess.
type CheckResult struct {
	DistanceMeters float64
	PointsAwarded  *int
	TotalPoints    *int
}

// CheckLocation submits a guess for scoring. userID may be empty for an
// anonymous guess.
func (c *Client) CheckLocation(ctx context.Context, gameID string, guess geotagger.Coordinate, userID geotagger.UserID) (CheckResult, error) {
	req := checkRequest{Latitude: guess.Lat, Longitude: guess.Lng}
	if userID != "" {
		req.UserID = &userID
	}

	var resp struct {
		DistanceMeters *float64 `json:"distance_meters"`
		PointsAwarded  *int     `json:"points_awarded"`
		TotalPoints    *int     `json:"total_points"`
	}
	path := "/games/" + url.PathEscape(gameID) + "/check"
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return CheckResult{}, err
	}
	if resp.DistanceMeters == nil || *resp.DistanceMeters < 0 {
		return CheckResult{}, ErrMalformedResponse
	}
	return CheckResult{
		DistanceMeters: *resp.DistanceMeters,
		PointsAwarded:  resp.PointsAwarded,
		TotalPoints:    resp.TotalPoints,
	}, nil
}

// Points reads the authoritative balance of a user.
func (c *Client) Points(ctx context.Context, userID geotagger.UserID) (int, error) {
	var resp struct {
		Points *json.Number `json:"points"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(string(userID))+"/points", nil, &resp); err != nil {
		return 0, err
	}
	return pointsValue(resp.Points)
}

func pointsValue(n *json.Number) (int, error) {
	if n == nil {
		return 0, ErrMalformedResponse
	}
	v, err := n.Int64()
	if err != nil || v < 0 {
		return 0, ErrMalformedResponse
	}
	return int(v), nil
}
