package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/geotagger/client/internal/geotagger"
)

// Supabase reads point balances straight from the users table through the
// PostgREST endpoint of a Supabase project.
type Supabase struct {
	baseURL    string
	anonKey    string
	httpClient httpDoer
}

func NewSupabase(projectURL, anonKey string, client *http.Client) *Supabase {
	return &Supabase{
		baseURL:    strings.TrimSuffix(projectURL, "/"),
		anonKey:    anonKey,
		httpClient: resolveHTTPClient(client),
	}
}

func (s *Supabase) Points(ctx context.Context, userID geotagger.UserID) (int, error) {
	q := url.Values{}
	q.Set("id", "eq."+string(userID))
	q.Set("select", "points")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/rest/v1/users?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if s.anonKey != "" {
		req.Header.Set("apikey", s.anonKey)
		req.Header.Set("Authorization", "Bearer "+s.anonKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, newAPIError(resp)
	}

	var rows []struct {
		Points *json.Number `json:"points"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(rows) != 1 {
		return 0, fmt.Errorf("%w: expected one user row, got %d", ErrMalformedResponse, len(rows))
	}
	return pointsValue(rows[0].Points)
}
