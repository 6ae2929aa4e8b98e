// Package geotagger defines the core domain types shared by the session cache,
// the verification coordinator and the presenters.
// It has no external dependencies.
package geotagger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// UserID identifies a backend user. The backend may encode it as a JSON
// number or a string; both decode to the same value.
type UserID string

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// SessionRecord is the cached identity and last-known point balance of the
// current profile.
type SessionRecord struct {
	Identity     UserID `json:"id"`
	Email        string `json:"email,omitempty"`
	PointBalance int    `json:"points"`
}

var (
	ErrMissingIdentity  = errors.New("session record has no identity")
	ErrNegativeBalance  = errors.New("point balance must not be negative")
	ErrInvalidLatitude  = errors.New("latitude must be within [-90, 90]")
	ErrInvalidLongitude = errors.New("longitude must be within [-180, 180]")
)

func (r SessionRecord) Validate() error {
	if r.Identity == "" {
		return ErrMissingIdentity
	}
	if r.PointBalance < 0 {
		return ErrNegativeBalance
	}
	return nil
}

// Coordinate is a WGS 84 point picked on a map.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(c.Lng) || c.Lng < -180 || c.Lng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

type AttemptStatus string

const (
	AttemptIdle      AttemptStatus = "idle"
	AttemptPending   AttemptStatus = "pending"
	AttemptSucceeded AttemptStatus = "succeeded"
	AttemptFailed    AttemptStatus = "failed"
)

// Result is what the scoring backend reported for one guess.
type Result struct {
	DistanceMeters float64 `json:"distanceMeters"`
	PointsAwarded  *int    `json:"pointsAwarded,omitempty"`
	TotalPoints    *int    `json:"totalPoints,omitempty"`
	Tier           Tier    `json:"tier"`
}

// Attempt is one guess submission and its outcome. A new attempt always
// supersedes the previous one.
type Attempt struct {
	ID           string        `json:"id,omitempty"`
	GameID       string        `json:"gameId"`
	Guess        *Coordinate   `json:"guess,omitempty"`
	Status       AttemptStatus `json:"status"`
	Result       *Result       `json:"result,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	StartedAt    *time.Time    `json:"startedAt,omitempty"`
	FinishedAt   *time.Time    `json:"finishedAt,omitempty"`
}

func (a Attempt) Terminal() bool {
	return a.Status == AttemptSucceeded || a.Status == AttemptFailed
}
