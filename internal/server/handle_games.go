package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/skip2/go-qrcode"

	"github.com/geotagger/client/internal/geotagger"
	"github.com/geotagger/client/internal/presenter"
	"github.com/geotagger/client/internal/session"
)

// CoordinateRequest carries an optional map position. Both fields or
// neither must be set.
type CoordinateRequest struct {
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

var errHalfCoordinate = errors.New("lat and lng must be given together")

func (c CoordinateRequest) coordinate() (*geotagger.Coordinate, error) {
	switch {
	case c.Lat == nil && c.Lng == nil:
		return nil, nil
	case c.Lat == nil || c.Lng == nil:
		return nil, errHalfCoordinate
	}
	return &geotagger.Coordinate{Lat: *c.Lat, Lng: *c.Lng}, nil
}

// readCoordinate accepts an empty body as "no coordinate".
func readCoordinate(r *http.Request) (*geotagger.Coordinate, error) {
	var req CoordinateRequest
	if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return req.coordinate()
}

func handleListGames(accounts Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games, err := accounts.Games(r.Context())
		if err != nil {
			writeBackendError(w, err, "could not load games")
			return
		}
		if games == nil {
			games = []geotagger.Game{}
		}
		writeJSON(w, http.StatusOK, games)
	}
}

func handleGetGame() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, gameView(r).View())
	}
}

func handlePutMarker() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := readCoordinate(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		view := gameView(r)
		if err := view.Pick(c); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, view.View())
	}
}

// handleGuess submits the placed marker, or the coordinate in the body
// which then becomes the marker.
func handleGuess(cache *session.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := readCoordinate(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		view := gameView(r)
		if c != nil {
			if err := view.Pick(c); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		var userID geotagger.UserID
		if rec, ok := cache.Read(r.Context()); ok {
			userID = rec.Identity
		}

		if _, err := view.Guess(r.Context(), userID); err != nil {
			switch {
			case errors.Is(err, presenter.ErrNoMarker):
				writeError(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, presenter.ErrPending), errors.Is(err, presenter.ErrAlreadyGuessed):
				writeError(w, http.StatusConflict, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, view.View())
	}
}

const (
	qrDefaultSize = 256
	qrMinSize     = 64
	qrMaxSize     = 1024
)

func handleQR(publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		size := qrDefaultSize
		if raw := r.URL.Query().Get("size"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < qrMinSize || n > qrMaxSize {
				writeError(w, http.StatusBadRequest, "size must be between 64 and 1024")
				return
			}
			size = n
		}

		link := geotagger.ShareURL(publicURL, gameView(r).Game().ID)
		png, err := qrcode.Encode(link, qrcode.Medium, size)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not render qr code")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}
