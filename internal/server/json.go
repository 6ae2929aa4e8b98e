package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/geotagger/client/internal/backend"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeBackendError relays a backend rejection. Client errors keep their
// status; everything else is a bad gateway.
func writeBackendError(w http.ResponseWriter, err error, fallback string) {
	status := http.StatusBadGateway
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		status = apiErr.Status
	}
	writeError(w, status, backend.Message(err, fallback))
}
