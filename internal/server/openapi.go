package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/swaggest/swgui/v5emb"

	"github.com/geotagger/client/internal/geotagger"
	"github.com/geotagger/client/internal/handler/health"
	"github.com/geotagger/client/internal/presenter"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Geotagger Client API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Local API of the Geotagger client: session badge, game views and point notifications.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Reports whether profile storage and the backend are reachable.")
	getHealthz.AddRespStructure(health.Response{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(health.Response{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws/points
	getWSPoints, _ := r.NewOperationContext(http.MethodGet, "/ws/points")
	getWSPoints.SetSummary("Point updates over WebSocket")
	getWSPoints.SetDescription("Upgrades to a WebSocket that receives each point notification as a JSON number or {\"points\": n}.")
	getWSPoints.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWSPoints)

	// POST /api/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/login")
	postLogin.SetSummary("Sign in")
	postLogin.SetDescription("Signs in against the backend and caches the session for this profile.")
	postLogin.AddReqStructure(CredentialsRequest{})
	postLogin.AddRespStructure(presenter.BadgeView{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/register
	postRegister, _ := r.NewOperationContext(http.MethodPost, "/api/register")
	postRegister.SetSummary("Register")
	postRegister.SetDescription("Creates an account and signs in with it.")
	postRegister.AddReqStructure(CredentialsRequest{})
	postRegister.AddRespStructure(presenter.BadgeView{}, openapi.WithHTTPStatus(http.StatusOK))
	postRegister.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postRegister)

	// POST /api/logout
	postLogout, _ := r.NewOperationContext(http.MethodPost, "/api/logout")
	postLogout.SetSummary("Sign out")
	postLogout.SetDescription("Clears the cached session. Returns the guest badge.")
	postLogout.AddRespStructure(presenter.BadgeView{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postLogout)

	// GET /api/me
	getMe, _ := r.NewOperationContext(http.MethodGet, "/api/me")
	getMe.SetSummary("Identity badge")
	getMe.SetDescription("Returns the signed-in user and their point balance, or the guest badge.")
	getMe.AddRespStructure(presenter.BadgeView{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getMe)

	// GET /api/points/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/points/events")
	getEvents.SetSummary("SSE point stream")
	getEvents.SetDescription("Server-Sent Events: one badge event on connect, then user_points_updated events.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/games
	listGames, _ := r.NewOperationContext(http.MethodGet, "/api/games")
	listGames.SetSummary("List games")
	listGames.SetDescription("Returns every published game.")
	listGames.AddRespStructure([]geotagger.Game{}, openapi.WithHTTPStatus(http.StatusOK))
	listGames.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(listGames)

	// GET /api/games/{gameID}
	getGame, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}")
	getGame.SetSummary("Game detail")
	getGame.SetDescription("Returns the game with its marker, current attempt and result feedback.")
	getGame.AddReqStructure(gamePath{})
	getGame.AddRespStructure(presenter.GameDetail{}, openapi.WithHTTPStatus(http.StatusOK))
	getGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getGame)

	// PUT /api/games/{gameID}/marker
	putMarker, _ := r.NewOperationContext(http.MethodPut, "/api/games/{gameID}/marker")
	putMarker.SetSummary("Place marker")
	putMarker.SetDescription("Places the guess marker. An empty object removes it.")
	putMarker.AddReqStructure(markerRequest{})
	putMarker.AddRespStructure(presenter.GameDetail{}, openapi.WithHTTPStatus(http.StatusOK))
	putMarker.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	putMarker.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(putMarker)

	// POST /api/games/{gameID}/guess
	postGuess, _ := r.NewOperationContext(http.MethodPost, "/api/games/{gameID}/guess")
	postGuess.SetSummary("Submit guess")
	postGuess.SetDescription("Scores the marker, or the coordinate in the body, against the hidden location.")
	postGuess.AddReqStructure(markerRequest{})
	postGuess.AddRespStructure(presenter.GameDetail{}, openapi.WithHTTPStatus(http.StatusOK))
	postGuess.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postGuess.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postGuess)

	// GET /api/games/{gameID}/qr
	getQR, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}/qr")
	getQR.SetSummary("Share QR code")
	getQR.SetDescription("PNG QR code of the public link to the game.")
	getQR.AddReqStructure(qrRequest{})
	getQR.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK), openapi.WithContentType("image/png"))
	getQR.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getQR)

	return r.Spec
}

type gamePath struct {
	GameID string `path:"gameID"`
}

type markerRequest struct {
	GameID string   `path:"gameID"`
	Lat    *float64 `json:"lat,omitempty" minimum:"-90" maximum:"90"`
	Lng    *float64 `json:"lng,omitempty" minimum:"-180" maximum:"180"`
}

type qrRequest struct {
	GameID string `path:"gameID"`
	Size   int    `query:"size" minimum:"64" maximum:"1024"`
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func handleSwaggerUI() http.Handler {
	return v5emb.New("Geotagger Client API", "/openapi.json", "/docs")
}
