package presenter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/geotagger/client/internal/geotagger"
)

var (
	ErrNoMarker       = errors.New("pick a location on the map first")
	ErrPending        = errors.New("a guess is already being verified")
	ErrAlreadyGuessed = errors.New("this game has already been guessed")
)

// Verifier submits a guess and reports the finished attempt.
type Verifier interface {
	Submit(ctx context.Context, gameID string, guess *geotagger.Coordinate, userID geotagger.UserID) geotagger.Attempt
}

// ResubmitPolicy decides whether a game view accepts another guess after one
// has succeeded.
type ResubmitPolicy string

const (
	// RescoreAllowed leaves the decision to the scoring backend.
	RescoreAllowed ResubmitPolicy = "rescore"
	// OneGuessPerGame refuses further guesses once one has been scored.
	OneGuessPerGame ResubmitPolicy = "once"
)

func ParseResubmitPolicy(s string) (ResubmitPolicy, error) {
	switch p := ResubmitPolicy(s); p {
	case RescoreAllowed, OneGuessPerGame:
		return p, nil
	case "":
		return RescoreAllowed, nil
	default:
		return "", fmt.Errorf("unknown resubmit policy %q (want rescore or once)", s)
	}
}

// GameView is the detail surface of one game: the picked marker, the
// current attempt and whether the guess trigger is enabled.
type GameView struct {
	game     geotagger.Game
	verifier Verifier
	policy   ResubmitPolicy
	now      func() time.Time

	mu      sync.Mutex
	marker  *geotagger.Coordinate
	attempt geotagger.Attempt
	scored  bool
}

func NewGameView(game geotagger.Game, verifier Verifier, policy ResubmitPolicy) *GameView {
	return &GameView{
		game:     game,
		verifier: verifier,
		policy:   policy,
		now:      time.Now,
		attempt:  geotagger.Attempt{GameID: game.ID, Status: geotagger.AttemptIdle},
	}
}

func (g *GameView) Game() geotagger.Game { return g.game }

// Pick places the marker; nil removes it. Picking a new spot clears the
// previous result unless a guess is still in flight.
func (g *GameView) Pick(c *geotagger.Coordinate) error {
	if c != nil {
		if err := c.Validate(); err != nil {
			return err
		}
		copied := *c
		c = &copied
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.marker = c
	if g.attempt.Status != geotagger.AttemptPending {
		g.attempt = geotagger.Attempt{GameID: g.game.ID, Status: geotagger.AttemptIdle}
	}
	return nil
}

func (g *GameView) CanSubmit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blockedLocked() == nil
}

func (g *GameView) blockedLocked() error {
	switch {
	case g.attempt.Status == geotagger.AttemptPending:
		return ErrPending
	case g.marker == nil:
		return ErrNoMarker
	case g.policy == OneGuessPerGame && g.scored:
		return ErrAlreadyGuessed
	}
	return nil
}

// Guess submits the current marker. While the trigger is disabled it
// returns the current attempt together with the reason.
func (g *GameView) Guess(ctx context.Context, userID geotagger.UserID) (geotagger.Attempt, error) {
	g.mu.Lock()
	if err := g.blockedLocked(); err != nil {
		a := g.attempt
		g.mu.Unlock()
		return a, err
	}
	guess := *g.marker
	started := g.now()
	g.attempt = geotagger.Attempt{
		GameID:    g.game.ID,
		Guess:     &guess,
		Status:    geotagger.AttemptPending,
		StartedAt: &started,
	}
	g.mu.Unlock()

	a := g.verifier.Submit(ctx, g.game.ID, &guess, userID)

	g.mu.Lock()
	g.attempt = a
	if a.Status == geotagger.AttemptSucceeded {
		g.scored = true
	}
	g.mu.Unlock()
	return a, nil
}

func (g *GameView) Attempt() geotagger.Attempt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempt
}

// GameDetail is what the game surface renders.
type GameDetail struct {
	Game            geotagger.Game        `json:"game"`
	CreatorName     string                `json:"creatorName"`
	CreatorInitials string                `json:"creatorInitials"`
	Marker          *geotagger.Coordinate `json:"marker,omitempty"`
	CanSubmit       bool                  `json:"canSubmit"`
	Attempt         geotagger.Attempt     `json:"attempt"`
	Feedback        *Feedback             `json:"feedback,omitempty"`
}

// Feedback is the result banner shown after a scored guess.
type Feedback struct {
	DistanceMeters int            `json:"distanceMeters"`
	Tier           geotagger.Tier `json:"tier"`
	PointsAwarded  *int           `json:"pointsAwarded,omitempty"`
	TotalPoints    *int           `json:"totalPoints,omitempty"`
}

func (g *GameView) View() GameDetail {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := GameDetail{
		Game:            g.game,
		CreatorName:     g.game.CreatorName(),
		CreatorInitials: g.game.CreatorInitials(),
		Marker:          g.marker,
		CanSubmit:       g.blockedLocked() == nil,
		Attempt:         g.attempt,
	}
	if r := g.attempt.Result; r != nil {
		d.Feedback = &Feedback{
			DistanceMeters: int(math.Round(r.DistanceMeters)),
			Tier:           r.Tier,
			PointsAwarded:  r.PointsAwarded,
			TotalPoints:    r.TotalPoints,
		}
	}
	return d
}
