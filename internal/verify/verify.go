// Package verify runs a single guess submission against the scoring backend
// and feeds the outcome back into the shared session state.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/geotagger/client/internal/backend"
	"github.com/geotagger/client/internal/bus"
	"github.com/geotagger/client/internal/geotagger"
	"github.com/geotagger/client/internal/session"
)

// FallbackMessage is shown when a failure carries no message of its own.
const FallbackMessage = "could not verify location"

// Scorer is the backend endpoint that scores a guess.
type Scorer interface {
	CheckLocation(ctx context.Context, gameID string, guess geotagger.Coordinate, userID geotagger.UserID) (backend.CheckResult, error)
}

// PointsCache is the part of the session cache the coordinator writes to.
type PointsCache interface {
	UpdatePoints(ctx context.Context, total int) error
}

type Publisher interface {
	Publish(topic bus.Topic, p bus.Payload)
}

// Recorder observes finished attempts.
type Recorder interface {
	AttemptFinished(status geotagger.AttemptStatus, tier geotagger.Tier, elapsed time.Duration)
}

// Coordinator keeps no state between calls. Callers are expected to hold
// back a second Submit while the first is pending.
type Coordinator struct {
	scorer   Scorer
	cache    PointsCache
	bus      Publisher
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

func New(scorer Scorer, cache PointsCache, publisher Publisher, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		scorer: scorer,
		cache:  cache,
		bus:    publisher,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (c *Coordinator) SetRecorder(r Recorder) { c.recorder = r }

func (c *Coordinator) pending(gameID string, guess geotagger.Coordinate) geotagger.Attempt {
	started := c.now()
	return geotagger.Attempt{
		ID:        c.newID(),
		GameID:    gameID,
		Guess:     &guess,
		Status:    geotagger.AttemptPending,
		StartedAt: &started,
	}
}

// Submit scores guess for gameID. A nil guess returns an idle attempt
// without touching the network; so does an invalid one, with a message.
// userID may be empty for an anonymous guess.
func (c *Coordinator) Submit(ctx context.Context, gameID string, guess *geotagger.Coordinate, userID geotagger.UserID) geotagger.Attempt {
	if guess == nil {
		return geotagger.Attempt{GameID: gameID, Status: geotagger.AttemptIdle}
	}
	if msg := validate(gameID, *guess); msg != "" {
		return geotagger.Attempt{GameID: gameID, Status: geotagger.AttemptIdle, ErrorMessage: msg}
	}

	attempt := c.pending(gameID, *guess)
	logger := c.logger.With("attempt_id", attempt.ID, "game_id", gameID)
	logger.Debug("verifying guess", "guess", guess.String())

	res, err := c.scorer.CheckLocation(ctx, gameID, *guess, userID)
	finished := c.now()
	attempt.FinishedAt = &finished

	if err != nil {
		attempt.Status = geotagger.AttemptFailed
		attempt.ErrorMessage = backend.Message(err, FallbackMessage)
		logger.Warn("guess verification failed", "error", err)
		c.record(attempt, "")
		return attempt
	}

	tier := geotagger.ClassifyDistance(res.DistanceMeters)
	attempt.Status = geotagger.AttemptSucceeded
	attempt.Result = &geotagger.Result{
		DistanceMeters: res.DistanceMeters,
		PointsAwarded:  res.PointsAwarded,
		TotalPoints:    res.TotalPoints,
		Tier:           tier,
	}
	logger.Info("guess verified",
		"distance_m", res.DistanceMeters,
		"tier", string(tier),
	)

	if res.TotalPoints != nil && *res.TotalPoints >= 0 {
		c.applyTotal(ctx, logger, *res.TotalPoints)
	}

	c.record(attempt, tier)
	return attempt
}

// applyTotal stores the new balance and tells every surface about it. The
// bus is notified even for a signed-out profile so open surfaces still see
// the number the backend reported.
func (c *Coordinator) applyTotal(ctx context.Context, logger *slog.Logger, total int) {
	err := c.cache.UpdatePoints(ctx, total)
	switch {
	case errors.Is(err, session.ErrNoSession):
		logger.Debug("no cached session, balance not stored", "total_points", total)
	case err != nil:
		logger.Error("storing point balance failed", "error", err, "total_points", total)
	}
	c.bus.Publish(bus.TopicPointsUpdated, bus.Number(total))
}

func (c *Coordinator) record(a geotagger.Attempt, tier geotagger.Tier) {
	if c.recorder == nil || a.StartedAt == nil || a.FinishedAt == nil {
		return
	}
	c.recorder.AttemptFinished(a.Status, tier, a.FinishedAt.Sub(*a.StartedAt))
}

func validate(gameID string, guess geotagger.Coordinate) string {
	if gameID == "" {
		return "game id is required"
	}
	if err := guess.Validate(); err != nil {
		return err.Error()
	}
	return ""
}
