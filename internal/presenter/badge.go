// Package presenter holds the state behind each display surface: the
// identity badge shown on every page and the detail view of one game.
package presenter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/geotagger/client/internal/backend"
	"github.com/geotagger/client/internal/bus"
	"github.com/geotagger/client/internal/geotagger"
)

// BalanceSource answers with the authoritative point balance of a user.
type BalanceSource interface {
	Points(ctx context.Context, userID geotagger.UserID) (int, error)
}

type SessionReader interface {
	Read(ctx context.Context) (geotagger.SessionRecord, bool)
}

type Subscriber interface {
	Subscribe(topic bus.Topic, h bus.Handler) (unsubscribe func())
}

// BadgeView is what the badge renders.
type BadgeView struct {
	SignedIn bool   `json:"signedIn"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username"`
	Initials string `json:"initials"`
	Points   int    `json:"points"`
}

const (
	guestName     = "Guest"
	guestInitials = "U"
)

// Badge shows who is signed in and their point balance. It starts from the
// cached session, reconciles with the backend and then follows point
// notifications until unmounted.
type Badge struct {
	cache    SessionReader
	balances BalanceSource
	bus      Subscriber
	logger   *slog.Logger
	retryFor time.Duration

	mu          sync.Mutex
	record      *geotagger.SessionRecord
	points      int
	version     uint64
	unsubscribe func()
	listeners   []func(BadgeView)
}

// NewBadge builds an unmounted badge. retryFor bounds how long Mount keeps
// retrying the authoritative read; zero means a single try.
func NewBadge(cache SessionReader, balances BalanceSource, b Subscriber, logger *slog.Logger, retryFor time.Duration) *Badge {
	return &Badge{
		cache:    cache,
		balances: balances,
		bus:      b,
		logger:   logger,
		retryFor: retryFor,
	}
}

// Mount shows the cached balance right away, starts following point
// notifications and then asks the backend for the authoritative value.
func (b *Badge) Mount(ctx context.Context) {
	b.mu.Lock()
	if b.unsubscribe == nil {
		b.unsubscribe = b.bus.Subscribe(bus.TopicPointsUpdated, b.onPoints)
	}
	b.mu.Unlock()

	b.Reload(ctx)
}

// Reload re-reads the cached identity, e.g. after sign-in or sign-out, and
// reconciles it with the backend.
func (b *Badge) Reload(ctx context.Context) {
	rec, ok := b.cache.Read(ctx)

	b.mu.Lock()
	b.version++
	if ok {
		b.record = &rec
		b.points = rec.PointBalance
	} else {
		b.record = nil
		b.points = 0
	}
	b.mu.Unlock()
	b.changed()

	if ok {
		b.reconcile(ctx, rec.Identity)
	}
}

// Unmount stops following notifications. Safe to call more than once.
func (b *Badge) Unmount() {
	b.mu.Lock()
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// OnChange registers fn to be called with the new view after every change.
func (b *Badge) OnChange(fn func(BadgeView)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

func (b *Badge) View() BadgeView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked()
}

func (b *Badge) viewLocked() BadgeView {
	if b.record == nil {
		return BadgeView{Username: guestName, Initials: guestInitials, Points: b.points}
	}
	name := username(*b.record)
	return BadgeView{
		SignedIn: true,
		UserID:   string(b.record.Identity),
		Username: name,
		Initials: geotagger.Initials(name),
		Points:   b.points,
	}
}

func username(rec geotagger.SessionRecord) string {
	if rec.Email != "" {
		local, _, _ := strings.Cut(rec.Email, "@")
		return local
	}
	return string(rec.Identity)
}

func (b *Badge) onPoints(p bus.Payload) {
	var total int
	switch v := p.(type) {
	case bus.Number:
		total = int(v)
	case bus.Balance:
		total = v.TotalPoints
	default:
		return
	}
	if total < 0 {
		return
	}

	b.mu.Lock()
	b.version++
	b.points = total
	b.mu.Unlock()
	b.changed()
}

// reconcile overwrites the displayed balance with the backend's, unless a
// newer value arrived while the request was in flight.
func (b *Badge) reconcile(ctx context.Context, id geotagger.UserID) {
	b.mu.Lock()
	seen := b.version
	b.mu.Unlock()

	points, err := b.fetch(ctx, id)
	if err != nil {
		b.logger.Warn("fetching authoritative balance failed", "user_id", string(id), "error", err)
		return
	}

	b.mu.Lock()
	if b.version != seen || b.record == nil || b.record.Identity != id {
		b.mu.Unlock()
		b.logger.Debug("discarding stale authoritative balance", "user_id", string(id), "points", points)
		return
	}
	b.points = points
	b.mu.Unlock()
	b.changed()
}

func (b *Badge) fetch(ctx context.Context, id geotagger.UserID) (int, error) {
	if b.retryFor <= 0 {
		return b.balances.Points(ctx, id)
	}

	op := func() (int, error) {
		n, err := b.balances.Points(ctx, id)
		if err == nil {
			return n, nil
		}
		var apiErr *backend.APIError
		if errors.Is(err, backend.ErrMalformedResponse) || (errors.As(err, &apiErr) && apiErr.Status < 500) {
			return 0, backoff.Permanent(err)
		}
		return 0, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = b.retryFor
	return backoff.RetryWithData(op, backoff.WithContext(bo, ctx))
}

func (b *Badge) changed() {
	b.mu.Lock()
	view := b.viewLocked()
	listeners := append([]func(BadgeView){}, b.listeners...)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}
