// Package session holds the locally cached identity and point balance of the
// current profile.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/geotagger/client/internal/geotagger"
	"github.com/geotagger/client/internal/storage"
)

// Key is the storage slot holding the serialized session record.
const Key = "user"

var ErrNoSession = errors.New("no cached session")

// Cache is the single source of truth for "who is signed in on this profile
// and how many points they had last time we looked".
type Cache struct {
	store  storage.Store
	logger *slog.Logger

	// mu serializes writers so readers never observe a half-applied update.
	mu sync.RWMutex
}

func NewCache(store storage.Store, logger *slog.Logger) *Cache {
	return &Cache{store: store, logger: logger}
}

// Read returns the stored record. Missing, unreadable or malformed data all
// read as absent.
func (c *Cache) Read(ctx context.Context) (geotagger.SessionRecord, bool) {
	c.mu.RLock()
	raw, err := c.store.Get(ctx, Key)
	c.mu.RUnlock()
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("reading session failed", "error", err)
		}
		return geotagger.SessionRecord{}, false
	}

	rec, err := decode(raw)
	if err != nil {
		c.logger.Debug("ignoring malformed session", "error", err)
		return geotagger.SessionRecord{}, false
	}
	return rec, true
}

// Write replaces the stored record as a whole.
func (c *Cache) Write(ctx context.Context, rec geotagger.SessionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Set(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Remove(ctx, Key); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// UpdatePoints overwrites only the points field of the stored record. Every
// other stored field, including ones this version does not know about, is
// carried over unchanged.
func (c *Cache) UpdatePoints(ctx context.Context, total int) error {
	if total < 0 {
		return geotagger.ErrNegativeBalance
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.store.Get(ctx, Key)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNoSession
	}
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}
	if _, err := decode(raw); err != nil {
		return ErrNoSession
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return ErrNoSession
	}
	points, _ := json.Marshal(total)
	fields["points"] = points

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := c.store.Set(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

func decode(raw string) (geotagger.SessionRecord, error) {
	if raw == "" {
		return geotagger.SessionRecord{}, errors.New("empty session")
	}
	if !utf8.ValidString(raw) {
		return geotagger.SessionRecord{}, errors.New("session is not valid utf-8")
	}

	var wire struct {
		ID     geotagger.UserID `json:"id"`
		Email  string           `json:"email"`
		Points *json.Number     `json:"points"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return geotagger.SessionRecord{}, err
	}

	rec := geotagger.SessionRecord{Identity: wire.ID, Email: wire.Email}
	if wire.Points != nil {
		n, err := wire.Points.Int64()
		if err != nil {
			return geotagger.SessionRecord{}, fmt.Errorf("points: %w", err)
		}
		rec.PointBalance = int(n)
	}
	if err := rec.Validate(); err != nil {
		return geotagger.SessionRecord{}, err
	}
	return rec, nil
}
