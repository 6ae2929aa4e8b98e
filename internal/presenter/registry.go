package presenter

import (
	"context"
	"fmt"
	"sync"

	"github.com/geotagger/client/internal/geotagger"
)

// GameLoader fetches a game by id.
type GameLoader interface {
	Game(ctx context.Context, id string) (geotagger.Game, error)
}

// Registry keeps one GameView per game so that every request for the same
// game shares its marker and pending state.
type Registry struct {
	loader   GameLoader
	verifier Verifier
	policy   ResubmitPolicy

	mu    sync.RWMutex
	views map[string]*GameView
}

func NewRegistry(loader GameLoader, verifier Verifier, policy ResubmitPolicy) *Registry {
	return &Registry{
		loader:   loader,
		verifier: verifier,
		policy:   policy,
		views:    make(map[string]*GameView),
	}
}

func (r *Registry) Get(ctx context.Context, id string) (*GameView, error) {
	r.mu.RLock()
	v, ok := r.views[id]
	r.mu.RUnlock()
	if ok {
		return v, nil
	}

	game, err := r.loader.Game(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading game %q: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another request may have loaded it meanwhile.
	if v, ok := r.views[id]; ok {
		return v, nil
	}
	v = NewGameView(game, r.verifier, r.policy)
	r.views[id] = v
	return v, nil
}

// Reset forgets every view, e.g. when the signed-in user changes.
func (r *Registry) Reset() {
	r.mu.Lock()
	clear(r.views)
	r.mu.Unlock()
}
