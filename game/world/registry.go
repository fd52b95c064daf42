package world

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownMatch is returned when a match id does not resolve.
var ErrUnknownMatch = errors.New("world: unknown match")

// Registry tracks the running matches on this server. Each match is its own
// simulation; the registry only routes by id and drives their ticks.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*Match
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{matches: make(map[string]*Match), logger: logger}
}

// Add registers a match under its id.
func (r *Registry) Add(m *Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[m.ID()] = m
	r.logger.Info("match registered", zap.String("match_id", m.ID()))
}

// Get returns the match with the given id, or nil.
func (r *Registry) Get(id string) *Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matches[id]
}

// Remove closes the match and drops it from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	m := r.matches[id]
	delete(r.matches, id)
	r.mu.Unlock()
	if m != nil {
		m.Close()
		r.logger.Info("match removed", zap.String("match_id", id))
	}
}

// List returns a snapshot of all running matches.
func (r *Registry) List() []*Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Match, 0, len(r.matches))
	for _, m := range r.matches {
		out = append(out, m)
	}
	return out
}

// TickAll advances every registered match by one step.
func (r *Registry) TickAll(now time.Time, delta time.Duration) {
	for _, m := range r.List() {
		m.Tick(now, delta)
	}
}

// CloseAll shuts every match down.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	matches := r.matches
	r.matches = make(map[string]*Match)
	r.mu.Unlock()
	for _, m := range matches {
		m.Close()
	}
}
