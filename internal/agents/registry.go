// ABOUTME: The responder directory: registration, lookup, and specialized enumeration.
// ABOUTME: Read-mostly map behind a RWMutex; registration order is preserved.

package agents

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrDuplicateID is returned when a responder id is registered twice.
	ErrDuplicateID = errors.New("responder id already registered")

	// ErrNotFound is returned when a lookup misses.
	ErrNotFound = errors.New("responder not found")
)

// Registry is the responder directory. Registration happens during startup;
// lookups and enumeration happen on every request.
type Registry struct {
	mu          sync.RWMutex
	responders  map[string]Responder
	specialized []string // ids in registration order
	logger      *slog.Logger
}

// NewRegistry creates an empty directory.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		responders: make(map[string]Responder),
		logger:     logger.With("component", "registry"),
	}
}

// Register adds a responder under its descriptor id.
func (r *Registry) Register(resp Responder) error {
	desc := resp.Descriptor()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.responders[desc.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, desc.ID)
	}

	r.responders[desc.ID] = resp
	r.logger.Info("registered responder", "id", desc.ID)
	return nil
}

// RegisterSpecialized adds a responder and marks it as available to the
// coordinator's planner. The chat and supervisor responders are registered
// with plain Register; they are routing infrastructure, not plan targets.
func (r *Registry) RegisterSpecialized(resp Responder) error {
	if err := r.Register(resp); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.specialized = append(r.specialized, resp.Descriptor().ID)
	return nil
}

// Lookup returns the responder registered under id.
func (r *Registry) Lookup(id string) (Responder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resp, ok := r.responders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return resp, nil
}

// Specialized returns descriptors for the planner-visible responders in
// registration order. The order is stable so planner prompts are
// deterministic for a given startup sequence.
func (r *Registry) Specialized() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]Descriptor, 0, len(r.specialized))
	for _, id := range r.specialized {
		if resp, ok := r.responders[id]; ok {
			descs = append(descs, resp.Descriptor())
		}
	}
	return descs
}
