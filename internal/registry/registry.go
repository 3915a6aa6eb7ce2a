// Package registry tracks exclusive ownership of sales days so no two
// workers ever process the same day concurrently and no day is reprocessed
// within the process lifetime.
package registry

import (
	"sync"

	"github.com/hvnguyen/popmart-registrar/internal/registration"
)

// Registry is the in-memory day-state set. All read-modify-write access goes
// through one mutex; Claim in particular must be a single atomic step, not a
// check-then-act sequence.
type Registry struct {
	mu          sync.Mutex
	states      map[string]registration.DayState
	retryFailed bool
}

// New constructs a Registry. When retryFailed is set, a day released as
// failed returns to the pending pool instead of being sealed; the default
// (false) never retries an attempted day, trading transient-failure recovery
// for a guarantee against duplicate registrations.
func New(retryFailed bool) *Registry {
	return &Registry{
		states:      make(map[string]registration.DayState),
		retryFailed: retryFailed,
	}
}

// Claim atomically filters out labels that are already active or completed,
// marks the rest active, and returns them in input order. Concurrent callers
// never receive the same label.
func (r *Registry) Claim(labels []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []string
	for _, label := range labels {
		switch r.states[label] {
		case registration.DayActive, registration.DayCompleted:
			continue
		}
		r.states[label] = registration.DayActive
		claimed = append(claimed, label)
	}
	return claimed
}

// Release marks a day's run as finished. Failed days go back to pending only
// under the retry-on-failure policy; otherwise every attempted day ends
// completed, success or not.
func (r *Registry) Release(label string, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if failed && r.retryFailed {
		r.states[label] = registration.DayPending
		return
	}
	r.states[label] = registration.DayCompleted
}

// States returns a snapshot of every known label's state.
func (r *Registry) States() map[string]registration.DayState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]registration.DayState, len(r.states))
	for label, state := range r.states {
		out[label] = state
	}
	return out
}

// State reports the current state of a label. Unknown labels are pending.
func (r *Registry) State(label string) registration.DayState {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[label]
	if !ok {
		return registration.DayPending
	}
	return state
}
