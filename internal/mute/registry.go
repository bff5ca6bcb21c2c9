package mute

import (
	"sync"
	"time"
)

// Registry tracks temporarily suppressed alert scopes (a sensor id or a
// category string) with expiry timestamps. Expired rules are pruned lazily
// during lookups; there is no background sweep.
type Registry struct {
	mu    sync.Mutex
	rules map[string]time.Time
	now   func() time.Time
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Mute suppresses scope for d, overwriting any existing rule for the same
// scope.
func (r *Registry) Mute(scope string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[scope] = r.now().Add(d)
}

// IsMuted reports whether an unexpired rule exists for scope. An expired
// rule found by the lookup is deleted as a side effect.
func (r *Registry) IsMuted(scope string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	expiry, ok := r.rules[scope]
	if !ok {
		return false
	}
	if !r.now().Before(expiry) {
		delete(r.rules, scope)
		return false
	}
	return true
}

// Active returns a copy of the unexpired rules keyed by scope, pruning
// expired ones along the way.
func (r *Registry) Active() map[string]time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	out := make(map[string]time.Time, len(r.rules))
	for scope, expiry := range r.rules {
		if now.Before(expiry) {
			out[scope] = expiry
		} else {
			delete(r.rules, scope)
		}
	}
	return out
}
