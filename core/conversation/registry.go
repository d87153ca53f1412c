package conversation

import (
	"sort"
	"sync"
	"time"
)

type pending struct {
	run  *Run
	step *Step
	// lastActivity is when the step was registered, i.e. when its prompt went out.
	lastActivity time.Time
}

type takeState int

const (
	takeFound takeState = iota
	takeMissing
	takeExpired
)

// Registry holds at most one pending step per session key.
type Registry struct {
	mu      sync.Mutex
	entries map[string]pending
	ttl     time.Duration
	now     func() time.Time
}

// NewRegistry creates an empty registry. A ttl <= 0 disables expiry.
func NewRegistry(ttl time.Duration, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		entries: make(map[string]pending),
		ttl:     ttl,
		now:     now,
	}
}

// put registers p for key and returns the entry it displaced, if any.
func (r *Registry) put(key string, p pending) (pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.entries[key]
	p.lastActivity = r.now()
	r.entries[key] = p
	return prev, ok
}

// take removes and returns the pending entry for key. An idle entry is
// still removed but reported as expired.
func (r *Registry) take(key string) (pending, takeState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.entries[key]
	if !ok {
		return pending{}, takeMissing
	}
	delete(r.entries, key)
	if r.idle(r.now(), p) {
		return p, takeExpired
	}
	return p, takeFound
}

// remove drops the entry for key regardless of its age.
func (r *Registry) remove(key string) (pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	return p, ok
}

func (r *Registry) peek(key string) (pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.entries[key]
	return p, ok
}

func (r *Registry) idle(now time.Time, p pending) bool {
	if r.ttl <= 0 || p.lastActivity.IsZero() {
		return false
	}
	return now.Sub(p.lastActivity) >= r.ttl
}

// sweep removes the entries idle at now and returns them. A zero now means
// the registry clock.
func (r *Registry) sweep(now time.Time) []pending {
	if r.ttl <= 0 {
		return nil
	}
	if now.IsZero() {
		now = r.now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []pending
	for key, p := range r.entries {
		if r.idle(now, p) {
			delete(r.entries, key)
			out = append(out, p)
		}
	}
	return out
}

// Pending returns the run and step waiting for the session's next message.
func (r *Registry) Pending(key string) (*Run, *Step, bool) {
	p, ok := r.peek(key)
	if !ok {
		return nil, nil, false
	}
	return p.run, p.step, true
}

// Len returns the number of sessions with a pending step.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sessions returns the sorted keys of sessions with a pending step.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
