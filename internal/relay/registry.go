package relay

import "sync"

// Registry is the live set of push channels, keyed by channel identity.
type Registry struct {
	mu       sync.RWMutex
	members  map[Channel]struct{}
	onChange func(size int)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{members: make(map[Channel]struct{})}
}

// OnChange installs a hook called with the new size after every membership change.
func (r *Registry) OnChange(fn func(size int)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Register adds ch. Registering the same channel twice has no extra effect.
func (r *Registry) Register(ch Channel) {
	if ch == nil {
		return
	}
	r.mu.Lock()
	if _, ok := r.members[ch]; ok {
		r.mu.Unlock()
		return
	}
	r.members[ch] = struct{}{}
	size, hook := len(r.members), r.onChange
	r.mu.Unlock()

	if hook != nil {
		hook(size)
	}
}

// Unregister removes ch and reports whether it was present.
func (r *Registry) Unregister(ch Channel) bool {
	if ch == nil {
		return false
	}
	r.mu.Lock()
	if _, ok := r.members[ch]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.members, ch)
	size, hook := len(r.members), r.onChange
	r.mu.Unlock()

	if hook != nil {
		hook(size)
	}
	return true
}

// Size returns the number of registered channels.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Snapshot returns a copy of the membership in no particular order.
func (r *Registry) Snapshot() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Channel, 0, len(r.members))
	for ch := range r.members {
		out = append(out, ch)
	}
	return out
}
