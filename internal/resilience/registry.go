package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Health describes the observed state of one upstream.
type Health struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Healthy reports whether the upstream's circuit is closed.
func (h *Health) Healthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// Registry tracks the clients for each upstream and their last outcomes.
type Registry struct {
	mu        sync.RWMutex
	upstreams map[string]*upstream
}

type upstream struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{upstreams: make(map[string]*upstream)}
}

// Register adds a client under the given upstream name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upstreams[name] = &upstream{client: client}
}

// RecordSuccess notes a successful call to the named upstream.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.upstreams[name]; ok {
		now := time.Now()
		u.lastSuccessAt = &now
	}
}

// RecordFailure notes a failed call to the named upstream.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.upstreams[name]; ok {
		now := time.Now()
		u.lastFailureAt = &now
		if err != nil {
			u.lastError = err.Error()
		}
	}
}

// GetHealth returns the health of one upstream, or nil if unregistered.
func (r *Registry) GetHealth(name string) *Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.upstreams[name]
	if !ok {
		return nil
	}
	return &Health{
		Name:          name,
		CircuitState:  u.client.BreakerState(),
		Counts:        u.client.BreakerCounts(),
		LastSuccessAt: u.lastSuccessAt,
		LastFailureAt: u.lastFailureAt,
		LastError:     u.lastError,
	}
}

// AllHealth returns the health of every registered upstream.
func (r *Registry) AllHealth() []*Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*Health, 0, len(r.upstreams))
	for name, u := range r.upstreams {
		health = append(health, &Health{
			Name:          name,
			CircuitState:  u.client.BreakerState(),
			Counts:        u.client.BreakerCounts(),
			LastSuccessAt: u.lastSuccessAt,
			LastFailureAt: u.lastFailureAt,
			LastError:     u.lastError,
		})
	}
	return health
}
