package model

import (
	"sync"
	"time"
)

// EndpointHealth tracks the health status of a model endpoint.
type EndpointHealth struct {
	Available       bool      `json:"available"`
	LastSuccess     time.Time `json:"last_success,omitempty"`
	LastFailure     time.Time `json:"last_failure,omitempty"`
	FailureCount    int       `json:"failure_count"`
	CircuitOpen     bool      `json:"circuit_open"`
	CircuitOpenedAt time.Time `json:"circuit_opened_at,omitempty"`
}

// HealthConfig configures the circuit breaker.
type HealthConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit rejects requests before a
	// half-open probe is allowed.
	RecoveryTimeout time.Duration
}

// DefaultHealthConfig returns the breaker settings used when none are set.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

type healthState struct {
	mu       sync.RWMutex
	config   HealthConfig
	statuses map[string]*EndpointHealth
}

func newHealthState(cfg HealthConfig) *healthState {
	return &healthState{
		config:   cfg,
		statuses: make(map[string]*EndpointHealth),
	}
}

// tracker returns the health state, creating it on first use.
func (r *Registry) tracker() *healthState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.health == nil {
		r.health = newHealthState(DefaultHealthConfig())
	}
	return r.health
}

// peek returns the health state without creating it.
func (r *Registry) peek() *healthState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.health
}

func (h *healthState) status(name string) *EndpointHealth {
	s, ok := h.statuses[name]
	if !ok {
		s = &EndpointHealth{Available: true}
		h.statuses[name] = s
	}
	return s
}

// MarkEndpointSuccess records a successful request and closes the circuit.
func (r *Registry) MarkEndpointSuccess(name string) {
	h := r.tracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.status(name)
	s.LastSuccess = time.Now()
	s.FailureCount = 0
	s.Available = true
	s.CircuitOpen = false
}

// MarkEndpointFailure records a failed request, opening the circuit once
// the failure threshold is reached.
func (r *Registry) MarkEndpointFailure(name string) {
	h := r.tracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.status(name)
	s.LastFailure = time.Now()
	s.FailureCount++
	if s.FailureCount >= h.config.FailureThreshold {
		s.CircuitOpen = true
		s.CircuitOpenedAt = time.Now()
		s.Available = false
	}
}

// IsEndpointAvailable reports false while the circuit is open and the
// recovery timeout has not passed.
func (r *Registry) IsEndpointAvailable(name string) bool {
	h := r.peek()
	if h == nil {
		return true
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.statuses[name]
	if !ok || !s.CircuitOpen {
		return true
	}
	return time.Since(s.CircuitOpenedAt) > h.config.RecoveryTimeout
}

// GetEndpointHealth returns a copy of the health status for an endpoint,
// or nil if no request has been recorded.
func (r *Registry) GetEndpointHealth(name string) *EndpointHealth {
	h := r.peek()
	if h == nil {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.statuses[name]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// GetAvailableFallbackChain returns the fallback chain filtered to available
// endpoints. When every endpoint is unavailable the full chain is returned.
func (r *Registry) GetAvailableFallbackChain(c Capability) []string {
	chain := r.GetFallbackChain(c)
	available := make([]string, 0, len(chain))
	for _, name := range chain {
		if r.IsEndpointAvailable(name) {
			available = append(available, name)
		}
	}
	if len(available) == 0 {
		return chain
	}
	return available
}

// SetHealthConfig updates the circuit breaker configuration.
func (r *Registry) SetHealthConfig(cfg HealthConfig) {
	h := r.tracker()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.config = cfg
}

// ResetEndpointHealth clears the health status for an endpoint.
func (r *Registry) ResetEndpointHealth(name string) {
	h := r.peek()
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.statuses, name)
}
