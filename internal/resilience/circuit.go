package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/orbitalhq/orbital/internal/apperrors"
)

// CircuitState is one of the three states a CircuitBreaker can be in.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreakerConfig configures a single breaker's thresholds.
type CircuitBreakerConfig struct {
	// FailureThreshold is the failure count within the closed state that
	// trips the breaker open.
	FailureThreshold int
	// RecoveryTimeout is how long the breaker stays open before allowing a
	// half-open probe.
	RecoveryTimeout time.Duration
	// HalfOpenMaxCalls is the number of concurrent probe calls admitted
	// while half-open.
	HalfOpenMaxCalls int
	// OnStateChange, if set, is invoked (asynchronously) on every
	// transition.
	OnStateChange func(dependency string, from, to CircuitState)
}

func normalizeBreakerConfig(cfg CircuitBreakerConfig) CircuitBreakerConfig {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	return cfg
}

// CircuitBreaker implements a three-state machine: closed (count
// failures), open (fail fast until RecoveryTimeout elapses), half_open (admit
// up to HalfOpenMaxCalls probes; all must succeed to close, any failure
// reopens).
type CircuitBreaker struct {
	dependency string
	config     CircuitBreakerConfig

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	openedAt        time.Time
	halfOpenInUse   int
	halfOpenSuccess int
}

// NewCircuitBreaker constructs a breaker in the closed state.
func NewCircuitBreaker(dependency string, cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		dependency: dependency,
		config:     normalizeBreakerConfig(cfg),
		state:      CircuitClosed,
	}
}

// admit decides whether a call may proceed and, if so, marks a half-open
// probe slot as in use. Returns apperrors.CircuitOpenError if the call must
// fail fast.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return false, nil

	case CircuitOpen:
		if time.Since(cb.openedAt) >= cb.config.RecoveryTimeout {
			cb.transitionLocked(CircuitHalfOpen)
			cb.halfOpenInUse = 1
			return true, nil
		}
		return false, &apperrors.CircuitOpenError{Dependency: cb.dependency}

	case CircuitHalfOpen:
		if cb.halfOpenInUse >= cb.config.HalfOpenMaxCalls {
			return false, &apperrors.CircuitOpenError{Dependency: cb.dependency}
		}
		cb.halfOpenInUse++
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) release(probe bool, callErr error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.halfOpenInUse--
	}

	switch cb.state {
	case CircuitClosed:
		if callErr != nil {
			cb.failureCount++
			if cb.failureCount >= cb.config.FailureThreshold {
				cb.transitionLocked(CircuitOpen)
			}
		} else {
			cb.failureCount = 0
		}

	case CircuitHalfOpen:
		if callErr != nil {
			cb.transitionLocked(CircuitOpen)
			return
		}
		cb.halfOpenSuccess++
		if cb.halfOpenInUse == 0 && cb.halfOpenSuccess >= cb.config.HalfOpenMaxCalls {
			cb.transitionLocked(CircuitClosed)
		}
	}
}

// transitionLocked must be called with cb.mu held.
func (cb *CircuitBreaker) transitionLocked(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.failureCount = 0
	cb.halfOpenSuccess = 0
	if to == CircuitOpen {
		cb.openedAt = time.Now()
		cb.halfOpenInUse = 0
	}
	if cb.config.OnStateChange != nil && from != to {
		go cb.config.OnStateChange(cb.dependency, from, to)
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs fn under breaker protection, failing fast with
// apperrors.CircuitOpenError when the breaker denies the call.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	callErr := fn(ctx)
	cb.release(probe, callErr)
	return callErr
}

// Reset forces the breaker back to closed, clearing counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(CircuitClosed)
}

// Registry is the process-wide, dependency-keyed breaker registry.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	defaults CircuitBreakerConfig
}

// NewRegistry creates a registry that lazily creates breakers with the given
// default config.
func NewRegistry(defaults CircuitBreakerConfig) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		defaults: normalizeBreakerConfig(defaults),
	}
}

// GetOrCreate returns the breaker for key, creating it with the registry's
// default config if it doesn't exist yet.
func (r *Registry) GetOrCreate(key string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[key]; ok {
		return cb
	}
	cb = NewCircuitBreaker(key, r.defaults)
	r.breakers[key] = cb
	return cb
}

// GetOrCreateWithConfig is like GetOrCreate but allows a per-key override of
// the default config on first creation.
func (r *Registry) GetOrCreateWithConfig(key string, cfg CircuitBreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[key]; ok {
		return cb
	}
	cb := NewCircuitBreaker(key, cfg)
	r.breakers[key] = cb
	return cb
}

// OpenKeys returns the dependency keys whose breaker is currently open.
func (r *Registry) OpenKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var open []string
	for key, cb := range r.breakers {
		if cb.State() == CircuitOpen {
			open = append(open, key)
		}
	}
	return open
}
