package reporter

import (
	"context"
	"sync"
	"time"

	"github.com/itsneelabh/sdkguard/core"
	"github.com/itsneelabh/sdkguard/telemetry"
)

// Circuit breaker states.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
	StateDisabled = "disabled"
)

// CircuitConfig configures the report circuit breaker.
type CircuitConfig struct {
	MaxFailures  int
	RecoveryTime time.Duration
	HalfOpenMax  int // Max probe requests in half-open state
}

// CircuitBreaker stops report delivery to an unhealthy endpoint.
// After MaxFailures consecutive failures the circuit opens and Allow returns
// false until RecoveryTime has passed; then up to HalfOpenMax probes decide
// whether it closes again. A nil *CircuitBreaker allows everything.
type CircuitBreaker struct {
	config CircuitConfig

	mu              sync.Mutex
	state           string
	failures        int
	probes          int
	lastFailureTime time.Time

	now         func() time.Time
	logger      core.Logger
	instruments *telemetry.MetricInstruments
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config CircuitConfig, logger core.Logger) *CircuitBreaker {
	// Set defaults
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.RecoveryTime <= 0 {
		config.RecoveryTime = time.Minute
	}
	if config.HalfOpenMax <= 0 {
		config.HalfOpenMax = 1
	}
	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
		logger: core.ComponentLogger(logger, "sdkguard/reporter"),
	}
}

// NewCircuitBreakerFromConfig returns nil when the breaker is disabled.
func NewCircuitBreakerFromConfig(cfg core.CircuitBreakerConfig, logger core.Logger) *CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	return NewCircuitBreaker(CircuitConfig{
		MaxFailures:  cfg.MaxFailures,
		RecoveryTime: cfg.RecoveryTime,
	}, logger)
}

// Allow checks if a request should be allowed
func (cb *CircuitBreaker) Allow() bool {
	if cb == nil {
		return true
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.config.RecoveryTime {
			cb.countRejected()
			return false
		}
		cb.transition(StateHalfOpen)
		cb.probes = 1
		return true

	case StateHalfOpen:
		if cb.probes >= cb.config.HalfOpenMax {
			cb.countRejected()
			return false
		}
		cb.probes++
		return true

	default:
		return true
	}
}

// RecordSuccess closes a half-open circuit and resets the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
		cb.logger.Info("Circuit breaker CLOSED - report delivery resumed", map[string]interface{}{
			"recovery_duration": cb.now().Sub(cb.lastFailureTime).String(),
		})
	}
}

// RecordFailure counts a failed delivery. A failed probe reopens the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = cb.now()

	if cb.state == StateHalfOpen || (cb.state == StateClosed && cb.failures >= cb.config.MaxFailures) {
		previous := cb.state
		cb.transition(StateOpen)
		cb.logger.Warn("Circuit breaker OPENED - exception reports will be dropped", map[string]interface{}{
			"previous_state": previous,
			"failure_count":  cb.failures,
			"max_failures":   cb.config.MaxFailures,
			"recovery_time":  cb.config.RecoveryTime.String(),
		})
	}
}

// State returns the current circuit breaker state
func (cb *CircuitBreaker) State() string {
	if cb == nil {
		return StateDisabled
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit and clears all counters.
func (cb *CircuitBreaker) Reset() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	cb.lastFailureTime = time.Time{}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to string) {
	from := cb.state
	cb.state = to
	if to != StateHalfOpen {
		cb.probes = 0
	}
	if cb.instruments != nil {
		cb.instruments.Count(context.Background(), telemetry.MetricCircuitStateChange, "from", from, "to", to)
	}
}

func (cb *CircuitBreaker) countRejected() {
	if cb.instruments != nil {
		cb.instruments.Count(context.Background(), telemetry.MetricCircuitRejected)
	}
}

// SetInstruments records state changes and rejections on m.
func (cb *CircuitBreaker) SetInstruments(m *telemetry.MetricInstruments) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	cb.instruments = m
	cb.mu.Unlock()
}
