package reporter

import (
	"testing"
	"time"

	"github.com/itsneelabh/sdkguard/core"
	"github.com/itsneelabh/sdkguard/internal/metrictest"
	"github.com/itsneelabh/sdkguard/telemetry"
	"github.com/stretchr/testify/assert"
)

func newTestBreaker(maxFailures int, recovery time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Unix(1700000000, 0)
	cb := NewCircuitBreaker(CircuitConfig{MaxFailures: maxFailures, RecoveryTime: recovery}, nil)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitConfig{}, nil)
	assert.Equal(t, 5, cb.config.MaxFailures)
	assert.Equal(t, time.Minute, cb.config.RecoveryTime)
	assert.Equal(t, 1, cb.config.HalfOpenMax)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State(), "failures must be consecutive")
}

func TestCircuitBreakerHalfOpen(t *testing.T) {
	cb, now := newTestBreaker(1, time.Minute)

	cb.RecordFailure()
	assert.False(t, cb.Allow())

	*now = now.Add(61 * time.Second)
	assert.True(t, cb.Allow(), "first probe after recovery time")
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.False(t, cb.Allow(), "only one probe in flight")

	t.Run("failed probe reopens", func(t *testing.T) {
		cb.RecordFailure()
		assert.Equal(t, StateOpen, cb.State())
		assert.False(t, cb.Allow())
	})

	t.Run("successful probe closes", func(t *testing.T) {
		*now = now.Add(2 * time.Minute)
		assert.True(t, cb.Allow())
		cb.RecordSuccess()
		assert.Equal(t, StateClosed, cb.State())
		assert.True(t, cb.Allow())
	})
}

func TestCircuitBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour)
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestNilCircuitBreaker(t *testing.T) {
	var cb *CircuitBreaker
	assert.True(t, cb.Allow())
	assert.Equal(t, StateDisabled, cb.State())
	assert.NotPanics(t, func() {
		cb.RecordFailure()
		cb.RecordSuccess()
		cb.Reset()
		cb.SetInstruments(nil)
	})
}

func TestNewCircuitBreakerFromConfig(t *testing.T) {
	assert.Nil(t, NewCircuitBreakerFromConfig(core.CircuitBreakerConfig{Enabled: false}, nil))

	cb := NewCircuitBreakerFromConfig(core.CircuitBreakerConfig{Enabled: true, MaxFailures: 9, RecoveryTime: time.Second}, nil)
	assert.Equal(t, 9, cb.config.MaxFailures)
	assert.Equal(t, time.Second, cb.config.RecoveryTime)
}

func TestCircuitBreakerMetrics(t *testing.T) {
	reader := metrictest.New(t)
	cb, _ := newTestBreaker(1, time.Hour)
	cb.SetInstruments(telemetry.NewMetricInstruments(reader.Provider))

	cb.RecordFailure()
	cb.Allow()
	cb.Allow()

	assert.EqualValues(t, 1, reader.Counter(t, telemetry.MetricCircuitStateChange, "from", "closed", "to", "open"))
	assert.EqualValues(t, 2, reader.Counter(t, telemetry.MetricCircuitRejected))
}
