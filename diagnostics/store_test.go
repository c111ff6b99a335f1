package diagnostics

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/itsneelabh/sdkguard/internal/metrictest"
	"github.com/itsneelabh/sdkguard/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMarkUnconfiguredCategory(t *testing.T) {
	s := NewStore()

	h := s.Mark("error_boundary", "checkGate")
	assert.Nil(t, h)

	// A nil handle is inert.
	assert.False(t, h.Start(Fields{MarkerID: "checkGate_0"}))
	assert.NotPanics(t, func() { h.End(Fields{MarkerID: "checkGate_0"}) })
	assert.Equal(t, 0, s.MarkerCount("error_boundary"))
}

func TestZeroBudgetRefusesStart(t *testing.T) {
	s := NewStore()
	s.SetMaxMarkers("error_boundary", 0)

	h := s.Mark("error_boundary", "checkGate")
	require.NotNil(t, h)
	assert.False(t, h.Start(Fields{MarkerID: "checkGate_0"}))
	assert.Equal(t, 0, s.MarkerCount("error_boundary"))
	assert.Empty(t, s.Markers("error_boundary"))
}

func TestStartAndEnd(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	s := NewStore(WithClock(clock.Now))
	s.SetMaxMarkers("error_boundary", 30)

	h := s.Mark("error_boundary", "checkGate")
	require.NotNil(t, h)
	assert.Equal(t, "checkGate", h.Tag())

	require.True(t, h.Start(Fields{MarkerID: "checkGate_0", Attributes: map[string]any{"attempt": 1}}))
	assert.Equal(t, 1, s.MarkerCount("error_boundary"))

	clock.Advance(25 * time.Millisecond)
	h.End(Fields{MarkerID: "checkGate_0", Success: true})

	markers := s.Markers("error_boundary")
	require.Len(t, markers, 1)
	m := markers[0]
	assert.Equal(t, "error_boundary", m.Category)
	assert.Equal(t, "checkGate", m.Tag)
	assert.Equal(t, "checkGate_0", m.ID)
	assert.True(t, m.Closed)
	assert.True(t, m.Success)
	assert.Equal(t, 25*time.Millisecond, m.Duration())
	assert.Equal(t, 1, m.Attributes["attempt"])
}

func TestStartRejectsDuplicateAndEmptyID(t *testing.T) {
	s := NewStore()
	s.SetMaxMarkers("error_boundary", 30)
	h := s.Mark("error_boundary", "getConfig")

	assert.False(t, h.Start(Fields{}))
	require.True(t, h.Start(Fields{MarkerID: "getConfig_0"}))
	assert.False(t, h.Start(Fields{MarkerID: "getConfig_0"}), "open id")

	h.End(Fields{MarkerID: "getConfig_0", Success: false})
	assert.False(t, h.Start(Fields{MarkerID: "getConfig_0"}), "closed id")
	assert.Equal(t, 1, s.MarkerCount("error_boundary"))
}

func TestEndIgnoresUnknownAndClosedIDs(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	s := NewStore(WithClock(clock.Now))
	s.SetMaxMarkers("error_boundary", 30)
	h := s.Mark("error_boundary", "tag")

	h.End(Fields{MarkerID: "never_started"})
	assert.Empty(t, s.Markers("error_boundary"))

	require.True(t, h.Start(Fields{MarkerID: "tag_0"}))
	clock.Advance(time.Millisecond)
	h.End(Fields{MarkerID: "tag_0", Success: false})
	clock.Advance(time.Second)
	h.End(Fields{MarkerID: "tag_0", Success: true})

	markers := s.Markers("error_boundary")
	require.Len(t, markers, 1)
	assert.False(t, markers[0].Success, "second End must not overwrite")
	assert.Equal(t, time.Millisecond, markers[0].Duration())
}

func TestBudgetExhaustion(t *testing.T) {
	s := NewStore()
	s.SetMaxMarkers("error_boundary", 3)
	h := s.Mark("error_boundary", "x")

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("x_%d", s.MarkerCount("error_boundary"))
		require.True(t, h.Start(Fields{MarkerID: id}))
		h.End(Fields{MarkerID: id, Success: true})
	}
	assert.False(t, h.Start(Fields{MarkerID: "x_3"}))
	assert.Equal(t, 3, s.MarkerCount("error_boundary"))
	assert.Equal(t, 3, s.MaxMarkers("error_boundary"))
}

func TestCategoriesAreIndependent(t *testing.T) {
	s := NewStore()
	s.SetMaxMarkers("error_boundary", 1)
	s.SetMaxMarkers("initialize", 1)

	require.True(t, s.Mark("error_boundary", "a").Start(Fields{MarkerID: "a_0"}))
	require.True(t, s.Mark("initialize", "a").Start(Fields{MarkerID: "a_0"}))

	assert.Equal(t, 1, s.MarkerCount("error_boundary"))
	assert.Equal(t, 1, s.MarkerCount("initialize"))
	assert.Equal(t, 0, s.MarkerCount("unknown"))
	assert.Nil(t, s.Markers("unknown"))
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.SetMaxMarkers("error_boundary", 1)
	require.True(t, s.Mark("error_boundary", "a").Start(Fields{MarkerID: "a_0"}))

	s.Clear("error_boundary")
	assert.Equal(t, 0, s.MarkerCount("error_boundary"))
	assert.Empty(t, s.Markers("error_boundary"))
	assert.True(t, s.Mark("error_boundary", "a").Start(Fields{MarkerID: "a_0"}), "budget survives Clear")
}

func TestNegativeBudgetIsZero(t *testing.T) {
	s := NewStore()
	s.SetMaxMarkers("error_boundary", -5)
	assert.Equal(t, 0, s.MaxMarkers("error_boundary"))
	assert.NotNil(t, s.Mark("error_boundary", "a"))
}

func TestMarkersReturnsCopies(t *testing.T) {
	s := NewStore()
	s.SetMaxMarkers("c", 1)
	require.True(t, s.Mark("c", "a").Start(Fields{MarkerID: "a_0", Attributes: map[string]any{"k": "v"}}))

	markers := s.Markers("c")
	markers[0].Attributes["k"] = "changed"
	markers[0].Closed = true

	again := s.Markers("c")
	assert.Equal(t, "v", again[0].Attributes["k"])
	assert.False(t, again[0].Closed)
}

func TestConcurrentStarts(t *testing.T) {
	s := NewStore()
	s.SetMaxMarkers("error_boundary", 30)

	var wg sync.WaitGroup
	var mu sync.Mutex
	started := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := s.Mark("error_boundary", "op")
			if h.Start(Fields{MarkerID: fmt.Sprintf("op_%d", i)}) {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 30, started)
	assert.Equal(t, 30, s.MarkerCount("error_boundary"))
}

func TestMarkerMetrics(t *testing.T) {
	reader := metrictest.New(t)
	clock := &fakeClock{now: time.Unix(0, 0)}
	s := NewStore(WithClock(clock.Now), WithInstruments(telemetry.NewMetricInstruments(reader.Provider)))
	s.SetMaxMarkers("error_boundary", 30)

	h := s.Mark("error_boundary", "checkGate")
	require.True(t, h.Start(Fields{MarkerID: "checkGate_0"}))
	clock.Advance(5 * time.Millisecond)
	h.End(Fields{MarkerID: "checkGate_0", Success: true})

	require.True(t, h.Start(Fields{MarkerID: "checkGate_1"}))
	h.End(Fields{MarkerID: "checkGate_1", Success: false})

	assert.EqualValues(t, 2, reader.Counter(t, telemetry.MetricMarkers, "category", "error_boundary", "key", "checkGate"))
	assert.EqualValues(t, 1, reader.Counter(t, telemetry.MetricMarkers, "success", "true"))
	assert.EqualValues(t, 1, reader.Counter(t, telemetry.MetricMarkers, "success", "false"))
	assert.EqualValues(t, 2, reader.HistogramCount(t, telemetry.MetricMarkerDuration))
}

func TestSetInstrumentsAfterConstruction(t *testing.T) {
	reader := metrictest.New(t)
	s := NewStore()
	s.SetMaxMarkers("c", 1)
	s.SetInstruments(telemetry.NewMetricInstruments(reader.Provider))

	h := s.Mark("c", "a")
	require.True(t, h.Start(Fields{MarkerID: "a_0"}))
	h.End(Fields{MarkerID: "a_0", Success: true})

	assert.EqualValues(t, 1, reader.Counter(t, telemetry.MetricMarkers))
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
