// Package diagnostics records sampled begin/end markers for SDK operations.
//
// A Store holds markers per category. A category only records markers after
// SetMaxMarkers gave it a budget; with a zero budget every Start is refused,
// which makes instrumentation free for unsampled processes.
package diagnostics

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/itsneelabh/sdkguard/core"
	"github.com/itsneelabh/sdkguard/telemetry"
)

// Fields carries the data attached to a Start or End call.
type Fields struct {
	// MarkerID identifies the marker. Required.
	MarkerID string
	// Success is only read by End.
	Success bool
	// Attributes are copied onto the marker.
	Attributes map[string]any
}

// Marker is one begin/end record.
type Marker struct {
	Category   string
	Tag        string
	ID         string
	StartedAt  time.Time
	EndedAt    time.Time
	Closed     bool
	Success    bool
	Attributes map[string]any
}

// Duration is the time between start and end, zero while the marker is open.
func (m Marker) Duration() time.Duration {
	if !m.Closed {
		return 0
	}
	return m.EndedAt.Sub(m.StartedAt)
}

type category struct {
	max     int
	started int
	order   []*Marker
	byID    map[string]*Marker
}

// Store is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	categories  map[string]*category
	now         func() time.Time
	instruments *telemetry.MetricInstruments
	logger      core.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithInstruments records marker counts and durations.
func WithInstruments(m *telemetry.MetricInstruments) Option {
	return func(s *Store) { s.instruments = m }
}

// WithLogger sets the store logger.
func WithLogger(logger core.Logger) Option {
	return func(s *Store) { s.logger = core.ComponentLogger(logger, "sdkguard/diagnostics") }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		categories: make(map[string]*category),
		now:        time.Now,
		logger:     &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	defaultStore     *Store
	defaultStoreOnce sync.Once
)

// Default returns the process-wide store shared by every boundary that is not
// given its own.
func Default() *Store {
	defaultStoreOnce.Do(func() {
		defaultStore = NewStore()
	})
	return defaultStore
}

// SetInstruments attaches metric instruments after construction.
func (s *Store) SetInstruments(m *telemetry.MetricInstruments) {
	s.mu.Lock()
	s.instruments = m
	s.mu.Unlock()
}

// SetMaxMarkers sets how many markers category may start. Markers already
// recorded are kept.
func (s *Store) SetMaxMarkers(name string, n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.category(name).max = n
}

// MaxMarkers returns the budget of category.
func (s *Store) MaxMarkers(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.categories[name]; ok {
		return c.max
	}
	return 0
}

func (s *Store) category(name string) *category {
	c, ok := s.categories[name]
	if !ok {
		c = &category{byID: make(map[string]*Marker)}
		s.categories[name] = c
	}
	return c
}

// Mark returns a handle for tag in category, or nil when category was never
// configured with SetMaxMarkers.
func (s *Store) Mark(name, tag string) *MarkHandle {
	s.mu.Lock()
	_, ok := s.categories[name]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return &MarkHandle{store: s, category: name, tag: tag}
}

// MarkerCount returns how many markers category has started.
func (s *Store) MarkerCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.categories[name]; ok {
		return c.started
	}
	return 0
}

// Markers returns a copy of the markers of category in start order.
func (s *Store) Markers(name string) []Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[name]
	if !ok {
		return nil
	}
	out := make([]Marker, 0, len(c.order))
	for _, m := range c.order {
		cp := *m
		cp.Attributes = copyAttributes(m.Attributes)
		out = append(out, cp)
	}
	return out
}

// Clear drops the markers of category and resets its count. The budget stays.
func (s *Store) Clear(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.categories[name]; ok {
		c.started = 0
		c.order = nil
		c.byID = make(map[string]*Marker)
	}
}

func (s *Store) start(name, tag string, fields Fields) bool {
	if fields.MarkerID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.category(name)
	if c.started >= c.max {
		if c.max > 0 {
			s.logger.Debug("Marker budget exhausted", map[string]interface{}{
				"category": name,
				"max":      c.max,
			})
		}
		return false
	}
	if _, exists := c.byID[fields.MarkerID]; exists {
		return false
	}

	m := &Marker{
		Category:   name,
		Tag:        tag,
		ID:         fields.MarkerID,
		StartedAt:  s.now(),
		Attributes: copyAttributes(fields.Attributes),
	}
	c.byID[m.ID] = m
	c.order = append(c.order, m)
	c.started++
	return true
}

func (s *Store) end(name, tag string, fields Fields) {
	s.mu.Lock()
	c, ok := s.categories[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	m, ok := c.byID[fields.MarkerID]
	if !ok || m.Closed {
		s.mu.Unlock()
		return
	}
	m.EndedAt = s.now()
	m.Closed = true
	m.Success = fields.Success
	for k, v := range fields.Attributes {
		if m.Attributes == nil {
			m.Attributes = make(map[string]any, len(fields.Attributes))
		}
		m.Attributes[k] = v
	}
	elapsed := m.Duration()
	instruments := s.instruments
	s.mu.Unlock()

	if instruments != nil {
		labels := []string{"category", name, "key", tag, "success", strconv.FormatBool(fields.Success)}
		ctx := context.Background()
		instruments.Count(ctx, telemetry.MetricMarkers, labels...)
		instruments.Duration(ctx, telemetry.MetricMarkerDuration, float64(elapsed)/float64(time.Millisecond), labels...)
	}
}

func copyAttributes(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
