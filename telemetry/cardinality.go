package telemetry

import "sync"

// OverflowLabel replaces label values beyond a limit.
const OverflowLabel = "other"

// DefaultLabelLimits bounds the labels whose values come from caller code.
// Exception names are derived from error types and are not a closed set.
var DefaultLabelLimits = map[string]int{
	"tag":       100,
	"exception": 50,
}

// CardinalityLimiter caps the distinct values a label takes per metric.
// Values seen before the cap keep passing through; new ones become
// OverflowLabel.
type CardinalityLimiter struct {
	limits map[string]int
	mu     sync.Mutex
	seen   map[string]map[string]struct{}
}

// NewCardinalityLimiter creates a limiter. Labels missing from limits are
// not limited.
func NewCardinalityLimiter(limits map[string]int) *CardinalityLimiter {
	cp := make(map[string]int, len(limits))
	for k, v := range limits {
		cp[k] = v
	}
	return &CardinalityLimiter{
		limits: cp,
		seen:   make(map[string]map[string]struct{}),
	}
}

// CheckAndLimit returns value, or OverflowLabel once label of metric has
// reached its limit with other values.
func (c *CardinalityLimiter) CheckAndLimit(metric, label, value string) string {
	if c == nil {
		return value
	}
	limit, ok := c.limits[label]
	if !ok {
		return value
	}

	key := metric + "." + label
	c.mu.Lock()
	defer c.mu.Unlock()
	values, ok := c.seen[key]
	if !ok {
		values = make(map[string]struct{})
		c.seen[key] = values
	}
	if _, ok := values[value]; ok {
		return value
	}
	if len(values) >= limit {
		return OverflowLabel
	}
	values[value] = struct{}{}
	return value
}

// CurrentCardinality returns the number of distinct values tracked.
func (c *CardinalityLimiter) CurrentCardinality() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, values := range c.seen {
		total += len(values)
	}
	return total
}

// limit rewrites the values of "k", "v" label pairs in place.
func (c *CardinalityLimiter) limit(metric string, labels []string) []string {
	if c == nil || len(labels) < 2 {
		return labels
	}
	out := make([]string, len(labels))
	copy(out, labels)
	for i := 0; i+1 < len(out); i += 2 {
		out[i+1] = c.CheckAndLimit(metric, out[i], out[i+1])
	}
	return out
}
