package boundary

// MetricsCollector interface for boundary metrics
type MetricsCollector interface {
	RecordCaptured(tag string)
	RecordRethrown(tag string)
	RecordReported(tag, exception string)
	RecordDeduplicated(tag, exception string)
	RecordReportFailed(tag string)
}

// noopMetrics is a no-op metrics implementation
type noopMetrics struct{}

func (noopMetrics) RecordCaptured(string)             {}
func (noopMetrics) RecordRethrown(string)             {}
func (noopMetrics) RecordReported(string, string)     {}
func (noopMetrics) RecordDeduplicated(string, string) {}
func (noopMetrics) RecordReportFailed(string)         {}

// multiMetrics records on every collector.
type multiMetrics []MetricsCollector

// MultiMetricsCollector fans every record out to collectors.
func MultiMetricsCollector(collectors ...MetricsCollector) MetricsCollector {
	var out multiMetrics
	for _, c := range collectors {
		if c != nil {
			out = append(out, c)
		}
	}
	switch len(out) {
	case 0:
		return noopMetrics{}
	case 1:
		return out[0]
	}
	return out
}

func (m multiMetrics) RecordCaptured(tag string) {
	for _, c := range m {
		c.RecordCaptured(tag)
	}
}

func (m multiMetrics) RecordRethrown(tag string) {
	for _, c := range m {
		c.RecordRethrown(tag)
	}
}

func (m multiMetrics) RecordReported(tag, exception string) {
	for _, c := range m {
		c.RecordReported(tag, exception)
	}
}

func (m multiMetrics) RecordDeduplicated(tag, exception string) {
	for _, c := range m {
		c.RecordDeduplicated(tag, exception)
	}
}

func (m multiMetrics) RecordReportFailed(tag string) {
	for _, c := range m {
		c.RecordReportFailed(tag)
	}
}
