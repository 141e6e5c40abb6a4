package reconcile

import "time"

// Metrics receives engine measurements. The prometheus collector in
// infrastructure/observability implements it.
type Metrics interface {
	RecordOperation(kind, status string)
	RecordBatch(source string, silent bool, duration time.Duration)
	RecordParseFailure()
	SetHighlightActive(n int)
}

type nopMetrics struct{}

func (nopMetrics) RecordOperation(string, string)          {}
func (nopMetrics) RecordBatch(string, bool, time.Duration) {}
func (nopMetrics) RecordParseFailure()                     {}
func (nopMetrics) SetHighlightActive(int)                  {}
