package reporters

import (
	"github.com/memsentry/memsentry"

	"github.com/memsentry/memsentry/internal/metrics"
)

// Prometheus mirrors allocation traffic into the module's Prometheus
// collectors. Counter increments are atomic and non-blocking, which keeps
// the under-lock dispatch cheap.
type Prometheus struct{}

// NewPrometheus builds the Prometheus reporter.
func NewPrometheus() *Prometheus { return &Prometheus{} }

// OnAlloc implements memsentry.Reporter.
func (*Prometheus) OnAlloc(h *memsentry.AllocHeader) {
	metrics.AllocationsTotal.WithLabelValues(h.Heap().Name()).Inc()
	metrics.HeapBytes.WithLabelValues(h.Heap().Name()).Add(float64(h.ReportedBytes()))
	metrics.HeapAllocations.WithLabelValues(h.Heap().Name()).Inc()
}

// OnDealloc implements memsentry.Reporter.
func (*Prometheus) OnDealloc(h *memsentry.AllocHeader) {
	metrics.DeallocationsTotal.WithLabelValues(h.Heap().Name()).Inc()
	metrics.HeapBytes.WithLabelValues(h.Heap().Name()).Sub(float64(h.ReportedBytes()))
	metrics.HeapAllocations.WithLabelValues(h.Heap().Name()).Dec()
}

// Report implements memsentry.Reporter.
func (*Prometheus) Report(*memsentry.AllocHeader) {
	metrics.ReportsTotal.Inc()
}

var _ memsentry.Reporter = (*Prometheus)(nil)
