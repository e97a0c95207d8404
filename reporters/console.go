// Package reporters ships implementations of the memsentry.Reporter hook:
// structured console logging, Prometheus collectors, and a Parquet file
// sink for offline leak-report analysis.
//
// Reporter callbacks run under the owning heap's lock; every
// implementation here copies the header fields out and keeps the critical
// section short.
package reporters

import (
	"fmt"
	"log/slog"

	"github.com/memsentry/memsentry"
)

// Console logs allocation events through slog.
type Console struct {
	logger *slog.Logger
}

// NewConsole builds a console reporter. A nil logger selects
// slog.Default().
func NewConsole(logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{logger: logger}
}

// OnAlloc implements memsentry.Reporter.
func (c *Console) OnAlloc(h *memsentry.AllocHeader) {
	c.logger.Info("allocation",
		"heap", h.Heap().Name(),
		"id", h.ID(),
		"size", h.Size(),
		"alignment", h.Alignment(),
	)
}

// OnDealloc implements memsentry.Reporter.
func (c *Console) OnDealloc(h *memsentry.AllocHeader) {
	c.logger.Info("deallocation",
		"heap", h.Heap().Name(),
		"id", h.ID(),
		"size", h.Size(),
		"alignment", h.Alignment(),
	)
}

// Report implements memsentry.Reporter.
func (c *Console) Report(h *memsentry.AllocHeader) {
	c.logger.Info("live allocation",
		"heap", h.Heap().Name(),
		"id", h.ID(),
		"size", h.Size(),
		"alignment", h.Alignment(),
		"signature", fmt.Sprintf("0x%08X", h.Signature()),
	)
}

var _ memsentry.Reporter = (*Console)(nil)
