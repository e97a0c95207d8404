package reporters

import (
	"fmt"
	"io"
	"sync"

	"github.com/parquet-go/parquet-go"

	"github.com/memsentry/memsentry"
)

// AllocationRecord is one row of the Parquet report output.
type AllocationRecord struct {
	Event     string `parquet:"event"` // "alloc", "dealloc", "report"
	Heap      string `parquet:"heap"`
	ID        uint64 `parquet:"id"`
	Size      int64  `parquet:"size"`
	Alignment int64  `parquet:"alignment"`
	Signature uint32 `parquet:"signature"`
}

// Parquet buffers allocation events in memory and writes a Parquet file on
// Close, for offline analysis of leak reports. The callbacks only snapshot
// header fields and append to a slice under a short mutex; all I/O happens
// in Close.
type Parquet struct {
	mu   sync.Mutex
	rows []AllocationRecord
	w    io.Writer
}

// NewParquet builds a reporter that writes its rows to w on Close.
func NewParquet(w io.Writer) *Parquet {
	return &Parquet{w: w}
}

func (p *Parquet) record(event string, h *memsentry.AllocHeader) {
	rec := AllocationRecord{
		Event:     event,
		Heap:      h.Heap().Name(),
		ID:        h.ID(),
		Size:      int64(h.Size()),
		Alignment: int64(h.Alignment()),
		Signature: h.Signature(),
	}
	p.mu.Lock()
	p.rows = append(p.rows, rec)
	p.mu.Unlock()
}

// OnAlloc implements memsentry.Reporter.
func (p *Parquet) OnAlloc(h *memsentry.AllocHeader) { p.record("alloc", h) }

// OnDealloc implements memsentry.Reporter.
func (p *Parquet) OnDealloc(h *memsentry.AllocHeader) { p.record("dealloc", h) }

// Report implements memsentry.Reporter.
func (p *Parquet) Report(h *memsentry.AllocHeader) { p.record("report", h) }

// Len returns the number of buffered rows.
func (p *Parquet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rows)
}

// Close writes the buffered rows as a Zstd-compressed Parquet file and
// clears the buffer. Detach the reporter from its heaps first.
func (p *Parquet) Close() error {
	p.mu.Lock()
	rows := p.rows
	p.rows = nil
	p.mu.Unlock()

	pw := parquet.NewGenericWriter[AllocationRecord](p.w, parquet.Compression(&parquet.Zstd))
	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			_ = pw.Close()
			return fmt.Errorf("parquet reporter: write rows: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("parquet reporter: close writer: %w", err)
	}
	return nil
}

var _ memsentry.Reporter = (*Parquet)(nil)
