package reporters

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memsentry/memsentry"
)

func TestConsoleReporterLogsEvents(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&out, nil))

	h := memsentry.NewHeap("console-heap")
	h.SetReporter(NewConsole(logger))

	start := h.MemoryBookmark()
	buf, err := memsentry.Allocate(32, h)
	require.NoError(t, err)

	h.ReportMemory(start, start)
	memsentry.Free(buf)

	logs := out.String()
	assert.Contains(t, logs, `"msg":"allocation"`)
	assert.Contains(t, logs, `"msg":"live allocation"`)
	assert.Contains(t, logs, `"msg":"deallocation"`)
	assert.Contains(t, logs, `"heap":"console-heap"`)
	assert.Contains(t, logs, `"size":32`)
	assert.Contains(t, logs, "0xDEADC0DE")

	assert.Equal(t, 3, strings.Count(logs, "\n"), "one line per event")
}

func TestConsoleReporterDefaultsLogger(t *testing.T) {
	require.NotNil(t, NewConsole(nil))
}
