// Package memsentry is a debugging and instrumentation allocator. It
// categorises dynamic allocations into named arenas (Heaps), wraps every
// block with an integrity prefix and end-marker canary so that leaks,
// double frees and buffer overruns surface at the free site, and
// aggregates statistics across a directed graph of connected heaps.
//
// Raw memory acquisition is delegated to an Arrow memory.Allocator; the
// tracking layer adds the bookkeeping on top. The companion pool package
// provides lock-free SPSC ring pools and growable pool chains for
// zero-allocation object recycling, and the reporters package ships
// console (slog), Prometheus and Parquet sinks for the Reporter hook.
//
// Typical use:
//
//	textures := memsentry.NewHeap("Textures")
//	buf, err := memsentry.Allocate(4096, textures)
//	...
//	memsentry.Free(buf)
//
// Tracking is controlled by MEM_SENTRY_ENABLE; when disabled the
// allocation APIs reduce to thin pass-throughs over the raw allocator.
package memsentry
