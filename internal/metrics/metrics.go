// Package metrics holds the Prometheus collectors for the memsentry
// tracking allocator and pool family. Collectors are registered with the
// default registry via promauto; scrape them with promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AllocationsTotal counts registered allocations per heap.
	AllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memsentry_allocations_total",
			Help: "Total number of tracked allocations per heap",
		},
		[]string{"heap"},
	)

	// DeallocationsTotal counts successful frees per heap.
	DeallocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memsentry_deallocations_total",
			Help: "Total number of tracked deallocations per heap",
		},
		[]string{"heap"},
	)

	// HeapBytes tracks the bytes currently outstanding per heap, payload
	// plus alignment reservation.
	HeapBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memsentry_heap_bytes",
			Help: "Bytes currently outstanding per heap",
		},
		[]string{"heap"},
	)

	// HeapAllocations tracks the number of live blocks per heap.
	HeapAllocations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memsentry_heap_allocations",
			Help: "Live tracked blocks per heap",
		},
		[]string{"heap"},
	)

	// CorruptionDetectedTotal counts integrity failures surfaced on the
	// free path, by kind: "double_free", "overrun", "foreign".
	CorruptionDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memsentry_corruption_detected_total",
			Help: "Integrity failures detected on free, by kind",
		},
		[]string{"kind"},
	)

	// ReportsTotal counts Report callbacks dispatched to reporters.
	ReportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memsentry_reports_total",
			Help: "Total number of report callbacks dispatched",
		},
	)

	// PoolPushesTotal counts ring pool pushes by outcome ("ok", "full",
	// "nil").
	PoolPushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memsentry_pool_pushes_total",
			Help: "Ring pool push attempts by outcome",
		},
		[]string{"status"},
	)

	// PoolPopsTotal counts ring pool pops by outcome ("ok", "empty").
	PoolPopsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memsentry_pool_pops_total",
			Help: "Ring pool pop attempts by outcome",
		},
		[]string{"status"},
	)

	// PoolGrowthTotal counts rings appended to pool chains on drain.
	PoolGrowthTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memsentry_pool_growth_total",
			Help: "Ring pools appended to chains after a full drain",
		},
	)
)
