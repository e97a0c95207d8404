// memsentryd runs a small allocation and pool churn workload with the
// tracking layer enabled and serves the resulting Prometheus metrics. It
// exists to exercise and observe the library, not to do useful work.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/memsentry/memsentry"
	"github.com/memsentry/memsentry/pool"
	"github.com/memsentry/memsentry/reporters"
)

func main() {
	metricsAddr := flag.String("metrics", "0.0.0.0:9090", "Address to listen on for Prometheus metrics")
	interval := flag.Duration("interval", 50*time.Millisecond, "Delay between workload iterations")
	flag.Parse()

	// Optional .env for MEM_SENTRY_* overrides
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := memsentry.FromEnv()
	if err != nil {
		logger.Error("Bad configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("memsentryd starting", "enabled", cfg.Enabled, "metrics", *metricsAddr)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			logger.Error("Failed to start metrics server", "error", err)
		}
	}()

	textures := memsentry.NewHeap("Textures")
	audio := memsentry.NewHeap("Audio")
	textures.Connect(audio)
	textures.SetReporter(reporters.NewPrometheus())
	audio.SetReporter(reporters.NewPrometheus())

	chain, err := pool.NewPoolChain(8, func() (*pool.Buffer[[64]byte], error) {
		return pool.NewBuffer(func() [64]byte { return [64]byte{} }, nil), nil
	})
	if err != nil {
		logger.Error("Failed to build pool chain", "error", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	var live [][]byte
	for {
		select {
		case <-stop:
			logger.Info("Shutting down",
				"textures_bytes", textures.TotalBytes(),
				"hierarchy_bytes", textures.TotalHH(),
				"pools", chain.Len(),
			)
			for _, buf := range live {
				memsentry.Free(buf)
			}
			_ = chain.Close()
			return
		case <-ticker.C:
			buf, err := memsentry.Allocate(1024, textures)
			if err != nil {
				logger.Error("Allocation failed", "error", err)
				continue
			}
			live = append(live, buf)
			if len(live) > 32 {
				memsentry.Free(live[0])
				live = live[1:]
			}

			if aligned, err := memsentry.AllocateAligned(256, 128, audio); err == nil {
				memsentry.Free(aligned)
			}

			if b, err := chain.Pop(); err == nil {
				chain.Push(b)
			}
		}
	}
}
