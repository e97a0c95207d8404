package memsentry

import (
	"github.com/kelseyhightower/envconfig"
)

// Config controls the tracking layer. It is captured once when a Tracker
// is constructed; flipping the environment afterwards has no effect on
// existing trackers.
type Config struct {
	// Enabled is the master switch. When false, the allocation APIs become
	// thin wrappers over the raw allocator: no header is written and no
	// heap is notified.
	Enabled bool `envconfig:"ENABLE" default:"true"`

	// DefaultHeapName names the lazily-created process-wide default heap.
	DefaultHeapName string `envconfig:"DEFAULT_HEAP" default:"DefaultHeap"`

	// Metrics toggles the Prometheus corruption counters maintained by the
	// tracker itself. Allocation-level metrics flow through the reporter
	// hook instead.
	Metrics bool `envconfig:"METRICS" default:"true"`
}

// DefaultConfig returns the configuration used when the environment is not
// consulted.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		DefaultHeapName: "DefaultHeap",
		Metrics:         true,
	}
}

// FromEnv builds a Config from MEM_SENTRY_* environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("MEM_SENTRY", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
