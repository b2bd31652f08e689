// Package metrics defines the Sink interface the dispatcher and
// acceptor report operational counters through, plus a Prometheus-backed
// implementation. The interface/implementation split mirrors the
// teacher's pkg/metrics layering, collapsed to a single backend since
// this server only ever ships one.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	enabled  bool
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection and creates the process-wide
// Prometheus registry. Safe to call more than once; later calls are a
// no-op if a registry already exists.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// GetRegistry returns the process-wide registry, initializing it first
// if necessary.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	r := registry
	mu.Unlock()
	if r != nil {
		return r
	}
	return InitRegistry()
}
